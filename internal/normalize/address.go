// Package normalize turns free-form address strings and external category
// codes into the canonical shapes used by the lead model.
package normalize

import (
	"regexp"
	"strings"
)

// Address is a formatted address split into its parts.
type Address struct {
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

var postalCityRe = regexp.MustCompile(`(\d{5})\s+(.+)`)

// ParseAddress splits a comma-separated formatted address such as
// "123 Rue de Paris, 75001 Paris, France". The first segment is the street;
// the first segment holding a five-digit postal code followed by a city
// gives both. Without one, the city falls back to the second-to-last
// segment and the postal code stays empty.
func ParseAddress(formatted string) Address {
	var parts []string
	for _, p := range strings.Split(formatted, ",") {
		parts = append(parts, strings.TrimSpace(p))
	}

	addr := Address{Street: parts[0]}
	for _, p := range parts {
		if m := postalCityRe.FindStringSubmatch(p); m != nil {
			addr.PostalCode = m[1]
			addr.City = strings.TrimSpace(m[2])
			return addr
		}
	}

	if len(parts) >= 2 {
		addr.City = parts[len(parts)-2]
		if addr.City == "" {
			addr.City = parts[0]
		}
	}
	return addr
}
