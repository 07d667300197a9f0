package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 30

var (
	emailRe      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe      = regexp.MustCompile(`^(\+33|0)[1-9][0-9]{8}$`)
	phoneStripRe = regexp.MustCompile(`[\s.\-]`)
	siretRe      = regexp.MustCompile(`^[0-9]{14}$`)
	slugDropRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	spacesRe     = regexp.MustCompile(`\s+`)
)

// Fold lower-cases s and removes diacritics: "Éléonore" becomes "eleonore".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Slug builds a domain-safe label from a business name: folded, reduced to
// [a-z0-9], words joined by dashes and cut to 30 characters.
func Slug(name string) string {
	s := slugDropRe.ReplaceAllString(Fold(name), "")
	s = spacesRe.ReplaceAllString(strings.TrimSpace(s), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	return s
}

// NormalizeURL lower-cases a website address, adds an https scheme when
// none is given and drops a trailing slash.
func NormalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimSuffix(u, "/")
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidPhone reports whether s is a French phone number, national or
// international form, ignoring spaces, dots and dashes.
func ValidPhone(s string) bool {
	return phoneRe.MatchString(phoneStripRe.ReplaceAllString(s, ""))
}

// CompactPhone strips every non-digit except a leading plus sign.
func CompactPhone(s string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidSIRET reports whether s is a 14-digit establishment identifier,
// ignoring spaces.
func ValidSIRET(s string) bool {
	return siretRe.MatchString(strings.ReplaceAll(s, " ", ""))
}

// StringPtr trims s and returns nil when nothing is left.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// TrimPtr trims *p and returns nil when p is nil or blank.
func TrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	return StringPtr(*p)
}
