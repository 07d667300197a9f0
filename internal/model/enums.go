package model

import (
	"strings"
)

// Sector is the closed business-sector taxonomy. The zero value means the
// business has not been classified.
type Sector string

const (
	SectorRestaurant           Sector = "restaurant"
	SectorRetail               Sector = "retail"
	SectorHealth               Sector = "health"
	SectorBeauty               Sector = "beauty"
	SectorConstruction         Sector = "construction"
	SectorProfessionalServices Sector = "professional_services"
	SectorRealEstate           Sector = "real_estate"
	SectorAutomotive           Sector = "automotive"
	SectorEducation            Sector = "education"
	SectorOther                Sector = "other"
)

// Sectors lists every sector in display order.
var Sectors = []Sector{
	SectorRestaurant,
	SectorRetail,
	SectorHealth,
	SectorBeauty,
	SectorConstruction,
	SectorProfessionalServices,
	SectorRealEstate,
	SectorAutomotive,
	SectorEducation,
	SectorOther,
}

// Valid reports whether s is a known sector. The empty sector is valid.
func (s Sector) Valid() bool {
	if s == "" {
		return true
	}
	_, ok := SectorLabels[s]
	return ok
}

// ParseSector parses a sector code.
func ParseSector(v string) (Sector, error) {
	s := Sector(strings.ToLower(strings.TrimSpace(v)))
	if s == "" || !s.Valid() {
		return "", &ValidationError{Field: "sector", Reason: "unknown sector " + quote(v)}
	}
	return s, nil
}

// Source tells where a business record came from.
type Source string

const (
	SourcePlacesSearch     Source = "places_search"
	SourceBusinessRegistry Source = "business_registry"
	SourceManual           Source = "manual"
	SourceImport           Source = "import"
)

// Sources lists every source.
var Sources = []Source{SourcePlacesSearch, SourceBusinessRegistry, SourceManual, SourceImport}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	_, ok := SourceLabels[s]
	return ok
}

// ParseSource parses a source code.
func ParseSource(v string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &ValidationError{Field: "source", Reason: "unknown source " + quote(v)}
	}
	return s, nil
}

// Status is the stage of a lead in the sales pipeline.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusMeeting   Status = "meeting"
	StatusProposal  Status = "proposal"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

// Statuses lists every pipeline stage in order.
var Statuses = []Status{StatusNew, StatusContacted, StatusMeeting, StatusProposal, StatusWon, StatusLost}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := StatusLabels[s]
	return ok
}

// CountsAsContact reports whether entering s records a contact with the lead.
func (s Status) CountsAsContact() bool {
	switch s {
	case StatusContacted, StatusMeeting, StatusProposal:
		return true
	default:
		return false
	}
}

// ParseStatus parses a status code.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Reason: "unknown status " + quote(v)}
	}
	return s, nil
}

// IssueType classifies a website problem found by an audit.
type IssueType string

const (
	IssueTypePerformance   IssueType = "performance"
	IssueTypeSecurity      IssueType = "security"
	IssueTypeSEO           IssueType = "seo"
	IssueTypeMobile        IssueType = "mobile"
	IssueTypeOutdated      IssueType = "outdated"
	IssueTypeDesign        IssueType = "design"
	IssueTypeAccessibility IssueType = "accessibility"
)

// Severity grades an audit issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func quote(s string) string {
	return `"` + s + `"`
}
