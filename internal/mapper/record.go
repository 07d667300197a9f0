package mapper

import (
	"github.com/sells-group/leadhunter/internal/model"
)

// Kind identifies the shape of a raw record.
type Kind string

const (
	KindPlaces   Kind = "places"
	KindRegistry Kind = "registry"
	KindManual   Kind = "manual"
)

// Record is a raw business record from one of the supported sources. The
// set of implementations is closed: PlacesRecord, RegistryRecord and
// ManualRecord.
type Record interface {
	Kind() Kind
	sealed()
}

// PlacesRecord is a place returned by the places-search service.
type PlacesRecord struct {
	ExternalID   string        `json:"external_id"`
	Name         string        `json:"name"`
	Address      string        `json:"address"`
	City         string        `json:"city"`
	PostalCode   string        `json:"postal_code"`
	Phone        string        `json:"phone"`
	Website      *string       `json:"website"`
	Types        []string      `json:"types"`
	Rating       *float64      `json:"rating"`
	ReviewsCount *int          `json:"reviews_count"`
	ProfileURL   string        `json:"profile_url"`
	Coordinates  *model.LatLng `json:"coordinates,omitempty"`
}

// RegistryRecord is an establishment returned by the business registry.
type RegistryRecord struct {
	RegistrationID string  `json:"registration_id"`
	LegalName      string  `json:"legal_name"`
	TradeName      *string `json:"trade_name"`
	UsualName      *string `json:"usual_name"`
	ActivityCode   string  `json:"activity_code"`
	StreetNumber   string  `json:"street_number"`
	StreetType     string  `json:"street_type"`
	StreetName     string  `json:"street_name"`
	PostalCode     string  `json:"postal_code"`
	City           string  `json:"city"`
	Active         bool    `json:"active"`
}

// ManualRecord is a lead entered by hand or read from an import file.
type ManualRecord struct {
	Name       string       `json:"name" yaml:"name"`
	Address    string       `json:"address" yaml:"address"`
	City       string       `json:"city" yaml:"city"`
	PostalCode string       `json:"postal_code" yaml:"postal_code"`
	Phone      string       `json:"phone" yaml:"phone"`
	Email      string       `json:"email" yaml:"email"`
	Website    string       `json:"website" yaml:"website"`
	SIRET      string       `json:"siret" yaml:"siret"`
	Sector     string       `json:"sector" yaml:"sector"`
	Source     model.Source `json:"source" yaml:"source"`
	Status     string       `json:"status" yaml:"status"`
	Notes      []string     `json:"notes" yaml:"notes"`
}

func (PlacesRecord) Kind() Kind   { return KindPlaces }
func (RegistryRecord) Kind() Kind { return KindRegistry }
func (ManualRecord) Kind() Kind   { return KindManual }

func (PlacesRecord) sealed()   {}
func (RegistryRecord) sealed() {}
func (ManualRecord) sealed()   {}
