// Package mapper converts raw records from external sources into canonical
// Business entities with a coarse prospect score.
package mapper

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/internal/scorer"
)

// Mapper builds Business entities. The zero value is not usable; call New.
type Mapper struct {
	newID func() string
	now   func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithIDFunc overrides the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(m *Mapper) {
		m.newID = fn
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(m *Mapper) {
		m.now = fn
	}
}

// New creates a Mapper generating UUIDs and using the wall clock.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Map converts a raw record into a Business. Records missing a required
// field fail with *model.MappingError.
func (m *Mapper) Map(r Record) (*model.Business, error) {
	switch rec := r.(type) {
	case PlacesRecord:
		return m.fromPlaces(rec)
	case *PlacesRecord:
		return m.fromPlaces(*rec)
	case RegistryRecord:
		return m.fromRegistry(rec)
	case *RegistryRecord:
		return m.fromRegistry(*rec)
	case ManualRecord:
		return m.fromManual(rec)
	case *ManualRecord:
		return m.fromManual(*rec)
	default:
		return nil, &model.MappingError{Field: "kind", Reason: "unsupported record type"}
	}
}

// MapAll maps every record, collecting failures instead of stopping at the
// first one. Businesses keep the input order of the successful records.
func (m *Mapper) MapAll(records []Record) ([]*model.Business, []error) {
	var (
		out  []*model.Business
		errs []error
	)
	for _, r := range records {
		b, err := m.Map(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, b)
	}
	return out, errs
}

func (m *Mapper) newBusiness(name string, source model.Source) *model.Business {
	now := m.now()
	return &model.Business{
		ID:        m.newID(),
		Name:      name,
		Source:    source,
		Status:    model.StatusNew,
		Notes:     []model.Note{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *Mapper) fromPlaces(r PlacesRecord) (*model.Business, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, &model.MappingError{Source: model.SourcePlacesSearch, Field: "name", Reason: "missing"}
	}
	externalID := strings.TrimSpace(r.ExternalID)
	if externalID == "" {
		return nil, &model.MappingError{Source: model.SourcePlacesSearch, Field: "external_id", Reason: "missing"}
	}
	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5) {
		return nil, &model.MappingError{Source: model.SourcePlacesSearch, Field: "rating", Reason: "out of range"}
	}
	if r.ReviewsCount != nil && *r.ReviewsCount < 0 {
		return nil, &model.MappingError{Source: model.SourcePlacesSearch, Field: "reviews_count", Reason: "negative"}
	}

	b := m.newBusiness(name, model.SourcePlacesSearch)
	b.ExternalID = externalID
	b.Address = normalize.StringPtr(r.Address)
	b.City = strings.TrimSpace(r.City)
	b.PostalCode = strings.TrimSpace(r.PostalCode)
	if b.City == "" && b.PostalCode == "" && b.Address != nil {
		parsed := normalize.ParseAddress(*b.Address)
		b.Address = normalize.StringPtr(parsed.Street)
		b.City = parsed.City
		b.PostalCode = parsed.PostalCode
	}
	b.Phone = normalize.StringPtr(r.Phone)
	b.Website = websitePtr(r.Website)
	b.Sector = normalize.SectorFromPlaceTypes(r.Types)
	b.Rating = r.Rating
	b.ReviewsCount = r.ReviewsCount
	b.ProfileURL = normalize.StringPtr(r.ProfileURL)
	if r.Coordinates != nil {
		c := *r.Coordinates
		b.Coordinates = &c
	}
	b.Rescore()
	return b, nil
}

func (m *Mapper) fromRegistry(r RegistryRecord) (*model.Business, error) {
	if !r.Active {
		return nil, &model.MappingError{Source: model.SourceBusinessRegistry, Field: "active", Reason: "establishment is closed"}
	}
	regID := strings.ReplaceAll(strings.TrimSpace(r.RegistrationID), " ", "")
	if regID == "" {
		return nil, &model.MappingError{Source: model.SourceBusinessRegistry, Field: "registration_id", Reason: "missing"}
	}
	name := firstNonEmpty(r.TradeName, r.UsualName, &r.LegalName)
	if name == "" {
		return nil, &model.MappingError{Source: model.SourceBusinessRegistry, Field: "name", Reason: "missing"}
	}

	b := m.newBusiness(name, model.SourceBusinessRegistry)
	b.ExternalID = regID
	b.RegistrationID = &regID
	b.Address = normalize.StringPtr(joinNonEmpty(r.StreetNumber, r.StreetType, r.StreetName))
	b.City = strings.TrimSpace(r.City)
	b.PostalCode = strings.TrimSpace(r.PostalCode)
	b.Sector = normalize.SectorFromActivityCode(r.ActivityCode)
	b.Rescore()
	return b, nil
}

func (m *Mapper) fromManual(r ManualRecord) (*model.Business, error) {
	source := r.Source
	if source == "" {
		source = model.SourceManual
	}
	if source != model.SourceManual && source != model.SourceImport {
		return nil, &model.MappingError{Source: source, Field: "source", Reason: "must be manual or import"}
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, &model.MappingError{Source: source, Field: "name", Reason: "missing"}
	}

	b := m.newBusiness(name, source)
	b.Address = normalize.StringPtr(r.Address)
	b.City = strings.TrimSpace(r.City)
	b.PostalCode = strings.TrimSpace(r.PostalCode)
	if b.City == "" && b.PostalCode == "" && b.Address != nil {
		parsed := normalize.ParseAddress(*b.Address)
		b.Address = normalize.StringPtr(parsed.Street)
		b.City = parsed.City
		b.PostalCode = parsed.PostalCode
	}
	b.Phone = normalize.StringPtr(r.Phone)
	if email := normalize.StringPtr(r.Email); email != nil {
		if !normalize.ValidEmail(*email) {
			return nil, &model.MappingError{Source: source, Field: "email", Reason: "malformed"}
		}
		b.Email = email
	}
	if siret := strings.ReplaceAll(strings.TrimSpace(r.SIRET), " ", ""); siret != "" {
		if !normalize.ValidSIRET(siret) {
			return nil, &model.MappingError{Source: source, Field: "siret", Reason: "must be 14 digits"}
		}
		b.RegistrationID = &siret
		b.ExternalID = siret
	}
	b.Website = websitePtr(&r.Website)

	if strings.TrimSpace(r.Sector) != "" {
		sector, err := model.ParseSector(r.Sector)
		if err != nil {
			return nil, &model.MappingError{Source: source, Field: "sector", Reason: err.Error()}
		}
		b.Sector = sector
	}
	if strings.TrimSpace(r.Status) != "" {
		status, err := model.ParseStatus(r.Status)
		if err != nil {
			return nil, &model.MappingError{Source: source, Field: "status", Reason: err.Error()}
		}
		b.Status = status
		if status.CountsAsContact() {
			now := b.CreatedAt
			b.LastContactedAt = &now
		}
	}
	for _, content := range r.Notes {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		b.Notes = append(b.Notes, model.Note{
			ID:         m.newID(),
			BusinessID: b.ID,
			Content:    content,
			CreatedAt:  b.CreatedAt,
		})
	}

	b.SetProspectScore(scorer.Score(scorer.Factors{HasWebsite: b.HasWebsite()}))
	return b, nil
}

func websitePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	return normalize.StringPtr(normalize.NormalizeURL(*raw))
}

func firstNonEmpty(vals ...*string) string {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(*v); s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
