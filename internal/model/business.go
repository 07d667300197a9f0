// Package model defines the canonical lead entities shared by every layer:
// the Business, its quality audit and notes, plus the enum taxonomies and
// their display labels.
package model

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/leadhunter/internal/scorer"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Business is a prospect lead. The prospect score is only writable through
// SetProspectScore or Rescore; priority and website presence are derived.
type Business struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        *string  `json:"address"`
	City           string   `json:"city"`
	PostalCode     string   `json:"postal_code"`
	Coordinates    *LatLng  `json:"coordinates,omitempty"`
	Phone          *string  `json:"phone"`
	Email          *string  `json:"email"`
	Website        *string  `json:"website"`
	RegistrationID *string  `json:"registration_id"`
	Sector         Sector   `json:"sector"`
	Source         Source   `json:"source"`
	ExternalID     string   `json:"external_id,omitempty"`
	ProfileURL     *string  `json:"profile_url"`
	Rating         *float64 `json:"rating"`
	ReviewsCount   *int     `json:"reviews_count"`

	Status          Status        `json:"status"`
	LastContactedAt *time.Time    `json:"last_contacted_at"`
	Notes           []Note        `json:"notes"`
	Audit           *QualityAudit `json:"audit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	prospectScore int
}

// Note is an immutable free-text annotation on a lead.
type Note struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasWebsite reports whether the business has a known website.
func (b *Business) HasWebsite() bool {
	return b.Website != nil
}

// ProspectScore returns the current prospect score.
func (b *Business) ProspectScore() int {
	return b.prospectScore
}

// SetProspectScore stores score clamped to [0, 100].
func (b *Business) SetProspectScore(score int) {
	b.prospectScore = scorer.Clamp(score)
}

// Priority returns the tier derived from the prospect score.
func (b *Business) Priority() scorer.Priority {
	return scorer.PriorityFromScore(b.prospectScore)
}

// Factors returns the scoring inputs currently known for the business.
func (b *Business) Factors() scorer.Factors {
	if b.HasWebsite() && b.Audit != nil {
		return b.Audit.Factors()
	}
	return scorer.Factors{HasWebsite: b.HasWebsite()}
}

// Rescore recomputes the prospect score from the website and the attached
// audit. An audit is ignored when the business has no website.
func (b *Business) Rescore() {
	b.SetProspectScore(scorer.Score(b.Factors()))
}

// NeedsRedesign reports whether the business's website should be rebuilt.
func (b *Business) NeedsRedesign() bool {
	return scorer.NeedsRedesign(b.Factors())
}

// Validate checks the entity invariants.
func (b *Business) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if !b.Sector.Valid() {
		return &ValidationError{Field: "sector", Reason: "unknown sector " + quote(string(b.Sector))}
	}
	if !b.Source.Valid() {
		return &ValidationError{Field: "source", Reason: "unknown source " + quote(string(b.Source))}
	}
	if !b.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + quote(string(b.Status))}
	}
	if b.Rating != nil && (*b.Rating < 0 || *b.Rating > 5) {
		return &ValidationError{Field: "rating", Reason: "must be within [0, 5]"}
	}
	if b.ReviewsCount != nil && *b.ReviewsCount < 0 {
		return &ValidationError{Field: "reviews_count", Reason: "must not be negative"}
	}
	return nil
}

// Clone returns a deep copy of the business.
func (b *Business) Clone() *Business {
	c := *b
	c.Address = clonePtr(b.Address)
	c.Coordinates = clonePtr(b.Coordinates)
	c.Phone = clonePtr(b.Phone)
	c.Email = clonePtr(b.Email)
	c.Website = clonePtr(b.Website)
	c.RegistrationID = clonePtr(b.RegistrationID)
	c.ProfileURL = clonePtr(b.ProfileURL)
	c.Rating = clonePtr(b.Rating)
	c.ReviewsCount = clonePtr(b.ReviewsCount)
	c.LastContactedAt = clonePtr(b.LastContactedAt)
	c.Notes = slices.Clone(b.Notes)
	if b.Audit != nil {
		c.Audit = b.Audit.Clone()
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// businessAlias drops the methods of Business to avoid recursive marshaling.
type businessAlias Business

type businessJSON struct {
	*businessAlias
	Sector        *Sector         `json:"sector"`
	HasWebsite    bool            `json:"has_website"`
	ProspectScore int             `json:"prospect_score"`
	Priority      scorer.Priority `json:"priority"`
}

// MarshalJSON emits the derived fields alongside the stored ones. An
// unclassified sector is emitted as null.
func (b Business) MarshalJSON() ([]byte, error) {
	var sector *Sector
	if b.Sector != "" {
		s := b.Sector
		sector = &s
	}
	notes := b.Notes
	if notes == nil {
		notes = []Note{}
	}
	alias := businessAlias(b)
	alias.Notes = notes
	return json.Marshal(businessJSON{
		businessAlias: &alias,
		Sector:        sector,
		HasWebsite:    b.HasWebsite(),
		ProspectScore: b.prospectScore,
		Priority:      b.Priority(),
	})
}

// UnmarshalJSON reads the stored fields and the prospect score. Derived
// fields in the input are ignored.
func (b *Business) UnmarshalJSON(data []byte) error {
	aux := businessJSON{businessAlias: (*businessAlias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Sector != nil {
		b.Sector = *aux.Sector
	} else {
		b.Sector = ""
	}
	b.SetProspectScore(aux.ProspectScore)
	return nil
}

// NotesNewestFirst returns a copy of notes ordered newest first; ties keep
// their relative order.
func NotesNewestFirst(notes []Note) []Note {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
