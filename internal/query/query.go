// Package query filters, sorts and paginates a snapshot of leads.
package query

import (
	"slices"
	"strings"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/internal/scorer"
)

// Pagination bounds.
const (
	DefaultPage    = 1
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Filter selects leads. Nil and empty fields match everything; set fields
// combine with AND.
type Filter struct {
	Search     string           `json:"search,omitempty"`
	City       string           `json:"city,omitempty"`
	Sector     *model.Sector    `json:"sector,omitempty"`
	Status     *model.Status    `json:"status,omitempty"`
	Priority   *scorer.Priority `json:"priority,omitempty"`
	HasWebsite *bool            `json:"has_website,omitempty"`
	MinScore   *int             `json:"min_score,omitempty"`
	MaxScore   *int             `json:"max_score,omitempty"`
}

// Result is one page of matching leads.
type Result struct {
	Data       []*model.Business `json:"data"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	TotalPages int               `json:"total_pages"`
}

// Validate checks the filter against its contract.
func (f Filter) Validate() error {
	if f.MinScore != nil && (*f.MinScore < scorer.MinScore || *f.MinScore > scorer.MaxScore) {
		return &model.ValidationError{Field: "min_score", Reason: "must be within [0, 100]"}
	}
	if f.MaxScore != nil && (*f.MaxScore < scorer.MinScore || *f.MaxScore > scorer.MaxScore) {
		return &model.ValidationError{Field: "max_score", Reason: "must be within [0, 100]"}
	}
	if f.MinScore != nil && f.MaxScore != nil && *f.MinScore > *f.MaxScore {
		return &model.ValidationError{Field: "min_score", Reason: "must not exceed max_score"}
	}
	if f.Sector != nil && (*f.Sector == "" || !f.Sector.Valid()) {
		return &model.ValidationError{Field: "sector", Reason: "unknown sector"}
	}
	if f.Status != nil && !f.Status.Valid() {
		return &model.ValidationError{Field: "status", Reason: "unknown status"}
	}
	if f.Priority != nil && !f.Priority.Valid() {
		return &model.ValidationError{Field: "priority", Reason: "unknown priority"}
	}
	return nil
}

// Match reports whether b satisfies every set criterion.
func (f Filter) Match(b *model.Business) bool {
	if f.Search != "" {
		needle := normalize.Fold(strings.TrimSpace(f.Search))
		if !strings.Contains(normalize.Fold(b.Name), needle) &&
			!strings.Contains(normalize.Fold(b.City), needle) {
			return false
		}
	}
	if f.City != "" && b.City != f.City {
		return false
	}
	if f.Sector != nil && b.Sector != *f.Sector {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.Priority != nil && b.Priority() != *f.Priority {
		return false
	}
	if f.HasWebsite != nil && b.HasWebsite() != *f.HasWebsite {
		return false
	}
	if f.MinScore != nil && b.ProspectScore() < *f.MinScore {
		return false
	}
	if f.MaxScore != nil && b.ProspectScore() > *f.MaxScore {
		return false
	}
	return true
}

// Run filters items, sorts the matches by prospect score descending and
// returns the requested page. Matches with equal scores keep their input
// order, so callers pass items in creation order. items is not modified.
// A page past the end yields an empty Data slice.
func Run(items []*model.Business, f Filter, page, perPage int) (*Result, error) {
	if page < 1 {
		return nil, &model.ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if perPage < 1 || perPage > MaxPerPage {
		return nil, &model.ValidationError{Field: "per_page", Reason: "must be within [1, 100]"}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	matched := make([]*model.Business, 0, len(items))
	for _, b := range items {
		if f.Match(b) {
			matched = append(matched, b)
		}
	}
	slices.SortStableFunc(matched, func(a, b *model.Business) int {
		return b.ProspectScore() - a.ProspectScore()
	})

	total := len(matched)
	res := &Result{
		Data:       []*model.Business{},
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}
	start := (page - 1) * perPage
	if start >= total {
		return res, nil
	}
	end := min(start+perPage, total)
	res.Data = matched[start:end]
	return res, nil
}
