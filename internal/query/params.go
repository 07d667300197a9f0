package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
)

// Params is a parsed list request.
type Params struct {
	Filter  Filter
	Page    int
	PerPage int
}

// ParseParams reads a filter and pagination from query-string values.
// Absent pagination falls back to DefaultPage and DefaultPerPage. The value
// "all" for a categorical filter means no filter.
func ParseParams(v url.Values) (Params, error) {
	p := Params{Page: DefaultPage, PerPage: DefaultPerPage}

	var err error
	if p.Page, err = intParam(v, "page", DefaultPage); err != nil {
		return p, err
	}
	if p.PerPage, err = intParam(v, "per_page", DefaultPerPage); err != nil {
		return p, err
	}

	f := &p.Filter
	f.Search = strings.TrimSpace(v.Get("search"))
	f.City = strings.TrimSpace(v.Get("city"))

	if s := categorical(v, "sector"); s != "" {
		sector, err := model.ParseSector(s)
		if err != nil {
			return p, err
		}
		f.Sector = &sector
	}
	if s := categorical(v, "status"); s != "" {
		status, err := model.ParseStatus(s)
		if err != nil {
			return p, err
		}
		f.Status = &status
	}
	if s := categorical(v, "priority"); s != "" {
		priority, err := scorer.ParsePriority(s)
		if err != nil {
			return p, &model.ValidationError{Field: "priority", Reason: "unknown priority " + strconv.Quote(s)}
		}
		f.Priority = &priority
	}
	if s := categorical(v, "has_website"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return p, &model.ValidationError{Field: "has_website", Reason: "must be a boolean"}
		}
		f.HasWebsite = &b
	}
	if v.Has("min_score") {
		n, err := intParam(v, "min_score", 0)
		if err != nil {
			return p, err
		}
		f.MinScore = &n
	}
	if v.Has("max_score") {
		n, err := intParam(v, "max_score", 0)
		if err != nil {
			return p, err
		}
		f.MaxScore = &n
	}
	return p, f.Validate()
}

func categorical(v url.Values, key string) string {
	s := strings.TrimSpace(v.Get(key))
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}

func intParam(v url.Values, key string, def int) (int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &model.ValidationError{Field: key, Reason: "must be an integer"}
	}
	return n, nil
}
