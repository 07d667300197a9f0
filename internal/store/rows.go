package store

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/model"
)

var businessColumns = []string{
	"id", "name", "address", "city", "postal_code", "lat", "lng",
	"phone", "email", "website", "registration_id", "sector", "source",
	"external_id", "profile_url", "rating", "reviews_count", "prospect_score",
	"status", "last_contacted_at", "created_at", "updated_at",
}

var noteColumns = []string{"id", "business_id", "content", "created_at"}

var auditColumns = []string{
	"business_id", "url", "performance_score", "accessibility_score",
	"seo_score", "best_practices_score", "is_https", "is_mobile_friendly",
	"is_outdated", "load_time_ms", "cms", "cms_version", "framework",
	"issues", "overall_score", "audited_at",
}

var (
	businessSelect = "SELECT " + strings.Join(businessColumns, ", ") + " FROM businesses"
	noteSelect     = "SELECT " + strings.Join(noteColumns, ", ") + " FROM notes"
	auditSelect    = "SELECT " + strings.Join(auditColumns, ", ") + " FROM quality_audits"
)

type scannable interface {
	Scan(dest ...any) error
}

// businessArgs returns the column values of b in businessColumns order.
func businessArgs(b *model.Business) []any {
	var lat, lng *float64
	if b.Coordinates != nil {
		lat, lng = &b.Coordinates.Lat, &b.Coordinates.Lng
	}
	return []any{
		b.ID, b.Name, b.Address, b.City, b.PostalCode, lat, lng,
		b.Phone, b.Email, b.Website, b.RegistrationID, nullString(string(b.Sector)), string(b.Source),
		nullString(b.ExternalID), b.ProfileURL, b.Rating, b.ReviewsCount, b.ProspectScore(),
		string(b.Status), b.LastContactedAt, b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	}
}

func noteArgs(n model.Note) []any {
	return []any{n.ID, n.BusinessID, n.Content, n.CreatedAt.UTC()}
}

func auditArgs(businessID string, a *model.QualityAudit) ([]any, error) {
	issues := a.Issues
	if issues == nil {
		issues = []model.Issue{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal audit issues")
	}
	return []any{
		businessID, a.URL, a.PerformanceScore, a.AccessibilityScore,
		a.SEOScore, a.BestPracticesScore, a.IsHTTPS, a.IsMobileFriendly,
		a.IsOutdated, a.LoadTimeMs, a.CMS, a.CMSVersion, a.Framework,
		string(issuesJSON), a.OverallScore, a.AuditedAt.UTC(),
	}, nil
}

func scanBusiness(row scannable) (*model.Business, error) {
	var b model.Business
	var address, phone, email, website, regID sql.NullString
	var sector, externalID, profileURL sql.NullString
	var lat, lng, rating sql.NullFloat64
	var reviews sql.NullInt64
	var score int
	var source, status string
	var lastContacted sql.NullTime
	err := row.Scan(
		&b.ID, &b.Name, &address, &b.City, &b.PostalCode, &lat, &lng,
		&phone, &email, &website, &regID, &sector, &source,
		&externalID, &profileURL, &rating, &reviews, &score,
		&status, &lastContacted, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Address = stringPtr(address)
	b.Phone = stringPtr(phone)
	b.Email = stringPtr(email)
	b.Website = stringPtr(website)
	b.RegistrationID = stringPtr(regID)
	b.ProfileURL = stringPtr(profileURL)
	b.Sector = model.Sector(sector.String)
	b.Source = model.Source(source)
	b.ExternalID = externalID.String
	b.Status = model.Status(status)
	if lat.Valid && lng.Valid {
		b.Coordinates = &model.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	if rating.Valid {
		b.Rating = &rating.Float64
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		b.ReviewsCount = &n
	}
	if lastContacted.Valid {
		t := lastContacted.Time.UTC()
		b.LastContactedAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	b.SetProspectScore(score)
	return &b, nil
}

func scanNote(row scannable) (model.Note, error) {
	var n model.Note
	if err := row.Scan(&n.ID, &n.BusinessID, &n.Content, &n.CreatedAt); err != nil {
		return n, err
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

func scanAudit(row scannable) (*model.QualityAudit, error) {
	var a model.QualityAudit
	var perf, access, seo, best, loadTime sql.NullInt64
	var cms, cmsVersion, framework sql.NullString
	var issues []byte
	err := row.Scan(
		&a.BusinessID, &a.URL, &perf, &access,
		&seo, &best, &a.IsHTTPS, &a.IsMobileFriendly,
		&a.IsOutdated, &loadTime, &cms, &cmsVersion, &framework,
		&issues, &a.OverallScore, &a.AuditedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PerformanceScore = intPtr(perf)
	a.AccessibilityScore = intPtr(access)
	a.SEOScore = intPtr(seo)
	a.BestPracticesScore = intPtr(best)
	a.LoadTimeMs = intPtr(loadTime)
	a.CMS = stringPtr(cms)
	a.CMSVersion = stringPtr(cmsVersion)
	a.Framework = stringPtr(framework)
	a.AuditedAt = a.AuditedAt.UTC()
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &a.Issues); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal audit issues")
		}
	}
	return &a, nil
}

// assemble attaches notes and audits to their businesses. Notes keep the
// order they were read in.
func assemble(businesses []*model.Business, notes []model.Note, audits []*model.QualityAudit) {
	byID := make(map[string]*model.Business, len(businesses))
	for _, b := range businesses {
		byID[b.ID] = b
	}
	for _, n := range notes {
		if b, ok := byID[n.BusinessID]; ok {
			b.Notes = append(b.Notes, n)
		}
	}
	for _, a := range audits {
		if b, ok := byID[a.BusinessID]; ok {
			b.Audit = a
		}
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}
