package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/pkg/google"
)

// PlacesRequest describes a places scan such as "coiffeurs" in "Nantes".
type PlacesRequest struct {
	Query         string `json:"query"`
	Location      string `json:"location"`
	MaxResults    int    `json:"max_results"`
	AuditWebsites bool   `json:"audit_websites"`
}

// Places searches the places source, maps open places to leads, optionally
// audits their websites and stores the new leads.
func (s *Scanner) Places(ctx context.Context, req PlacesRequest) (*Result, error) {
	if s.places == nil {
		return nil, eris.New("discovery: places source not configured")
	}
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, &model.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, &model.ValidationError{Field: "location", Reason: "must not be empty"}
	}
	if req.AuditWebsites && s.auditor == nil {
		return nil, eris.New("discovery: website auditing requested without an auditor")
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultPlacesResults
	}
	limit = min(limit, MaxPlacesResults)

	log := zap.L().With(zap.String("scan", "places"), zap.String("query", text), zap.String("location", location))
	log.Info("discovery: places scan started", zap.Int("max_results", limit))

	places, err := s.searchPlaces(ctx, text+" "+location, limit)
	if err != nil {
		return nil, err
	}

	res := &Result{Found: len(places)}
	items := make([]*model.Business, 0, len(places))
	for _, p := range places {
		b, err := s.mapper.Map(placeRecord(p))
		if err != nil {
			log.Warn("discovery: place skipped", zap.String("place_id", p.ID), zap.Error(err))
			res.Failures = append(res.Failures, Failure{Name: p.DisplayName.Text, Error: err.Error()})
			continue
		}
		items = append(items, b)
	}
	res.Processed = len(items)
	for _, b := range items {
		if b.HasWebsite() {
			res.WithSite++
		} else {
			res.WithoutSite++
		}
	}

	var scanErr error
	if req.AuditWebsites {
		scanErr = s.auditNew(ctx, res, items)
	}
	if err := s.store(ctx, res, items); err != nil {
		return res, err
	}
	logSummary("places", res)
	if scanErr != nil {
		return res, eris.Wrap(scanErr, "discovery: places scan interrupted")
	}
	return res, nil
}

// searchPlaces pages through text search results until limit open places
// are collected or the results run out. A failure after the first page
// keeps the places already found.
func (s *Scanner) searchPlaces(ctx context.Context, text string, limit int) ([]google.Place, error) {
	var (
		out   []google.Place
		token string
	)
	for len(out) < limit {
		if token != "" {
			if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
				return out, eris.Wrap(err, "discovery: page delay")
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "discovery: rate limit wait")
		}

		resp, err := s.places.SearchText(ctx, google.SearchTextRequest{
			TextQuery: text,
			PageSize:  min(google.MaxPageSize, limit),
			PageToken: token,
		})
		if err != nil {
			if len(out) == 0 {
				return nil, eris.Wrap(err, "discovery: places search")
			}
			zap.L().Warn("discovery: places page failed, keeping earlier pages",
				zap.Int("collected", len(out)), zap.Error(err))
			break
		}

		for _, p := range resp.Places {
			if p.Closed() {
				continue
			}
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	return out, nil
}

// placeRecord converts a place into the mapper's places record.
func placeRecord(p google.Place) mapper.PlacesRecord {
	addr := normalize.ParseAddress(p.FormattedAddress)
	rec := mapper.PlacesRecord{
		ExternalID:   p.ID,
		Name:         p.DisplayName.Text,
		Address:      addr.Street,
		City:         addr.City,
		PostalCode:   addr.PostalCode,
		Phone:        p.Phone(),
		Types:        p.Types,
		Rating:       p.Rating,
		ReviewsCount: p.UserRatingCount,
		ProfileURL:   p.GoogleMapsURI,
	}
	if p.WebsiteURI != "" {
		site := p.WebsiteURI
		rec.Website = &site
	}
	if p.Location != nil {
		rec.Coordinates = &model.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	return rec
}

// auditNew audits every lead with a website before it is stored. A failed
// audit leaves the lead at its coarse score.
func (s *Scanner) auditNew(ctx context.Context, res *Result, items []*model.Business) error {
	failures := make([]*Failure, len(items))
	audited := make([]bool, len(items))

	err := s.each(ctx, len(items), func(ctx context.Context, i int) {
		b := items[i]
		if !b.HasWebsite() {
			return
		}
		a, err := s.auditor.Audit(ctx, *b.Website)
		if err != nil {
			zap.L().Warn("discovery: audit failed", zap.String("business_id", b.ID), zap.String("website", *b.Website), zap.Error(err))
			failures[i] = &Failure{BusinessID: b.ID, Name: b.Name, Error: err.Error()}
			return
		}
		a = a.Clone()
		a.BusinessID = b.ID
		b.Audit = a
		b.Rescore()
		audited[i] = true
	})

	for i, ok := range audited {
		if !ok {
			continue
		}
		res.Audited++
		if items[i].NeedsRedesign() {
			res.NeedingRedesign++
		}
	}
	res.Failures = append(res.Failures, failureRows(failures)...)
	return err
}
