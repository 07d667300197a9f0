package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
	"github.com/sells-group/leadhunter/pkg/sirene"
)

// probedScore is the coarse score of a lead whose website was found by
// probing. Only the protocol is known until an audit refines it.
func probedScore(https bool) int {
	return scorer.Score(scorer.Factors{HasWebsite: true, IsHTTPS: &https})
}

// RegistryRequest describes a registry scan of one area.
type RegistryRequest struct {
	PostalCode       string `json:"postal_code"`
	City             string `json:"city"`
	Activity         string `json:"activity"`
	MaxResults       int    `json:"max_results"`
	DiscoverWebsites bool   `json:"discover_websites"`
}

// Registry searches the business registry for active establishments in an
// area, maps them to leads, optionally probes for their websites and stores
// the new leads.
func (s *Scanner) Registry(ctx context.Context, req RegistryRequest) (*Result, error) {
	if s.registry == nil {
		return nil, eris.New("discovery: registry source not configured")
	}
	req.PostalCode = strings.TrimSpace(req.PostalCode)
	req.City = strings.TrimSpace(req.City)
	if req.PostalCode == "" && req.City == "" {
		return nil, &model.ValidationError{Field: "postal_code", Reason: "postal code or city required"}
	}
	if req.DiscoverWebsites && s.finder == nil {
		return nil, eris.New("discovery: website discovery requested without a prober")
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultRegistryResults
	}

	log := zap.L().With(zap.String("scan", "registry"), zap.String("postal_code", req.PostalCode), zap.String("city", req.City))
	log.Info("discovery: registry scan started", zap.String("activity", req.Activity), zap.Int("max_results", req.MaxResults))

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "discovery: rate limit wait")
	}
	found, err := s.registry.Search(ctx, sirene.SearchParams{
		PostalCode: req.PostalCode,
		City:       req.City,
		Activity:   strings.TrimSpace(req.Activity),
		Count:      req.MaxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "discovery: registry search")
	}

	res := &Result{Found: found.Total}
	items := make([]*model.Business, 0, len(found.Etablissements))
	for _, e := range found.Etablissements {
		b, err := s.mapper.Map(registryRecord(e))
		if err != nil {
			log.Warn("discovery: establishment skipped", zap.String("siret", e.Siret), zap.Error(err))
			res.Failures = append(res.Failures, Failure{Name: e.LegalName(), Error: err.Error()})
			continue
		}
		items = append(items, b)
	}
	res.Processed = len(items)

	var scanErr error
	if req.DiscoverWebsites {
		scanErr = s.discoverWebsites(ctx, res, items)
	} else {
		res.WithoutSite = len(items)
	}
	if err := s.store(ctx, res, items); err != nil {
		return res, err
	}
	logSummary("registry", res)
	if scanErr != nil {
		return res, eris.Wrap(scanErr, "discovery: registry scan interrupted")
	}
	return res, nil
}

// registryRecord converts an establishment into the mapper's registry record.
func registryRecord(e sirene.Etablissement) mapper.RegistryRecord {
	cur := e.Current()
	return mapper.RegistryRecord{
		RegistrationID: e.Siret,
		LegalName:      e.LegalName(),
		TradeName:      cur.Enseigne,
		UsualName:      cur.DenominationUsuelle,
		ActivityCode:   cur.ActivitePrincipale,
		StreetNumber:   deref(e.Adresse.NumeroVoie),
		StreetType:     deref(e.Adresse.TypeVoie),
		StreetName:     deref(e.Adresse.LibelleVoie),
		PostalCode:     e.Adresse.CodePostal,
		City:           e.Adresse.Commune,
		Active:         e.Active(),
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// discoverWebsites probes for each lead's website. A found site gets a
// coarse score that a later audit refines; a site served only over plain
// http counts as needing a redesign.
func (s *Scanner) discoverWebsites(ctx context.Context, res *Result, items []*model.Business) error {
	found := make([]bool, len(items))
	insecure := make([]bool, len(items))

	err := s.each(ctx, len(items), func(ctx context.Context, i int) {
		b := items[i]
		check, ok := s.finder.FindWebsite(ctx, b.Name, b.City)
		if !ok {
			return
		}
		site := check.FinalURL
		b.Website = &site
		b.SetProspectScore(probedScore(check.IsHTTPS))
		insecure[i] = !check.IsHTTPS
		found[i] = true
	})

	for i := range items {
		switch {
		case !found[i]:
			res.WithoutSite++
		case insecure[i]:
			res.WithSite++
			res.NeedingRedesign++
		default:
			res.WithSite++
		}
	}
	return err
}
