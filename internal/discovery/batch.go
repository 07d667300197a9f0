package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/model"
)

// AuditBatch audits the website of every stored lead in ids and attaches
// the audits, refining each lead's score. Leads without a website and leads
// whose audit fails come back unchanged. Only ids that cannot be loaded are
// missing from Businesses, which keeps the order of ids.
func (s *Scanner) AuditBatch(ctx context.Context, ids []string) (*Result, error) {
	if s.auditor == nil {
		return nil, eris.New("discovery: no auditor configured")
	}

	var (
		loaded   = make([]*model.Business, len(ids))
		updated  = make([]*model.Business, len(ids))
		siteless = make([]bool, len(ids))
		failures = make([]*Failure, len(ids))
	)
	err := s.each(ctx, len(ids), func(ctx context.Context, i int) {
		id := ids[i]
		b, err := s.tracker.Get(ctx, id)
		if err != nil {
			failures[i] = &Failure{BusinessID: id, Error: err.Error()}
			return
		}
		loaded[i] = b
		if !b.HasWebsite() {
			siteless[i] = true
			return
		}
		a, err := s.auditor.Audit(ctx, *b.Website)
		if err != nil {
			zap.L().Warn("discovery: audit failed", zap.String("business_id", id), zap.Error(err))
			failures[i] = &Failure{BusinessID: id, Name: b.Name, Error: err.Error()}
			return
		}
		saved, err := s.tracker.AttachAudit(ctx, id, a)
		if err != nil {
			failures[i] = &Failure{BusinessID: id, Name: b.Name, Error: err.Error()}
			return
		}
		updated[i] = saved
	})

	res := &Result{Found: len(ids), Failures: failureRows(failures)}
	for i := range ids {
		switch {
		case siteless[i]:
			res.Processed++
			res.WithoutSite++
			res.Businesses = append(res.Businesses, loaded[i])
		case updated[i] != nil:
			b := updated[i]
			res.Processed++
			res.WithSite++
			res.Audited++
			if b.NeedsRedesign() {
				res.NeedingRedesign++
			}
			res.Businesses = append(res.Businesses, b)
		case loaded[i] != nil:
			res.Businesses = append(res.Businesses, loaded[i])
		}
	}
	logSummary("audit", res)
	if err != nil {
		return res, eris.Wrap(err, "discovery: audit batch interrupted")
	}
	return res, nil
}
