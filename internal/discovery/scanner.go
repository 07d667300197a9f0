// Package discovery runs lead scans against the places and registry
// sources, optionally auditing or discovering websites along the way, and
// stores the resulting leads.
package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadhunter/internal/audit"
	"github.com/sells-group/leadhunter/internal/lifecycle"
	"github.com/sells-group/leadhunter/internal/mapper"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/query"
	"github.com/sells-group/leadhunter/pkg/google"
	"github.com/sells-group/leadhunter/pkg/sirene"
)

// MaxPlacesResults is the most results the places source will page through.
const MaxPlacesResults = 60

// Defaults for Config fields left at zero.
const (
	DefaultPlacesResults   = 20
	DefaultRegistryResults = 50
	DefaultCallSpacing     = 200 * time.Millisecond
	DefaultPageDelay       = 2 * time.Second
)

// SiteAuditor audits a website.
type SiteAuditor interface {
	Audit(ctx context.Context, url string) (*model.QualityAudit, error)
}

// WebsiteFinder guesses a business's website from its name and city.
type WebsiteFinder interface {
	FindWebsite(ctx context.Context, name, city string) (audit.CheckResult, bool)
}

// Config controls scan pacing.
type Config struct {
	// Concurrency bounds the audits or website lookups in flight.
	Concurrency int
	// CallSpacing is the minimum gap between two outbound calls.
	CallSpacing time.Duration
	// PageDelay is waited before requesting the next results page, which
	// the places source needs before a page token becomes valid.
	PageDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.CallSpacing < 0 {
		c.CallSpacing = 0
	}
	if c.PageDelay < 0 {
		c.PageDelay = 0
	}
	return c
}

// Failure records one item a scan could not process.
type Failure struct {
	BusinessID string `json:"business_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Error      string `json:"error"`
}

// Result summarizes a scan or an audit batch.
type Result struct {
	Found           int               `json:"total_found"`
	Processed       int               `json:"processed"`
	WithoutSite     int               `json:"without_site"`
	WithSite        int               `json:"with_site"`
	NeedingRedesign int               `json:"needing_redesign"`
	Audited         int               `json:"audited"`
	Inserted        int               `json:"inserted"`
	Failures        []Failure         `json:"failures"`
	Businesses      []*model.Business `json:"businesses"`
}

// Scanner orchestrates scans. Sources, auditor and prober are optional; an
// operation that needs a missing one fails up front.
type Scanner struct {
	tracker  *lifecycle.Tracker
	mapper   *mapper.Mapper
	places   google.Client
	registry sirene.Client
	auditor  SiteAuditor
	finder   WebsiteFinder
	cfg      Config
	limiter  *rate.Limiter
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPlaces sets the places source.
func WithPlaces(c google.Client) Option {
	return func(s *Scanner) { s.places = c }
}

// WithRegistry sets the business registry source.
func WithRegistry(c sirene.Client) Option {
	return func(s *Scanner) { s.registry = c }
}

// WithAuditor sets the website auditor.
func WithAuditor(a SiteAuditor) Option {
	return func(s *Scanner) { s.auditor = a }
}

// WithWebsiteFinder sets the website prober used by registry scans.
func WithWebsiteFinder(f WebsiteFinder) Option {
	return func(s *Scanner) { s.finder = f }
}

// WithMapper overrides the record mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(s *Scanner) { s.mapper = m }
}

// WithSleep overrides how page delays are waited out.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scanner) { s.sleep = fn }
}

// NewScanner creates a Scanner storing leads through tracker.
func NewScanner(tracker *lifecycle.Tracker, cfg Config, opts ...Option) *Scanner {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.CallSpacing > 0 {
		limit = rate.Every(cfg.CallSpacing)
	}
	s := &Scanner{
		tracker: tracker,
		mapper:  mapper.New(),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// each runs fn for every index in [0, n) with bounded concurrency and call
// spacing. fn reports per-item failures itself; each stops scheduling once
// ctx is done and returns ctx's error.
func (s *Scanner) each(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range n {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// store dedups items, inserts them and records the outcome in res.
func (s *Scanner) store(ctx context.Context, res *Result, items []*model.Business) error {
	items = query.Dedup(items)
	res.Businesses = items
	if len(items) == 0 {
		return nil
	}
	n, err := s.tracker.Store().InsertMany(ctx, items)
	if err != nil {
		return eris.Wrap(err, "discovery: insert leads")
	}
	res.Inserted = n
	return nil
}

// failureRows flattens per-item errors in input order.
func failureRows(failures []*Failure) []Failure {
	var out []Failure
	for _, f := range failures {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out
}

func logSummary(scan string, res *Result) {
	zap.L().Info("discovery: scan complete",
		zap.String("scan", scan),
		zap.Int("found", res.Found),
		zap.Int("processed", res.Processed),
		zap.Int("without_site", res.WithoutSite),
		zap.Int("needing_redesign", res.NeedingRedesign),
		zap.Int("audited", res.Audited),
		zap.Int("inserted", res.Inserted),
		zap.Int("failures", len(res.Failures)),
	)
}
