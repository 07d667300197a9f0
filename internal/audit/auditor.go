package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/cache"
	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/normalize"
	"github.com/sells-group/leadhunter/internal/resilience"
	"github.com/sells-group/leadhunter/pkg/pagespeed"
)

// Detector finds the CMS behind a page.
type Detector interface {
	Detect(ctx context.Context, pageURL string) (Stack, error)
	Apply(a *model.QualityAudit, s Stack)
}

// Auditor produces QualityAudits from Lighthouse runs, with caching,
// retries and a circuit breaker around the PageSpeed API.
type Auditor struct {
	psi      pagespeed.Client
	detector Detector
	cache    cache.AuditCache
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	now      func() time.Time
}

// AuditorOption configures an Auditor.
type AuditorOption func(*Auditor)

// WithDetector enables CMS detection after each run.
func WithDetector(d Detector) AuditorOption {
	return func(a *Auditor) { a.detector = d }
}

// WithCache stores fresh audits in c and serves hits from it.
func WithCache(c cache.AuditCache) AuditorOption {
	return func(a *Auditor) {
		if c != nil {
			a.cache = c
		}
	}
}

// WithRetry overrides the retry policy for PageSpeed calls.
func WithRetry(cfg resilience.RetryConfig) AuditorOption {
	return func(a *Auditor) { a.retry = cfg }
}

// WithBreaker overrides the circuit breaker guarding PageSpeed.
func WithBreaker(cb *resilience.CircuitBreaker) AuditorOption {
	return func(a *Auditor) { a.breaker = cb }
}

// WithAuditClock overrides the audit timestamp source.
func WithAuditClock(now func() time.Time) AuditorOption {
	return func(a *Auditor) { a.now = now }
}

// NewAuditor creates an Auditor over a PageSpeed client.
func NewAuditor(psi pagespeed.Client, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		psi:   psi,
		cache: cache.Noop{},
		retry: resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("pagespeed", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			ShouldTrip:       resilience.IsTransient,
		}),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}
	if a.retry.OnRetry == nil {
		a.retry.OnRetry = resilience.RetryLogger("pagespeed", "run")
	}
	return a
}

// Audit returns a fresh or cached audit of rawURL. Cache failures and CMS
// detection failures are logged and do not fail the audit.
func (a *Auditor) Audit(ctx context.Context, rawURL string) (*model.QualityAudit, error) {
	target := normalize.NormalizeURL(rawURL)
	if target == "" {
		return nil, &model.ValidationError{Field: "url", Reason: "must not be empty"}
	}

	if hit, ok, err := a.cache.Get(ctx, target); err != nil {
		zap.L().Warn("audit: cache lookup failed", zap.String("url", target), zap.Error(err))
	} else if ok {
		zap.L().Debug("audit: cache hit", zap.String("url", target))
		return hit, nil
	}

	resp, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*pagespeed.Response, error) {
		return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*pagespeed.Response, error) {
			return a.psi.Run(ctx, target)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "audit: pagespeed %s", target)
	}

	result := FromPageSpeed(resp, a.now())
	if a.detector != nil {
		stack, err := a.detector.Detect(ctx, result.URL)
		if err != nil {
			zap.L().Debug("audit: stack detection failed", zap.String("url", result.URL), zap.Error(err))
		} else {
			a.detector.Apply(result, stack)
		}
	}

	if err := a.cache.Set(ctx, target, result); err != nil {
		zap.L().Warn("audit: cache store failed", zap.String("url", target), zap.Error(err))
	}

	zap.L().Info("audit: site audited",
		zap.String("url", result.URL),
		zap.Int("overall_score", result.OverallScore),
		zap.Int("issues", len(result.Issues)),
	)
	return result, nil
}
