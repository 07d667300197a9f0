package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/audit"
	"github.com/sells-group/leadhunter/internal/cache"
	"github.com/sells-group/leadhunter/internal/config"
	"github.com/sells-group/leadhunter/internal/discovery"
	"github.com/sells-group/leadhunter/internal/lifecycle"
	"github.com/sells-group/leadhunter/internal/resilience"
	"github.com/sells-group/leadhunter/internal/store"
	"github.com/sells-group/leadhunter/pkg/google"
	"github.com/sells-group/leadhunter/pkg/pagespeed"
	"github.com/sells-group/leadhunter/pkg/sirene"
)

// appEnv holds the collaborators shared by commands.
type appEnv struct {
	Store   store.Store
	Tracker *lifecycle.Tracker
	Auditor *audit.Auditor
	Prober  *audit.Prober
	Scanner *discovery.Scanner

	cache cache.AuditCache
}

// initStore opens the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	if cfg.Store.Driver == config.DriverMemory || cfg.Store.Driver == "" {
		zap.L().Warn("using the in-memory store; leads are lost when the process exits")
	}
	return store.Open(ctx, cfg.Store)
}

// initCache connects to Redis when a URL is configured. Connection failures
// fall back to no caching.
func initCache(ctx context.Context) cache.AuditCache {
	if cfg.Cache.RedisURL == "" {
		return cache.Noop{}
	}
	c, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, time.Duration(cfg.Cache.TTLHours)*time.Hour)
	if err != nil {
		zap.L().Warn("audit cache disabled", zap.Error(err))
		return cache.Noop{}
	}
	return c
}

// initAuditor wires PageSpeed with retries, a circuit breaker, stack
// detection and the audit cache.
func initAuditor(ac cache.AuditCache) *audit.Auditor {
	psi := pagespeed.NewClient(cfg.PageSpeed.Key,
		pagespeed.WithBaseURL(cfg.PageSpeed.BaseURL),
		pagespeed.WithStrategy(pagespeed.Strategy(cfg.PageSpeed.Strategy)),
		pagespeed.WithTimeout(time.Duration(cfg.PageSpeed.TimeoutSecs)*time.Second),
	)
	opts := []audit.AuditorOption{
		audit.WithCache(ac),
		audit.WithRetry(resilience.RetryConfigFrom(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)),
		audit.WithBreaker(resilience.NewCircuitBreaker("pagespeed",
			resilience.CircuitBreakerConfigFrom(cfg.Retry.BreakerThreshold, cfg.Retry.BreakerResetSecs))),
	}
	if cfg.Audit.DetectStack {
		opts = append(opts, audit.WithDetector(audit.NewStackDetector(cfg.Audit.OutdatedCMS, probeTimeout())))
	}
	return audit.NewAuditor(psi, opts...)
}

func probeTimeout() time.Duration {
	return time.Duration(cfg.Audit.ProbeTimeoutSecs) * time.Second
}

// initEnv builds every collaborator. Sources whose API key is missing are
// left out; the scans that need them report it.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{Store: st, Tracker: lifecycle.New(st), cache: initCache(ctx)}
	env.Auditor = initAuditor(env.cache)
	env.Prober = audit.NewProber(audit.WithProbeTimeout(probeTimeout()))

	opts := []discovery.Option{
		discovery.WithAuditor(env.Auditor),
		discovery.WithWebsiteFinder(env.Prober),
	}
	if cfg.Google.Key != "" {
		opts = append(opts, discovery.WithPlaces(google.NewClient(cfg.Google.Key,
			google.WithBaseURL(cfg.Google.BaseURL),
			google.WithLocale(cfg.Google.Language, cfg.Google.Region),
		)))
	}
	if cfg.Sirene.Key != "" {
		opts = append(opts, discovery.WithRegistry(sirene.NewClient(cfg.Sirene.Key,
			sirene.WithBaseURL(cfg.Sirene.BaseURL),
		)))
	}
	env.Scanner = discovery.NewScanner(env.Tracker, discovery.Config{
		Concurrency: cfg.Scan.Concurrency,
		CallSpacing: time.Duration(cfg.Scan.CallSpacingMs) * time.Millisecond,
		PageDelay:   time.Duration(cfg.Scan.PageDelayMs) * time.Millisecond,
	}, opts...)

	return env, nil
}

// Close releases the store and the cache.
func (e *appEnv) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			zap.L().Warn("close audit cache", zap.Error(err))
		}
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// requireKey fails fast when a scan's source is not configured.
func requireKey(feature string) error {
	if err := cfg.Validate(feature); err != nil {
		return eris.Wrapf(err, "%s scan", feature)
	}
	return nil
}
