package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/normalize"
)

// DefaultProbeTimeout bounds each existence check.
const DefaultProbeTimeout = 10 * time.Second

// CheckResult is the outcome of probing a website address.
type CheckResult struct {
	Exists   bool
	FinalURL string
	IsHTTPS  bool
	Status   int
}

// Prober checks whether websites answer.
type Prober struct {
	http *http.Client
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithTransport routes probe requests through rt.
func WithTransport(rt http.RoundTripper) ProberOption {
	return func(p *Prober) { p.http.Transport = rt }
}

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.http.Timeout = d
		}
	}
}

// NewProber creates a Prober that follows redirects.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{http: &http.Client{Timeout: DefaultProbeTimeout}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check probes rawURL over https, then over plain http. A 2xx answer after
// redirects means the site exists.
func (p *Prober) Check(ctx context.Context, rawURL string) (CheckResult, error) {
	target := normalize.NormalizeURL(rawURL)
	if target == "" {
		return CheckResult{}, eris.New("audit: empty url")
	}

	res, err := p.probe(ctx, target)
	if err == nil && res.Exists {
		return res, nil
	}
	if strings.HasPrefix(target, "https://") {
		plain := "http://" + strings.TrimPrefix(target, "https://")
		res, err = p.probe(ctx, plain)
		if err == nil && res.Exists {
			res.IsHTTPS = strings.HasPrefix(res.FinalURL, "https://")
			return res, nil
		}
	}
	if err != nil {
		return CheckResult{}, err
	}
	return res, nil
}

func (p *Prober) probe(ctx context.Context, target string) (CheckResult, error) {
	res, err := p.request(ctx, http.MethodHead, target)
	if err == nil && res.Status == http.StatusMethodNotAllowed {
		res, err = p.request(ctx, http.MethodGet, target)
	}
	return res, err
}

func (p *Prober) request(ctx context.Context, method, target string) (CheckResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return CheckResult{}, eris.Wrapf(err, "audit: build probe for %s", target)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; leadhunter/1.0)")

	resp, err := p.http.Do(req)
	if err != nil {
		return CheckResult{}, eris.Wrapf(err, "audit: probe %s", target)
	}
	defer resp.Body.Close() //nolint:errcheck

	final := resp.Request.URL.String()
	return CheckResult{
		Exists:   resp.StatusCode >= 200 && resp.StatusCode < 300,
		FinalURL: final,
		IsHTTPS:  strings.HasPrefix(final, "https://"),
		Status:   resp.StatusCode,
	}, nil
}

// Candidates lists the domains tried when looking for a business's site.
func Candidates(name, city string) []string {
	slug := normalize.Slug(name)
	if slug == "" {
		return nil
	}
	out := []string{
		slug + ".fr",
		slug + ".com",
		"www." + slug + ".fr",
		"www." + slug + ".com",
	}
	if c := strings.ReplaceAll(normalize.Slug(city), "-", ""); c != "" {
		out = append(out, slug+"-"+c+".fr", slug+c+".fr")
	}
	return out
}

// FindWebsite tries common domain variations of name and city and returns
// the first that answers. It reports false when none does.
func (p *Prober) FindWebsite(ctx context.Context, name, city string) (CheckResult, bool) {
	for _, domain := range Candidates(name, city) {
		if ctx.Err() != nil {
			return CheckResult{}, false
		}
		res, err := p.Check(ctx, domain)
		if err != nil {
			zap.L().Debug("audit: candidate unreachable", zap.String("domain", domain), zap.Error(err))
			continue
		}
		if res.Exists {
			if res.FinalURL == "" {
				res.FinalURL = "https://" + domain
			}
			return res, true
		}
	}
	return CheckResult{}, false
}
