// Package pagespeed is a client for the PageSpeed Insights v5 API.
package pagespeed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/resilience"
)

const defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5"

// Strategy selects the device Lighthouse emulates.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// CategoryIDs are requested on every run.
var CategoryIDs = []string{"performance", "accessibility", "best-practices", "seo"}

// Client runs Lighthouse analyses.
type Client interface {
	Run(ctx context.Context, pageURL string) (*Response, error)
}

// Response is the subset of a runPagespeed response the auditor reads.
type Response struct {
	ID                   string           `json:"id"`
	LighthouseResult     LighthouseResult `json:"lighthouseResult"`
	AnalysisUTCTimestamp string           `json:"analysisUTCTimestamp"`
}

// LighthouseResult holds category scores, audits and detected stacks.
type LighthouseResult struct {
	RequestedURL      string           `json:"requestedUrl"`
	FinalURL          string           `json:"finalUrl"`
	LighthouseVersion string           `json:"lighthouseVersion"`
	Categories        Categories       `json:"categories"`
	Audits            map[string]Audit `json:"audits"`
	StackPacks        []StackPack      `json:"stackPacks"`
	RunWarnings       []string         `json:"runWarnings"`
}

// Categories are the four Lighthouse category results. Missing categories
// are nil.
type Categories struct {
	Performance   *Category `json:"performance"`
	Accessibility *Category `json:"accessibility"`
	BestPractices *Category `json:"best-practices"`
	SEO           *Category `json:"seo"`
}

// Category is a Lighthouse category with a 0..1 score.
type Category struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Score *float64 `json:"score"`
}

// Audit is a single Lighthouse audit.
type Audit struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Score        *float64 `json:"score"`
	DisplayValue string   `json:"displayValue,omitempty"`
	NumericValue *float64 `json:"numericValue,omitempty"`
}

// StackPack is a technology Lighthouse detected on the page.
type StackPack struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL. An empty url keeps the
// default.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithStrategy overrides the emulated device.
func WithStrategy(s Strategy) Option {
	return func(c *httpClient) {
		if s != "" {
			c.strategy = s
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	strategy Strategy
	http     *http.Client
}

// NewClient creates a PageSpeed Insights client. The API key is optional.
// Lighthouse runs are slow, so the default timeout is a minute.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		strategy: StrategyMobile,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Run(ctx context.Context, pageURL string) (*Response, error) {
	if pageURL == "" {
		return nil, eris.New("pagespeed: empty url")
	}

	q := url.Values{}
	q.Set("url", pageURL)
	for _, cat := range CategoryIDs {
		q.Add("category", cat)
	}
	q.Set("strategy", string(c.strategy))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/runPagespeed?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pagespeed: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("pagespeed", resp.StatusCode, body)
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "pagespeed: unmarshal response")
	}
	return &result, nil
}
