package audit

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadhunter/internal/model"
)

// DefaultOutdatedCMS maps a CMS to the oldest major version still
// considered current.
var DefaultOutdatedCMS = map[string]int{
	"wordpress":  6,
	"joomla":     4,
	"drupal":     10,
	"prestashop": 8,
}

var generatorRe = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z!.\- ]*?)\s+v?(\d+(?:\.\d+)*)`)

// Stack is the CMS announced by a page's generator meta tag.
type Stack struct {
	CMS     string
	Version string
}

// Major returns the leading version number, or -1 when unknown.
func (s Stack) Major() int {
	head, _, _ := strings.Cut(s.Version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

// ParseGenerator extracts a CMS name and version from a generator string
// such as "WordPress 5.8.2" or "Joomla! - Open Source Content Management".
func ParseGenerator(content string) Stack {
	content = strings.TrimSpace(content)
	if m := generatorRe.FindStringSubmatch(content); m != nil {
		return Stack{CMS: strings.TrimSpace(m[1]), Version: m[2]}
	}
	name, _, _ := strings.Cut(content, " - ")
	return Stack{CMS: strings.TrimSpace(name)}
}

// cmsKey reduces a CMS name to the lower-case letters used as a config key.
func cmsKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StackDetector reads a page's generator meta tag to find its CMS.
type StackDetector struct {
	collector *colly.Collector
	minMajor  map[string]int
}

// NewStackDetector creates a detector. minMajor overrides
// DefaultOutdatedCMS when non-empty.
func NewStackDetector(minMajor map[string]int, timeout time.Duration) *StackDetector {
	if len(minMajor) == 0 {
		minMajor = DefaultOutdatedCMS
	}
	keyed := make(map[string]int, len(minMajor))
	for k, v := range minMajor {
		keyed[cmsKey(k)] = v
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent("Mozilla/5.0 (compatible; leadhunter/1.0)"),
		colly.MaxDepth(1),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	return &StackDetector{collector: c, minMajor: keyed}
}

// Detect fetches pageURL and returns the announced stack. A page without a
// generator tag yields a zero Stack and no error.
func (d *StackDetector) Detect(ctx context.Context, pageURL string) (Stack, error) {
	if err := ctx.Err(); err != nil {
		return Stack{}, err
	}

	c := d.collector.Clone()
	var (
		mu    sync.Mutex
		stack Stack
		fail  error
	)
	c.OnHTML(`meta[name]`, func(e *colly.HTMLElement) {
		if !strings.EqualFold(e.Attr("name"), "generator") {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if stack.CMS == "" {
			stack = ParseGenerator(e.Attr("content"))
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		fail = eris.Wrapf(err, "audit: fetch %s (status %d)", pageURL, r.StatusCode)
	})

	if err := c.Visit(pageURL); err != nil {
		return Stack{}, eris.Wrapf(err, "audit: visit %s", pageURL)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fail != nil {
		return Stack{}, fail
	}
	return stack, nil
}

// Outdated reports whether s runs a major version below the configured
// minimum for its CMS. Unknown CMSs and versions are never outdated.
func (d *StackDetector) Outdated(s Stack) bool {
	floor, ok := d.minMajor[cmsKey(s.CMS)]
	if !ok {
		return false
	}
	major := s.Major()
	return major >= 0 && major < floor
}

// Apply merges a detected stack into audit and flags outdated versions.
func (d *StackDetector) Apply(a *model.QualityAudit, s Stack) {
	if s.CMS == "" {
		return
	}
	if a.CMS == nil {
		cms := s.CMS
		a.CMS = &cms
	}
	if s.Version != "" {
		v := s.Version
		a.CMSVersion = &v
	}
	if !d.Outdated(s) || a.IsOutdated {
		return
	}
	a.IsOutdated = true
	a.Issues = append(a.Issues, model.Issue{
		Type:           model.IssueTypeOutdated,
		Severity:       model.SeverityWarning,
		Title:          "CMS obsolète",
		Message:        fmt.Sprintf("%s %s n'est plus à jour", s.CMS, s.Version),
		Recommendation: "Mettre à jour le CMS et ses extensions ou refondre le site",
	})
}
