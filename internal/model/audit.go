package model

import (
	"slices"
	"time"

	"github.com/sells-group/leadhunter/internal/scorer"
)

// QualityAudit is the result of a website quality audit. A business holds
// at most one audit; a newer audit replaces the previous one.
type QualityAudit struct {
	BusinessID         string    `json:"business_id,omitempty"`
	URL                string    `json:"url"`
	PerformanceScore   *int      `json:"performance_score"`
	AccessibilityScore *int      `json:"accessibility_score"`
	SEOScore           *int      `json:"seo_score"`
	BestPracticesScore *int      `json:"best_practices_score"`
	IsHTTPS            bool      `json:"is_https"`
	IsMobileFriendly   bool      `json:"is_mobile_friendly"`
	IsOutdated         bool      `json:"is_outdated"`
	LoadTimeMs         *int      `json:"load_time_ms"`
	CMS                *string   `json:"cms"`
	CMSVersion         *string   `json:"cms_version"`
	Framework          *string   `json:"framework"`
	Issues             []Issue   `json:"issues"`
	OverallScore       int       `json:"overall_score"`
	AuditedAt          time.Time `json:"audited_at"`
}

// Issue is a single problem detected by an audit.
type Issue struct {
	Type           IssueType `json:"type"`
	Severity       Severity  `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation,omitempty"`
}

// Factors returns the scoring inputs carried by the audit.
func (a *QualityAudit) Factors() scorer.Factors {
	https := a.IsHTTPS
	mobile := a.IsMobileFriendly
	outdated := a.IsOutdated
	issues := len(a.Issues)
	return scorer.Factors{
		HasWebsite:       true,
		PerformanceScore: a.PerformanceScore,
		SEOScore:         a.SEOScore,
		IsHTTPS:          &https,
		IsMobileFriendly: &mobile,
		IsOutdated:       &outdated,
		IssuesCount:      &issues,
	}
}

// ComputeOverall sets OverallScore from the four category scores.
func (a *QualityAudit) ComputeOverall() {
	a.OverallScore = scorer.OverallScore(
		a.PerformanceScore,
		a.AccessibilityScore,
		a.SEOScore,
		a.BestPracticesScore,
	)
}

// CriticalIssues counts issues with critical severity.
func (a *QualityAudit) CriticalIssues() int {
	n := 0
	for _, i := range a.Issues {
		if i.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the audit.
func (a *QualityAudit) Clone() *QualityAudit {
	c := *a
	c.PerformanceScore = clonePtr(a.PerformanceScore)
	c.AccessibilityScore = clonePtr(a.AccessibilityScore)
	c.SEOScore = clonePtr(a.SEOScore)
	c.BestPracticesScore = clonePtr(a.BestPracticesScore)
	c.LoadTimeMs = clonePtr(a.LoadTimeMs)
	c.CMS = clonePtr(a.CMS)
	c.CMSVersion = clonePtr(a.CMSVersion)
	c.Framework = clonePtr(a.Framework)
	c.Issues = slices.Clone(a.Issues)
	return &c
}
