// Package scorer computes the prospect score of a business from its website
// quality signals. A higher score means a better prospect for a web agency.
package scorer

import (
	"math"
)

const (
	// NoWebsiteScore is the score of a business without any website.
	NoWebsiteScore = 95
	// BaseScore is the starting score of a business with a website.
	BaseScore = 50

	// MinScore and MaxScore bound every prospect score.
	MinScore = 0
	MaxScore = 100

	// maxIssuesBonus caps the contribution of detected issues.
	maxIssuesBonus = 15
	issueWeight    = 3
)

// Factors are the inputs of the scoring function. Pointer fields are
// optional; an absent factor contributes nothing.
type Factors struct {
	HasWebsite       bool  `json:"has_website"`
	PerformanceScore *int  `json:"performance_score,omitempty"`
	SEOScore         *int  `json:"seo_score,omitempty"`
	IsHTTPS          *bool `json:"is_https,omitempty"`
	IsMobileFriendly *bool `json:"is_mobile_friendly,omitempty"`
	IsOutdated       *bool `json:"is_outdated,omitempty"`
	IssuesCount      *int  `json:"issues_count,omitempty"`
}

// Score returns the prospect score in [0, 100] for the given factors.
func Score(f Factors) int {
	if !f.HasWebsite {
		return NoWebsiteScore
	}

	score := BaseScore

	if f.PerformanceScore != nil {
		score += performanceAdjustment(*f.PerformanceScore)
	}
	if f.SEOScore != nil {
		score += seoAdjustment(*f.SEOScore)
	}
	if f.IsHTTPS != nil && !*f.IsHTTPS {
		score += 15
	}
	if f.IsMobileFriendly != nil && !*f.IsMobileFriendly {
		score += 20
	}
	if f.IsOutdated != nil && *f.IsOutdated {
		score += 15
	}
	if f.IssuesCount != nil && *f.IssuesCount > 0 {
		score += min(*f.IssuesCount*issueWeight, maxIssuesBonus)
	}

	return Clamp(score)
}

func performanceAdjustment(p int) int {
	switch {
	case p < 30:
		return 25
	case p < 50:
		return 15
	case p < 70:
		return 5
	default:
		return -10
	}
}

func seoAdjustment(s int) int {
	switch {
	case s < 30:
		return 20
	case s < 50:
		return 10
	case s < 70:
		return 5
	default:
		return -5
	}
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	return max(MinScore, min(MaxScore, score))
}

// OverallScore is the rounded mean of the present sub-scores, or 50 when
// none is present.
func OverallScore(subScores ...*int) int {
	sum, n := 0, 0
	for _, s := range subScores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		return BaseScore
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// NeedsRedesign reports whether a business with a website shows at least
// one audit signal that justifies rebuilding the site: poor performance,
// no HTTPS, no mobile support or an outdated stack. Absent signals never
// count.
func NeedsRedesign(f Factors) bool {
	if !f.HasWebsite {
		return false
	}
	if f.PerformanceScore != nil && *f.PerformanceScore < 50 {
		return true
	}
	if f.IsHTTPS != nil && !*f.IsHTTPS {
		return true
	}
	if f.IsMobileFriendly != nil && !*f.IsMobileFriendly {
		return true
	}
	return f.IsOutdated != nil && *f.IsOutdated
}
