package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }

func TestScore_NoWebsite(t *testing.T) {
	t.Parallel()

	// Audit signals are ignored when there is no site at all.
	got := Score(Factors{
		HasWebsite:       false,
		PerformanceScore: intPtr(99),
		SEOScore:         intPtr(99),
		IsHTTPS:          boolPtr(true),
	})
	assert.Equal(t, 95, got)
	assert.Equal(t, PriorityHot, PriorityFromScore(got))
}

func TestScore_WebsiteOnly(t *testing.T) {
	t.Parallel()

	got := Score(Factors{HasWebsite: true})
	assert.Equal(t, 50, got)
	assert.Equal(t, PriorityWarm, PriorityFromScore(got))
}

func TestScore_ClampedToMax(t *testing.T) {
	t.Parallel()

	got := Score(Factors{
		HasWebsite:       true,
		PerformanceScore: intPtr(35),
		SEOScore:         intPtr(45),
		IsHTTPS:          boolPtr(false),
		IsMobileFriendly: boolPtr(false),
		IsOutdated:       boolPtr(true),
		IssuesCount:      intPtr(4),
	})
	assert.Equal(t, 100, got)
	assert.Equal(t, PriorityHot, PriorityFromScore(got))
}

func TestScore_HealthySite(t *testing.T) {
	t.Parallel()

	got := Score(Factors{
		HasWebsite:       true,
		PerformanceScore: intPtr(92),
		SEOScore:         intPtr(95),
		IsHTTPS:          boolPtr(true),
		IsMobileFriendly: boolPtr(true),
		IsOutdated:       boolPtr(false),
	})
	assert.Equal(t, 35, got)
	assert.Equal(t, PriorityCold, PriorityFromScore(got))
}

func TestScore_Tiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    Factors
		want int
	}{
		{"perf 29", Factors{HasWebsite: true, PerformanceScore: intPtr(29)}, 75},
		{"perf 30", Factors{HasWebsite: true, PerformanceScore: intPtr(30)}, 65},
		{"perf 49", Factors{HasWebsite: true, PerformanceScore: intPtr(49)}, 65},
		{"perf 50", Factors{HasWebsite: true, PerformanceScore: intPtr(50)}, 55},
		{"perf 69", Factors{HasWebsite: true, PerformanceScore: intPtr(69)}, 55},
		{"perf 70", Factors{HasWebsite: true, PerformanceScore: intPtr(70)}, 40},
		{"seo 0", Factors{HasWebsite: true, SEOScore: intPtr(0)}, 70},
		{"seo 30", Factors{HasWebsite: true, SEOScore: intPtr(30)}, 60},
		{"seo 50", Factors{HasWebsite: true, SEOScore: intPtr(50)}, 55},
		{"seo 70", Factors{HasWebsite: true, SEOScore: intPtr(70)}, 45},
		{"https true", Factors{HasWebsite: true, IsHTTPS: boolPtr(true)}, 50},
		{"https false", Factors{HasWebsite: true, IsHTTPS: boolPtr(false)}, 65},
		{"mobile false", Factors{HasWebsite: true, IsMobileFriendly: boolPtr(false)}, 70},
		{"outdated", Factors{HasWebsite: true, IsOutdated: boolPtr(true)}, 65},
		{"not outdated", Factors{HasWebsite: true, IsOutdated: boolPtr(false)}, 50},
		{"one issue", Factors{HasWebsite: true, IssuesCount: intPtr(1)}, 53},
		{"issues capped", Factors{HasWebsite: true, IssuesCount: intPtr(20)}, 65},
		{"zero issues", Factors{HasWebsite: true, IssuesCount: intPtr(0)}, 50},
		{"floor", Factors{HasWebsite: true, PerformanceScore: intPtr(100), SEOScore: intPtr(100)}, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Score(tt.f))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	t.Parallel()

	for perf := 0; perf <= 100; perf += 10 {
		for seo := 0; seo <= 100; seo += 10 {
			for issues := 0; issues <= 10; issues += 5 {
				for _, flag := range []bool{true, false} {
					got := Score(Factors{
						HasWebsite:       true,
						PerformanceScore: intPtr(perf),
						SEOScore:         intPtr(seo),
						IsHTTPS:          boolPtr(flag),
						IsMobileFriendly: boolPtr(flag),
						IsOutdated:       boolPtr(!flag),
						IssuesCount:      intPtr(issues),
					})
					require.GreaterOrEqual(t, got, MinScore)
					require.LessOrEqual(t, got, MaxScore)
				}
			}
		}
	}
}

func TestPriorityFromScore_Thresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  Priority
	}{
		{100, PriorityHot},
		{75, PriorityHot},
		{74, PriorityWarm},
		{50, PriorityWarm},
		{49, PriorityCold},
		{0, PriorityCold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PriorityFromScore(tt.score), "score %d", tt.score)
	}
}

func TestPriorityFromScore_Monotonic(t *testing.T) {
	t.Parallel()

	for s := 1; s <= 100; s++ {
		assert.GreaterOrEqual(t, PriorityFromScore(s).Rank(), PriorityFromScore(s-1).Rank())
	}
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	p, err := ParsePriority(" HOT ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHot, p)

	_, err = ParsePriority("lukewarm")
	assert.Error(t, err)
}

func TestOverallScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50, OverallScore(nil, nil, nil, nil))
	assert.Equal(t, 50, OverallScore())
	assert.Equal(t, 80, OverallScore(intPtr(80), nil, nil, nil))
	assert.Equal(t, 63, OverallScore(intPtr(50), intPtr(75), nil, nil))
	assert.Equal(t, 67, OverallScore(intPtr(90), intPtr(60), intPtr(50), nil))
}

func TestNeedsRedesign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		f    Factors
		want bool
	}{
		{"no website", Factors{HasWebsite: false, IsHTTPS: boolPtr(false)}, false},
		{"unaudited site", Factors{HasWebsite: true}, false},
		{"slow site", Factors{HasWebsite: true, PerformanceScore: intPtr(40)}, true},
		{"fast site", Factors{HasWebsite: true, PerformanceScore: intPtr(80)}, false},
		{"no https", Factors{HasWebsite: true, IsHTTPS: boolPtr(false)}, true},
		{"not mobile", Factors{HasWebsite: true, IsMobileFriendly: boolPtr(false)}, true},
		{"outdated", Factors{HasWebsite: true, IsOutdated: boolPtr(true)}, true},
		{"healthy", Factors{
			HasWebsite:       true,
			PerformanceScore: intPtr(90),
			IsHTTPS:          boolPtr(true),
			IsMobileFriendly: boolPtr(true),
			IsOutdated:       boolPtr(false),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NeedsRedesign(tt.f))
		})
	}
}
