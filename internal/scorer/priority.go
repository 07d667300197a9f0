package scorer

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Priority is the coarse tier derived from a prospect score.
type Priority string

// Priority tiers.
const (
	PriorityHot  Priority = "hot"
	PriorityWarm Priority = "warm"
	PriorityCold Priority = "cold"
)

// Tier thresholds.
const (
	HotThreshold  = 75
	WarmThreshold = 50
)

// Priorities lists every tier from the best prospect to the worst.
var Priorities = []Priority{PriorityHot, PriorityWarm, PriorityCold}

// PriorityFromScore maps a score to its tier.
func PriorityFromScore(score int) Priority {
	switch {
	case score >= HotThreshold:
		return PriorityHot
	case score >= WarmThreshold:
		return PriorityWarm
	default:
		return PriorityCold
	}
}

// Rank orders tiers: hot > warm > cold. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHot:
		return 3
	case PriorityWarm:
		return 2
	case PriorityCold:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", eris.Errorf("scorer: unknown priority %q", s)
	}
	return p, nil
}
