package query

import (
	"cmp"
	"slices"
	"time"

	"github.com/sells-group/leadhunter/internal/model"
	"github.com/sells-group/leadhunter/internal/scorer"
)

const (
	topSectorsLimit = 5
	trendDays       = 7
)

// Stats summarizes a lead collection for the dashboard.
type Stats struct {
	Total           int                     `json:"total"`
	WithWebsite     int                     `json:"with_website"`
	WithoutWebsite  int                     `json:"without_website"`
	Audited         int                     `json:"audited"`
	NeedingRedesign int                     `json:"needing_redesign"`
	AverageScore    int                     `json:"average_score"`
	ByPriority      map[scorer.Priority]int `json:"by_priority"`
	ByStatus        map[model.Status]int    `json:"by_status"`
	BySource        map[model.Source]int    `json:"by_source"`
	TopSectors      []SectorCount           `json:"top_sectors"`
	Trend           []DayCount              `json:"trend"`
}

// SectorCount is the number of leads in one sector.
type SectorCount struct {
	Sector model.Sector `json:"sector"`
	Label  string       `json:"label"`
	Count  int          `json:"count"`
}

// DayCount is the activity of one calendar day.
type DayCount struct {
	Date      string `json:"date"`
	New       int    `json:"new"`
	Contacted int    `json:"contacted"`
}

// ComputeStats aggregates items. The trend covers the seven calendar days
// ending on now's day, in now's location.
func ComputeStats(items []*model.Business, now time.Time) Stats {
	s := Stats{
		Total:      len(items),
		ByPriority: make(map[scorer.Priority]int, len(scorer.Priorities)),
		ByStatus:   make(map[model.Status]int, len(model.Statuses)),
		BySource:   make(map[model.Source]int, len(model.Sources)),
		TopSectors: []SectorCount{},
	}
	for _, p := range scorer.Priorities {
		s.ByPriority[p] = 0
	}
	for _, st := range model.Statuses {
		s.ByStatus[st] = 0
	}
	for _, src := range model.Sources {
		s.BySource[src] = 0
	}

	loc := now.Location()
	today := startOfDay(now)
	days := make([]DayCount, trendDays)
	for i := range days {
		days[i].Date = today.AddDate(0, 0, i-trendDays+1).Format(time.DateOnly)
	}
	dayIndex := func(t time.Time) int {
		d := startOfDay(t.In(loc))
		diff := int(today.Sub(d).Hours() / 24)
		if diff < 0 || diff >= trendDays {
			return -1
		}
		return trendDays - 1 - diff
	}

	sectors := make(map[model.Sector]int)
	scoreSum := 0
	for _, b := range items {
		if b.HasWebsite() {
			s.WithWebsite++
		} else {
			s.WithoutWebsite++
		}
		if b.Audit != nil {
			s.Audited++
		}
		if b.NeedsRedesign() {
			s.NeedingRedesign++
		}
		scoreSum += b.ProspectScore()
		s.ByPriority[b.Priority()]++
		s.ByStatus[b.Status]++
		s.BySource[b.Source]++
		if b.Sector != "" {
			sectors[b.Sector]++
		}
		if i := dayIndex(b.CreatedAt); i >= 0 {
			days[i].New++
		}
		if b.LastContactedAt != nil {
			if i := dayIndex(*b.LastContactedAt); i >= 0 {
				days[i].Contacted++
			}
		}
	}
	if len(items) > 0 {
		s.AverageScore = (scoreSum + len(items)/2) / len(items)
	}

	for sector, n := range sectors {
		s.TopSectors = append(s.TopSectors, SectorCount{Sector: sector, Label: sector.Label(), Count: n})
	}
	slices.SortFunc(s.TopSectors, func(a, b SectorCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Sector, b.Sector)
	})
	if len(s.TopSectors) > topSectorsLimit {
		s.TopSectors = s.TopSectors[:topSectorsLimit]
	}
	s.Trend = days
	return s
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
