package score

import (
	"time"

	"github.com/google/uuid"
)

type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
)

func (p Period) Valid() bool {
	return p == PeriodAllTime || p == PeriodWeek || p == PeriodMonth
}

var Periods = []Period{PeriodAllTime, PeriodWeek, PeriodMonth}

// Counters is one bucket of the rollup. UniqueProducts is tracked but is
// not a summand of the engagement score.
type Counters struct {
	Achievements   int `json:"achievements"`
	PageViews      int `json:"page_views"`
	Rankings       int `json:"rankings"`
	Searches       int `json:"searches"`
	UniqueProducts int `json:"unique_products"`
}

// Score is the derived engagement score for the bucket.
func (c Counters) Score() int {
	return c.Achievements + c.PageViews + c.Rankings + c.Searches
}

func (c Counters) IsZero() bool {
	return c.Achievements == 0 && c.PageViews == 0 && c.Rankings == 0 &&
		c.Searches == 0 && c.UniqueProducts == 0
}

// Row is the per-user rollup: the same counters duplicated across the three
// period buckets.
type Row struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AllTime       Counters  `json:"all_time"`
	Week          Counters  `json:"week"`
	Month         Counters  `json:"month"`
	LastUpdatedAt time.Time `json:"last_updated_at" db:"last_updated_at"`
}

func (r Row) Bucket(p Period) Counters {
	switch p {
	case PeriodWeek:
		return r.Week
	case PeriodMonth:
		return r.Month
	default:
		return r.AllTime
	}
}

const (
	WeekWindow  = 7 * 24 * time.Hour
	MonthWindow = 30 * 24 * time.Hour
)

// InWindow reports whether ts should contribute to the period bucket when
// applied at `now`. The all-time bucket always receives the delta; the short
// buckets are zeroed by the periodic resets, and this rolling guard keeps
// late-arriving timestamps from inflating them.
func InWindow(p Period, ts, now time.Time) bool {
	switch p {
	case PeriodAllTime:
		return true
	case PeriodWeek:
		return !ts.Before(now.Add(-WeekWindow)) && !ts.After(now.Add(time.Minute))
	case PeriodMonth:
		return !ts.Before(now.Add(-MonthWindow)) && !ts.After(now.Add(time.Minute))
	}
	return false
}
