package streak

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDailyRank  Type = "daily_rank"
	TypeDailyLogin Type = "daily_login"
)

func (t Type) Valid() bool {
	return t == TypeDailyRank || t == TypeDailyLogin
}

// Streak holds one row per (user, type). Invariant: Longest >= Current >= 0.
type Streak struct {
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	Type            Type      `json:"type" db:"type"`
	Current         int       `json:"current" db:"current"`
	Longest         int       `json:"longest" db:"longest"`
	LastActivityDay time.Time `json:"last_activity_day" db:"last_activity_day"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Advance applies one activity at time `at` to the streak and returns the
// updated row. Consecutive UTC days extend the run, a same-day repeat is a
// no-op, any gap starts the run over at 1.
func Advance(s Streak, at time.Time) Streak {
	day := Day(at)

	switch {
	case s.LastActivityDay.IsZero():
		s.Current = 1
	case day.Equal(Day(s.LastActivityDay)):
		return s
	case day.Equal(Day(s.LastActivityDay).AddDate(0, 0, 1)):
		s.Current++
	case day.Before(Day(s.LastActivityDay)):
		// Out-of-order activity; never rewind the row.
		return s
	default:
		s.Current = 1
	}

	if s.Current > s.Longest {
		s.Longest = s.Current
	}
	s.LastActivityDay = day
	return s
}
