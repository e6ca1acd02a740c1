package streak

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceFirstActivity(t *testing.T) {
	s := Advance(Streak{Type: TypeDailyRank}, time.Date(2025, 3, 1, 15, 4, 5, 0, time.UTC))

	if s.Current != 1 || s.Longest != 1 {
		t.Errorf("current=%d longest=%d, want 1/1", s.Current, s.Longest)
	}
	if !s.LastActivityDay.Equal(day(2025, 3, 1)) {
		t.Errorf("last day = %v, want 2025-03-01", s.LastActivityDay)
	}
}

func TestAdvanceSameDayNoOp(t *testing.T) {
	s := Streak{Current: 3, Longest: 5, LastActivityDay: day(2025, 3, 1)}

	got := Advance(s, time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC))
	if got != s {
		t.Errorf("same-day activity changed the row: %+v", got)
	}
}

func TestAdvanceConsecutiveThenGap(t *testing.T) {
	var s Streak
	for _, d := range []int{1, 2, 3} {
		s = Advance(s, day(2025, 3, d))
	}
	if s.Current != 3 || s.Longest != 3 {
		t.Fatalf("after three straight days current=%d longest=%d, want 3/3", s.Current, s.Longest)
	}

	// Skip March 4 entirely.
	s = Advance(s, day(2025, 3, 5))

	if s.Current != 1 {
		t.Errorf("current = %d after a gap, want 1", s.Current)
	}
	if s.Longest != 3 {
		t.Errorf("longest = %d, want 3 preserved", s.Longest)
	}
	if !s.LastActivityDay.Equal(day(2025, 3, 5)) {
		t.Errorf("last day = %v, want 2025-03-05", s.LastActivityDay)
	}
}

func TestAdvanceOutOfOrderNeverRewinds(t *testing.T) {
	s := Streak{Current: 4, Longest: 4, LastActivityDay: day(2025, 3, 10)}

	got := Advance(s, day(2025, 3, 8))
	if got != s {
		t.Errorf("earlier-day activity changed the row: %+v", got)
	}
}

func TestAdvanceUsesUTCDayBoundary(t *testing.T) {
	// 23:30 UTC-5 on March 1 is 04:30 UTC on March 2.
	loc := time.FixedZone("UTC-5", -5*3600)
	s := Streak{Current: 1, Longest: 1, LastActivityDay: day(2025, 3, 1)}

	s = Advance(s, time.Date(2025, 3, 1, 23, 30, 0, 0, loc))
	if s.Current != 2 {
		t.Errorf("current = %d, want 2: local March 1 is UTC March 2", s.Current)
	}
}

func TestDayTruncates(t *testing.T) {
	got := Day(time.Date(2025, 3, 1, 18, 30, 45, 123, time.UTC))
	if !got.Equal(day(2025, 3, 1)) {
		t.Errorf("Day() = %v", got)
	}
}

func TestTypeValid(t *testing.T) {
	if !TypeDailyRank.Valid() || !TypeDailyLogin.Valid() {
		t.Error("known types rejected")
	}
	if Type("weekly_hug").Valid() {
		t.Error("unknown type accepted")
	}
}
