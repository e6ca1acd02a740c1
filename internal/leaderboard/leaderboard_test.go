package leaderboard

import "testing"

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name      string
		first     string
		last      string
		handle    string
		hideName  bool
		want      string
	}{
		{"full name abbreviated", "Maya", "Santos", "maya_s", false, "Maya S."},
		{"first name only", "Maya", "", "maya_s", false, "Maya"},
		{"hidden shows handle", "Maya", "Santos", "maya_s", true, "@maya_s"},
		{"hidden without handle", "Maya", "Santos", "", true, "Anonymous User"},
		{"no name falls back to handle", "", "", "maya_s", false, "@maya_s"},
		{"nothing at all", "", "", "", false, "Anonymous User"},
	}

	for _, c := range cases {
		if got := DisplayName(c.first, c.last, c.handle, c.hideName); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestPercentileOf(t *testing.T) {
	cases := []struct {
		rank, total int
		want        float64
	}{
		{1, 100, 100},
		{42, 100, 59},
		{50, 100, 51},
		{100, 100, 1},
		{1, 3, 100},
		{2, 3, 66.7},
		{3, 3, 33.3},
		{1, 1, 100},
		{0, 100, 0},
		{5, 0, 0},
	}

	for _, c := range cases {
		if got := PercentileOf(c.rank, c.total); got != c.want {
			t.Errorf("PercentileOf(%d, %d) = %v, want %v", c.rank, c.total, got, c.want)
		}
	}
}
