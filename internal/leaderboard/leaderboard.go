package leaderboard

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/score"
)

// Badge is the compact achievement chip rendered next to a leaderboard row.
type Badge struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Entry is one row of a leaderboard page.
type Entry struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Score       int       `json:"score"`
	Rankings    int       `json:"rankings"`
	Badges      []Badge   `json:"badges,omitempty"`
	IsPrivate   bool      `json:"is_private"`
}

// Position is one user's standing for a period. Rank and Percentile are nil
// when the user has a zero score and therefore no standing.
type Position struct {
	Period     score.Period `json:"period"`
	Rank       *int         `json:"rank"`
	Score      int          `json:"score"`
	Percentile *float64     `json:"percentile"`
	TotalUsers int          `json:"total_users"`
}

// View is the assembled page handed to the transport layer.
type View struct {
	Period      score.Period `json:"period"`
	Entries     []Entry      `json:"entries"`
	TotalUsers  int          `json:"total_users"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// DisplayName formats a row's name. Users who hide their name show as their
// handle, or as an anonymous placeholder when they have none.
func DisplayName(firstName, lastName, handle string, hideName bool) string {
	if hideName {
		if handle != "" {
			return "@" + handle
		}
		return "Anonymous User"
	}
	if firstName == "" && lastName == "" {
		if handle != "" {
			return "@" + handle
		}
		return "Anonymous User"
	}
	if lastName == "" {
		return firstName
	}
	return fmt.Sprintf("%s %s.", firstName, lastName[:1])
}

// PercentileOf is the share of users this rank beats or ties, to one decimal.
// Rank 1 of 100 is 100.0, last place is 1.0.
func PercentileOf(rank, total int) float64 {
	if total <= 0 || rank <= 0 {
		return 0
	}
	pct := float64(total-rank+1) / float64(total) * 100
	return math.Round(pct*10) / 10
}
