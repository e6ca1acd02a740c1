package stats

import "time"

// UserStats is the snapshot the achievement engine evaluates against.
// Produced by the metrics aggregator, consumed read-only.
type UserStats struct {
	TotalRankings             int       `json:"total_rankings"`
	UniqueProducts            int       `json:"unique_products"`
	TotalRankableProducts     int       `json:"total_rankable_products"`
	CurrentStreak             int       `json:"current_streak"`
	LongestStreak             int       `json:"longest_streak"`
	CurrentLoginStreak        int       `json:"current_login_streak"`
	TotalSearches             int       `json:"total_searches"`
	TotalPageViews            int       `json:"total_page_views"`
	TotalProductViews         int       `json:"total_product_views"`
	UniqueProductViews        int       `json:"unique_product_views"`
	TotalProfileViews         int       `json:"total_profile_views"`
	UniqueProfileViews        int       `json:"unique_profile_views"`
	UniqueBrands              int       `json:"unique_brands"`
	LeaderboardPosition       int       `json:"leaderboard_position"`
	CompletedAnimalCategories []string  `json:"completed_animal_categories"`
	JoinDate                  time.Time `json:"join_date"`
	TrendingRanks             int       `json:"trending_ranks"`
}
