package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/stats"
)

// MetricsService derives per-user counters straight from the source tables.
// Pure reads: the rollup and the achievement engine both consume these
// snapshots but never write through here.
type MetricsService struct {
	db *pgxpool.Pool
}

func NewMetricsService(db *pgxpool.Pool) *MetricsService {
	return &MetricsService{db: db}
}

// Snapshot assembles the full UserStats for one user.
func (s *MetricsService) Snapshot(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	st := &stats.UserStats{}

	err := s.db.QueryRow(ctx, `
	SELECT
		COUNT(*),
		COUNT(DISTINCT product_id)
	FROM rankings
	WHERE user_id = $1
	`, userID).Scan(&st.TotalRankings, &st.UniqueProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count rankings: %w", err)
	}

	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE is_rankable = TRUE`).
		Scan(&st.TotalRankableProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to count rankable products: %w", err)
	}

	err = s.db.QueryRow(ctx, `
	SELECT
		COALESCE(MAX(CASE WHEN streak_type = 'daily_rank' THEN current_streak END), 0),
		COALESCE(MAX(CASE WHEN streak_type = 'daily_rank' THEN longest_streak END), 0),
		COALESCE(MAX(CASE WHEN streak_type = 'daily_login' THEN current_streak END), 0)
	FROM streaks
	WHERE user_id = $1
	`, userID).Scan(&st.CurrentStreak, &st.LongestStreak, &st.CurrentLoginStreak)
	if err != nil {
		return nil, fmt.Errorf("failed to read streaks: %w", err)
	}

	// Page views are product and profile views together; searches stay their
	// own counter so the score does not double count them.
	err = s.db.QueryRow(ctx, `
	SELECT
		COUNT(*) FILTER (WHERE event_type = 'search'),
		COUNT(*) FILTER (WHERE event_type IN ('product_view', 'profile_view')),
		COUNT(*) FILTER (WHERE event_type = 'product_view'),
		COUNT(DISTINCT payload->>'productId') FILTER (WHERE event_type = 'product_view' AND payload ? 'productId'),
		COUNT(*) FILTER (WHERE event_type = 'profile_view'),
		COUNT(DISTINCT payload->>'profileUserId') FILTER (WHERE event_type = 'profile_view' AND payload ? 'profileUserId')
	FROM activity_events
	WHERE user_id = $1
	`, userID).Scan(
		&st.TotalSearches,
		&st.TotalPageViews,
		&st.TotalProductViews,
		&st.UniqueProductViews,
		&st.TotalProfileViews,
		&st.UniqueProfileViews,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity events: %w", err)
	}

	err = s.db.QueryRow(ctx, `
	SELECT COUNT(DISTINCT p.brand)
	FROM rankings r
	JOIN products p ON p.id = r.product_id
	WHERE r.user_id = $1
	`, userID).Scan(&st.UniqueBrands)
	if err != nil {
		return nil, fmt.Errorf("failed to count brands: %w", err)
	}

	err = s.db.QueryRow(ctx, `
	SELECT COALESCE((
		SELECT rank FROM (
			SELECT user_id, RANK() OVER (ORDER BY score_all_time DESC) AS rank
			FROM engagement_scores
			WHERE score_all_time > 0
		) ranked
		WHERE user_id = $1
	), 0)
	`, userID).Scan(&st.LeaderboardPosition)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard position: %w", err)
	}

	st.CompletedAnimalCategories, err = s.completedAnimalCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	st.TrendingRanks, err = s.trendingRanks(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `SELECT created_at FROM users WHERE id = $1`, userID).
		Scan(&st.JoinDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to read join date: %w", err)
	}

	return st, nil
}

// completedAnimalCategories lists the categories where the user has ranked
// every rankable product.
func (s *MetricsService) completedAnimalCategories(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `
	SELECT p.animal_category
	FROM products p
	LEFT JOIN rankings r ON r.product_id = p.id AND r.user_id = $1
	WHERE p.is_rankable = TRUE
	GROUP BY p.animal_category
	HAVING COUNT(*) = COUNT(r.id)
	ORDER BY p.animal_category
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read animal categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan animal category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// trendingRanks counts products the user was among the first three to rank
// that have since gone on to collect at least ten rankings.
func (s *MetricsService) trendingRanks(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
	SELECT COUNT(*)
	FROM (
		SELECT product_id,
		       ROW_NUMBER() OVER (PARTITION BY product_id ORDER BY created_at) AS arrival,
		       user_id
		FROM rankings
	) ordered
	WHERE ordered.user_id = $1
	  AND ordered.arrival <= 3
	  AND ordered.product_id IN (
		SELECT product_id FROM rankings GROUP BY product_id HAVING COUNT(*) >= 10
	  )
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trending ranks: %w", err)
	}
	return count, nil
}
