package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/apperr"
	"jerkyClubAPI/internal/score"
)

// ScoreService owns the engagement_scores rollup: incremental writes on the
// hot path, full recalculation from source tables for repair, and the
// periodic bucket resets.
type ScoreService struct {
	db    *pgxpool.Pool
	cache *CacheService
}

func NewScoreService(db *pgxpool.Pool, cache *CacheService) *ScoreService {
	return &ScoreService{db: db, cache: cache}
}

// Increment adds the delta to the all-time bucket unconditionally and to the
// week/month buckets only when ts falls inside their rolling windows. The
// cache invalidation protocol runs before this returns.
func (s *ScoreService) Increment(ctx context.Context, userID uuid.UUID, delta score.Counters, ts time.Time) error {
	if delta.IsZero() {
		return nil
	}

	now := time.Now()
	week := delta
	if !score.InWindow(score.PeriodWeek, ts, now) {
		week = score.Counters{}
	}
	month := delta
	if !score.InWindow(score.PeriodMonth, ts, now) {
		month = score.Counters{}
	}

	query := `
	INSERT INTO engagement_scores (
		user_id,
		achievements_all_time, page_views_all_time, rankings_all_time, searches_all_time, unique_products_all_time, score_all_time,
		achievements_week, page_views_week, rankings_week, searches_week, unique_products_week, score_week,
		achievements_month, page_views_month, rankings_month, searches_month, unique_products_month, score_month,
		last_updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		achievements_all_time = engagement_scores.achievements_all_time + EXCLUDED.achievements_all_time,
		page_views_all_time = engagement_scores.page_views_all_time + EXCLUDED.page_views_all_time,
		rankings_all_time = engagement_scores.rankings_all_time + EXCLUDED.rankings_all_time,
		searches_all_time = engagement_scores.searches_all_time + EXCLUDED.searches_all_time,
		unique_products_all_time = engagement_scores.unique_products_all_time + EXCLUDED.unique_products_all_time,
		score_all_time = engagement_scores.score_all_time + EXCLUDED.score_all_time,
		achievements_week = engagement_scores.achievements_week + EXCLUDED.achievements_week,
		page_views_week = engagement_scores.page_views_week + EXCLUDED.page_views_week,
		rankings_week = engagement_scores.rankings_week + EXCLUDED.rankings_week,
		searches_week = engagement_scores.searches_week + EXCLUDED.searches_week,
		unique_products_week = engagement_scores.unique_products_week + EXCLUDED.unique_products_week,
		score_week = engagement_scores.score_week + EXCLUDED.score_week,
		achievements_month = engagement_scores.achievements_month + EXCLUDED.achievements_month,
		page_views_month = engagement_scores.page_views_month + EXCLUDED.page_views_month,
		rankings_month = engagement_scores.rankings_month + EXCLUDED.rankings_month,
		searches_month = engagement_scores.searches_month + EXCLUDED.searches_month,
		unique_products_month = engagement_scores.unique_products_month + EXCLUDED.unique_products_month,
		score_month = engagement_scores.score_month + EXCLUDED.score_month,
		last_updated_at = NOW()
	`

	err := apperr.Retry(ctx, "score.increment", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, query,
			userID,
			delta.Achievements, delta.PageViews, delta.Rankings, delta.Searches, delta.UniqueProducts, delta.Score(),
			week.Achievements, week.PageViews, week.Rankings, week.Searches, week.UniqueProducts, week.Score(),
			month.Achievements, month.PageViews, month.Rankings, month.Searches, month.UniqueProducts, month.Score(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to increment engagement score: %w", err)
	}

	s.cache.InvalidateEngagement(ctx, userID, ts)
	return nil
}

// Recalculate rewrites the row from the source tables. Week and month
// buckets are bounded by the current calendar week and month, matching what
// the resets zero, so a repair after a reset never re-inflates them.
// Achievement counters come from the activity log so a wipe zeroes them too.
func (s *ScoreService) Recalculate(ctx context.Context, userID uuid.UUID) error {
	query := `
	WITH wipe AS (
		SELECT COALESCE(MAX(created_at), 'epoch'::timestamptz) AS at
		FROM activity_log
		WHERE user_id = $1 AND category = 'achievements_wipe'
	),
	rank_stats AS (
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE created_at >= date_trunc('week', NOW())) AS week,
			COUNT(*) FILTER (WHERE created_at >= date_trunc('month', NOW())) AS month,
			COUNT(DISTINCT product_id) AS uniq,
			COUNT(DISTINCT product_id) FILTER (WHERE created_at >= date_trunc('week', NOW())) AS uniq_week,
			COUNT(DISTINCT product_id) FILTER (WHERE created_at >= date_trunc('month', NOW())) AS uniq_month
		FROM rankings WHERE user_id = $1
	),
	event_stats AS (
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'search') AS searches,
			COUNT(*) FILTER (WHERE event_type = 'search' AND created_at >= date_trunc('week', NOW())) AS searches_week,
			COUNT(*) FILTER (WHERE event_type = 'search' AND created_at >= date_trunc('month', NOW())) AS searches_month,
			COUNT(*) FILTER (WHERE event_type IN ('product_view', 'profile_view')) AS views,
			COUNT(*) FILTER (WHERE event_type IN ('product_view', 'profile_view') AND created_at >= date_trunc('week', NOW())) AS views_week,
			COUNT(*) FILTER (WHERE event_type IN ('product_view', 'profile_view') AND created_at >= date_trunc('month', NOW())) AS views_month
		FROM activity_events WHERE user_id = $1
	),
	badge_stats AS (
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE created_at >= date_trunc('week', NOW())) AS week,
			COUNT(*) FILTER (WHERE created_at >= date_trunc('month', NOW())) AS month
		FROM activity_log, wipe
		WHERE user_id = $1
		  AND category IN ('earn_badge', 'tier_upgrade')
		  AND created_at > wipe.at
	)
	INSERT INTO engagement_scores (
		user_id,
		achievements_all_time, page_views_all_time, rankings_all_time, searches_all_time, unique_products_all_time, score_all_time,
		achievements_week, page_views_week, rankings_week, searches_week, unique_products_week, score_week,
		achievements_month, page_views_month, rankings_month, searches_month, unique_products_month, score_month,
		last_updated_at
	)
	SELECT
		$1,
		b.total, e.views, r.total, e.searches, r.uniq,
		b.total + e.views + r.total + e.searches,
		b.week, e.views_week, r.week, e.searches_week, r.uniq_week,
		b.week + e.views_week + r.week + e.searches_week,
		b.month, e.views_month, r.month, e.searches_month, r.uniq_month,
		b.month + e.views_month + r.month + e.searches_month,
		NOW()
	FROM rank_stats r, event_stats e, badge_stats b
	ON CONFLICT (user_id) DO UPDATE SET
		achievements_all_time = EXCLUDED.achievements_all_time,
		page_views_all_time = EXCLUDED.page_views_all_time,
		rankings_all_time = EXCLUDED.rankings_all_time,
		searches_all_time = EXCLUDED.searches_all_time,
		unique_products_all_time = EXCLUDED.unique_products_all_time,
		score_all_time = EXCLUDED.score_all_time,
		achievements_week = EXCLUDED.achievements_week,
		page_views_week = EXCLUDED.page_views_week,
		rankings_week = EXCLUDED.rankings_week,
		searches_week = EXCLUDED.searches_week,
		unique_products_week = EXCLUDED.unique_products_week,
		score_week = EXCLUDED.score_week,
		achievements_month = EXCLUDED.achievements_month,
		page_views_month = EXCLUDED.page_views_month,
		rankings_month = EXCLUDED.rankings_month,
		searches_month = EXCLUDED.searches_month,
		unique_products_month = EXCLUDED.unique_products_month,
		score_month = EXCLUDED.score_month,
		last_updated_at = NOW()
	`

	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to recalculate engagement score: %w", err)
	}
	return nil
}

// Get returns the full rollup row, zero-valued when the user has none yet.
func (s *ScoreService) Get(ctx context.Context, userID uuid.UUID) (*score.Row, error) {
	query := `
	SELECT
		user_id,
		achievements_all_time, page_views_all_time, rankings_all_time, searches_all_time, unique_products_all_time,
		achievements_week, page_views_week, rankings_week, searches_week, unique_products_week,
		achievements_month, page_views_month, rankings_month, searches_month, unique_products_month,
		last_updated_at
	FROM engagement_scores
	WHERE user_id = $1
	`

	row := &score.Row{UserID: userID}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&row.UserID,
		&row.AllTime.Achievements, &row.AllTime.PageViews, &row.AllTime.Rankings, &row.AllTime.Searches, &row.AllTime.UniqueProducts,
		&row.Week.Achievements, &row.Week.PageViews, &row.Week.Rankings, &row.Week.Searches, &row.Week.UniqueProducts,
		&row.Month.Achievements, &row.Month.PageViews, &row.Month.Rankings, &row.Month.Searches, &row.Month.UniqueProducts,
		&row.LastUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &score.Row{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get engagement score: %w", err)
	}
	return row, nil
}

// ResetWeekly zeroes every week bucket. Called by the scheduler at the week
// boundary.
func (s *ScoreService) ResetWeekly(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `
	UPDATE engagement_scores SET
		achievements_week = 0, page_views_week = 0, rankings_week = 0,
		searches_week = 0, unique_products_week = 0, score_week = 0,
		last_updated_at = NOW()
	WHERE score_week > 0 OR unique_products_week > 0
	`)
	if err != nil {
		return fmt.Errorf("failed to reset weekly scores: %w", err)
	}
	log.Printf("Score reset: zeroed weekly buckets for %d users", tag.RowsAffected())
	return nil
}

// ResetMonthly zeroes every month bucket.
func (s *ScoreService) ResetMonthly(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `
	UPDATE engagement_scores SET
		achievements_month = 0, page_views_month = 0, rankings_month = 0,
		searches_month = 0, unique_products_month = 0, score_month = 0,
		last_updated_at = NOW()
	WHERE score_month > 0 OR unique_products_month > 0
	`)
	if err != nil {
		return fmt.Errorf("failed to reset monthly scores: %w", err)
	}
	log.Printf("Score reset: zeroed monthly buckets for %d users", tag.RowsAffected())
	return nil
}
