package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/apperr"
	"jerkyClubAPI/internal/leaderboard"
	"jerkyClubAPI/internal/score"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 100
	leaderboardBadgeCount   = 3
)

// LeaderboardService is the read side over engagement_scores: top-N pages
// and per-user position, both cache-fronted.
type LeaderboardService struct {
	db    *pgxpool.Pool
	cache *CacheService
}

func NewLeaderboardService(db *pgxpool.Pool, cache *CacheService) *LeaderboardService {
	return &LeaderboardService{db: db, cache: cache}
}

func scoreColumn(period score.Period) string {
	switch period {
	case score.PeriodWeek:
		return "score_week"
	case score.PeriodMonth:
		return "score_month"
	default:
		return "score_all_time"
	}
}

func rankingsColumn(period score.Period) string {
	switch period {
	case score.PeriodWeek:
		return "rankings_week"
	case score.PeriodMonth:
		return "rankings_month"
	default:
		return "rankings_all_time"
	}
}

// TopN returns the leaderboard page for a period, serving from cache when
// the cached page is still live.
func (s *LeaderboardService) TopN(ctx context.Context, period score.Period, limit int) (*leaderboard.View, error) {
	if !period.Valid() {
		return nil, apperr.Validation("leaderboard.topn", "unknown period %q", period)
	}
	// An explicit zero limit is a request for an empty page; a negative
	// limit means the caller left it unset.
	if limit == 0 {
		return &leaderboard.View{Period: period, Entries: []leaderboard.Entry{}, GeneratedAt: time.Now()}, nil
	}
	if limit < 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	if cached, ok := s.cache.GetLeaderboard(ctx, period, limit); ok {
		return cached, nil
	}

	view, err := s.buildView(ctx, period, limit)
	if err != nil {
		return nil, err
	}
	s.cache.SetLeaderboard(ctx, view, limit)
	return view, nil
}

func (s *LeaderboardService) buildView(ctx context.Context, period score.Period, limit int) (*leaderboard.View, error) {
	col := scoreColumn(period)
	rankCol := rankingsColumn(period)

	// The lateral join pulls each user's three most recent coins for the
	// badge strip without a second round trip.
	query := fmt.Sprintf(`
	SELECT ranked.user_id, ranked.rank, ranked.score, ranked.rankings,
	       u.first_name, u.last_name, u.handle, u.avatar_url, u.hide_name,
	       COALESCE(badges.codes, '{}'), COALESCE(badges.names, '{}'), COALESCE(badges.icons, '{}')
	FROM (
		SELECT es.user_id, es.%s AS score, es.%s AS rankings,
		       RANK() OVER (ORDER BY es.%s DESC, es.user_id) AS rank
		FROM engagement_scores es
		JOIN users au ON au.id = es.user_id AND au.is_active = TRUE
		WHERE es.%s > 0
		ORDER BY es.%s DESC, es.user_id
		LIMIT $1
	) ranked
	JOIN users u ON u.id = ranked.user_id
	LEFT JOIN LATERAL (
		SELECT array_agg(d.code) AS codes, array_agg(d.name) AS names, array_agg(d.icon) AS icons
		FROM (
			SELECT ua.achievement_code
			FROM user_achievements ua
			WHERE ua.user_id = ranked.user_id
			ORDER BY ua.earned_at DESC
			LIMIT $2
		) recent
		JOIN achievement_definitions d ON d.code = recent.achievement_code
	) badges ON TRUE
	ORDER BY ranked.rank
	`, col, rankCol, col, col, col)

	rows, err := s.db.Query(ctx, query, limit, leaderboardBadgeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	view := &leaderboard.View{Period: period, GeneratedAt: time.Now()}
	for rows.Next() {
		var entry leaderboard.Entry
		var firstName, lastName, handle string
		var hideName bool
		var codes, names, icons []string
		if err := rows.Scan(
			&entry.UserID, &entry.Rank, &entry.Score, &entry.Rankings,
			&firstName, &lastName, &handle, &entry.AvatarURL, &hideName,
			&codes, &names, &icons,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entry.DisplayName = leaderboard.DisplayName(firstName, lastName, handle, hideName)
		entry.IsPrivate = hideName
		if hideName {
			entry.AvatarURL = ""
		}
		for i := range codes {
			if i < len(names) && i < len(icons) {
				entry.Badges = append(entry.Badges, leaderboard.Badge{Code: codes[i], Name: names[i], Icon: icons[i]})
			}
		}
		view.Entries = append(view.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	view.TotalUsers, err = s.countRanked(ctx, col)
	if err != nil {
		return nil, err
	}

	return view, nil
}

// countRanked counts the active users holding a standing for the period.
// Deactivated accounts keep their score rows but never occupy a slot.
func (s *LeaderboardService) countRanked(ctx context.Context, col string) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
	SELECT COUNT(*)
	FROM engagement_scores es
	JOIN users u ON u.id = es.user_id AND u.is_active = TRUE
	WHERE es.%s > 0
	`, col)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard users: %w", err)
	}
	return total, nil
}

// Position returns one user's standing. Zero-score users get a nil rank.
func (s *LeaderboardService) Position(ctx context.Context, userID uuid.UUID, period score.Period) (*leaderboard.Position, error) {
	if !period.Valid() {
		return nil, apperr.Validation("leaderboard.position", "unknown period %q", period)
	}

	if cached, ok := s.cache.GetPosition(ctx, userID, period); ok {
		return cached, nil
	}

	col := scoreColumn(period)
	pos := &leaderboard.Position{Period: period}

	var err error
	pos.TotalUsers, err = s.countRanked(ctx, col)
	if err != nil {
		return nil, err
	}

	var rank int
	err = s.db.QueryRow(ctx, fmt.Sprintf(`
	SELECT score, rank FROM (
		SELECT es.user_id, es.%s AS score,
		       RANK() OVER (ORDER BY es.%s DESC, es.user_id) AS rank
		FROM engagement_scores es
		JOIN users u ON u.id = es.user_id AND u.is_active = TRUE
		WHERE es.%s > 0
	) ranked
	WHERE user_id = $1
	`, col, col, col), userID).Scan(&pos.Score, &rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No standing yet; cache the empty position too.
			s.cache.SetPosition(ctx, userID, pos)
			return pos, nil
		}
		return nil, fmt.Errorf("failed to query position: %w", err)
	}

	percentile := leaderboard.PercentileOf(rank, pos.TotalUsers)
	pos.Rank = &rank
	pos.Percentile = &percentile

	s.cache.SetPosition(ctx, userID, pos)
	return pos, nil
}
