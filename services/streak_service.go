package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/streak"
)

// StreakService persists the daily ranking and login streak rows. The day
// math lives in internal/streak; this layer just reads, advances, upserts.
type StreakService struct {
	db *pgxpool.Pool
}

func NewStreakService(db *pgxpool.Pool) *StreakService {
	return &StreakService{db: db}
}

func (s *StreakService) Get(ctx context.Context, userID uuid.UUID, streakType streak.Type) (*streak.Streak, error) {
	if !streakType.Valid() {
		return nil, fmt.Errorf("invalid streak type %q", streakType)
	}

	query := `
	SELECT user_id, streak_type, current_streak, longest_streak, last_activity_day, created_at, updated_at
	FROM streaks
	WHERE user_id = $1 AND streak_type = $2
	`

	row := &streak.Streak{}
	var lastDay *time.Time
	err := s.db.QueryRow(ctx, query, userID, streakType).Scan(
		&row.UserID,
		&row.Type,
		&row.Current,
		&row.Longest,
		&lastDay,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &streak.Streak{UserID: userID, Type: streakType}, nil
		}
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	if lastDay != nil {
		row.LastActivityDay = *lastDay
	}
	return row, nil
}

// Advance applies one activity at `at` and persists the result. Same-day
// repeats come back unchanged without a write.
func (s *StreakService) Advance(ctx context.Context, userID uuid.UUID, streakType streak.Type, at time.Time) (*streak.Streak, error) {
	current, err := s.Get(ctx, userID, streakType)
	if err != nil {
		return nil, err
	}

	advanced := streak.Advance(*current, at)
	if advanced == *current && !current.LastActivityDay.IsZero() {
		return current, nil
	}

	query := `
	INSERT INTO streaks (user_id, streak_type, current_streak, longest_streak, last_activity_day, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	ON CONFLICT (user_id, streak_type) DO UPDATE SET
		current_streak = EXCLUDED.current_streak,
		longest_streak = GREATEST(streaks.longest_streak, EXCLUDED.longest_streak),
		last_activity_day = EXCLUDED.last_activity_day,
		updated_at = NOW()
	RETURNING created_at, updated_at
	`

	err = s.db.QueryRow(ctx, query,
		userID, streakType, advanced.Current, advanced.Longest, advanced.LastActivityDay,
	).Scan(&advanced.CreatedAt, &advanced.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert streak: %w", err)
	}

	return &advanced, nil
}

// RecordLogin advances the daily login streak.
func (s *StreakService) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) (*streak.Streak, error) {
	return s.Advance(ctx, userID, streak.TypeDailyLogin, at)
}
