package services

import (
	"context"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/achievement"
	"jerkyClubAPI/internal/progress"
)

// ProgressService answers "what is this user closest to earning next".
type ProgressService struct {
	metrics      *MetricsService
	achievements *AchievementService
}

func NewProgressService(metrics *MetricsService, achievements *AchievementService) *ProgressService {
	return &ProgressService{metrics: metrics, achievements: achievements}
}

// Closest returns the nearest unearned coin or tier upgrade, optionally
// filtered by category. Nil when nothing is actionable.
func (s *ProgressService) Closest(ctx context.Context, userID uuid.UUID, category achievement.Category) (*progress.NextAchievement, error) {
	st, err := s.metrics.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs, err := s.achievements.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := s.achievements.Awards(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progress.Closest(defs, awards, st, category), nil
}
