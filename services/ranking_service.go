package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/apperr"
	"jerkyClubAPI/internal/ranking"
	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/internal/streak"
)

// RankingService persists product rankings and drives the side effects of a
// save: rankings counter, daily_rank streak, ranking_saved event.
type RankingService struct {
	db         *pgxpool.Pool
	scores     *ScoreService
	streaks    *StreakService
	ingestor   *ActivityService
	forbidGaps bool
}

func NewRankingService(db *pgxpool.Pool, scores *ScoreService, streaks *StreakService, ingestor *ActivityService) *RankingService {
	return &RankingService{
		db:         db,
		scores:     scores,
		streaks:    streaks,
		ingestor:   ingestor,
		forbidGaps: os.Getenv("RANKING_FORBID_GAPS") == "true",
	}
}

// Save upserts one ranking. A fresh insert increments the rankings counter
// (and unique products if this is the user's first time ranking the
// product); a position move does not.
func (s *RankingService) Save(ctx context.Context, userID uuid.UUID, req *ranking.SaveRequest) (*ranking.Ranking, error) {
	if req.Position < 1 {
		return nil, apperr.Validation("ranking.save", "position must be >= 1, got %d", req.Position)
	}

	var alreadyRankedProduct bool
	err := s.db.QueryRow(ctx, `
	SELECT EXISTS (SELECT 1 FROM rankings WHERE user_id = $1 AND product_id = $2)
	`, userID, req.ProductID).Scan(&alreadyRankedProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to check product rankings: %w", err)
	}

	if s.forbidGaps {
		// Dense list mode: shift everything at or below the slot down one.
		_, err := s.db.Exec(ctx, `
		UPDATE rankings SET position = position + 1, updated_at = NOW()
		WHERE user_id = $1 AND list_id = $2 AND position >= $3
		  AND product_id <> $4
		`, userID, req.ListID, req.Position, req.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to shift rankings: %w", err)
		}
	}

	row := &ranking.Ranking{UserID: userID, ListID: req.ListID, ProductID: req.ProductID}
	var inserted bool
	err = s.db.QueryRow(ctx, `
	INSERT INTO rankings (user_id, list_id, product_id, position)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, list_id, product_id) DO UPDATE SET
		position = EXCLUDED.position,
		updated_at = NOW()
	RETURNING id, position, created_at, updated_at, (created_at = updated_at)
	`, userID, req.ListID, req.ProductID, req.Position).Scan(
		&row.ID, &row.Position, &row.CreatedAt, &row.UpdatedAt, &inserted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save ranking: %w", err)
	}

	now := time.Now()

	if inserted {
		delta := score.Counters{Rankings: 1}
		if !alreadyRankedProduct {
			delta.UniqueProducts = 1
		}
		if err := s.scores.Increment(ctx, userID, delta, now); err != nil {
			log.Printf("Ranking: failed to increment score for user %s: %v", userID, err)
		}
	}

	if _, err := s.streaks.Advance(ctx, userID, streak.TypeDailyRank, now); err != nil {
		log.Printf("Ranking: failed to advance streak for user %s: %v", userID, err)
	}

	event := activity.Event{
		ID:     uuid.New(),
		UserID: userID,
		Type:   activity.TypeRankingSaved,
		Payload: map[string]any{
			"productId": req.ProductID.String(),
			"listId":    req.ListID.String(),
			"position":  req.Position,
		},
		CreatedAt: now,
	}
	if err := s.ingestor.Track(ctx, event); err != nil {
		log.Printf("Ranking: failed to track ranking_saved for user %s: %v", userID, err)
	}

	return row, nil
}

// Delete removes one ranking from a list.
func (s *RankingService) Delete(ctx context.Context, userID, listID, productID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
	DELETE FROM rankings WHERE user_id = $1 AND list_id = $2 AND product_id = $3
	`, userID, listID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete ranking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ranking.delete", "ranking not found")
	}
	return nil
}

// List returns one list's rankings in position order.
func (s *RankingService) List(ctx context.Context, userID, listID uuid.UUID) ([]ranking.Ranking, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, user_id, list_id, product_id, position, created_at, updated_at
	FROM rankings
	WHERE user_id = $1 AND list_id = $2
	ORDER BY position
	`, userID, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer rows.Close()

	var list []ranking.Ranking
	for rows.Next() {
		var r ranking.Ranking
		if err := rows.Scan(&r.ID, &r.UserID, &r.ListID, &r.ProductID, &r.Position, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
