package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/achievement"
	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/internal/stats"
)

// coinRecorder feeds coin_earned events back into the ingest path. Wired
// with a setter after construction because the activity service also needs
// the achievement service (via classification).
type coinRecorder interface {
	Track(ctx context.Context, event activity.Event) error
}

// AchievementService evaluates the definition registry against user stats
// snapshots and persists awards, tier upgrades and progress refreshes.
type AchievementService struct {
	db       *pgxpool.Pool
	scores   *ScoreService
	cache    *CacheService
	users    *UserService
	recorder coinRecorder
}

func NewAchievementService(db *pgxpool.Pool, scores *ScoreService, cache *CacheService, users *UserService) *AchievementService {
	return &AchievementService{db: db, scores: scores, cache: cache, users: users}
}

func (s *AchievementService) SetCoinRecorder(recorder coinRecorder) {
	s.recorder = recorder
}

// Definitions loads the registry in deterministic order.
func (s *AchievementService) Definitions(ctx context.Context) ([]achievement.Definition, error) {
	query := `
	SELECT code, name, icon, description, tier, category, collection_type,
	       requirement, points, has_tiers, tier_thresholds, prerequisite_code,
	       is_active, is_hidden
	FROM achievement_definitions
	ORDER BY sort_order, created_at, code
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement definitions: %w", err)
	}
	defer rows.Close()

	var defs []achievement.Definition
	for rows.Next() {
		var def achievement.Definition
		var rawReq []byte
		var rawThresholds []byte
		var prereq *string
		if err := rows.Scan(
			&def.Code, &def.Name, &def.Icon, &def.Description, &def.Tier,
			&def.Category, &def.CollectionType, &rawReq, &def.Points,
			&def.HasTiers, &rawThresholds, &prereq, &def.IsActive, &def.IsHidden,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement definition: %w", err)
		}
		def.Requirement = achievement.ParseRequirement(rawReq)
		if len(rawThresholds) > 0 {
			if err := json.Unmarshal(rawThresholds, &def.TierThresholds); err != nil {
				log.Printf("Warning: bad tier thresholds on %s: %v", def.Code, err)
				def.TierThresholds = nil
			}
		}
		if prereq != nil {
			def.PrerequisiteCode = *prereq
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Awards loads the user's earned rows keyed by code.
func (s *AchievementService) Awards(ctx context.Context, userID uuid.UUID) (map[string]achievement.UserAchievement, error) {
	query := `
	SELECT user_id, achievement_code, current_tier, percentage_complete,
	       points_awarded, progress, earned_at, last_tier_upgrade_at
	FROM user_achievements
	WHERE user_id = $1
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user achievements: %w", err)
	}
	defer rows.Close()

	awards := make(map[string]achievement.UserAchievement)
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(
			&ua.UserID, &ua.AchievementCode, &ua.CurrentTier, &ua.PercentageComplete,
			&ua.PointsAwarded, &ua.Progress, &ua.EarnedAt, &ua.LastTierUpgradeAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		awards[ua.AchievementCode] = ua
	}
	return awards, rows.Err()
}

// Evaluate plans updates against the snapshot and persists each one. Every
// award or upgrade is activity-logged, bumps the achievements counter by one
// and feeds a coin_earned event back through the ingestor.
func (s *AchievementService) Evaluate(ctx context.Context, userID uuid.UUID, st *stats.UserStats) ([]achievement.Update, error) {
	defs, err := s.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := s.Awards(ctx, userID)
	if err != nil {
		return nil, err
	}

	planned := achievement.PlanUpdates(defs, awards, st)

	var applied []achievement.Update
	for _, update := range planned {
		ok, err := s.apply(ctx, userID, update)
		if err != nil {
			log.Printf("Achievement: failed to apply %s for user %s: %v", update.Code, userID, err)
			continue
		}
		if !ok {
			// Another writer got there first; idempotent skip.
			continue
		}
		applied = append(applied, update)

		if update.Kind == achievement.UpdateProgressOnly {
			continue
		}

		achievementsAwarded.WithLabelValues(updateKindLabel(update.Kind)).Inc()

		if err := s.logUpdate(ctx, userID, update); err != nil {
			log.Printf("Achievement: failed to log %s for user %s: %v", update.Code, userID, err)
		}
		if err := s.scores.Increment(ctx, userID, score.Counters{Achievements: 1}, time.Now()); err != nil {
			log.Printf("Achievement: failed to increment score for user %s: %v", userID, err)
		}
		s.recordCoinEarned(ctx, userID, update)
		s.notifyAward(ctx, userID, update)
	}

	return applied, nil
}

// apply persists one update. Returns false when the row already reflected
// the change (concurrent evaluation) so the side effects are skipped.
func (s *AchievementService) apply(ctx context.Context, userID uuid.UUID, update achievement.Update) (bool, error) {
	switch update.Kind {
	case achievement.UpdateAwarded:
		tag, err := s.db.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_code, current_tier, percentage_complete, points_awarded, progress, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id, achievement_code) DO NOTHING
		`, userID, update.Code, update.Tier, update.Percentage, update.Points, update.Progress)
		if err != nil {
			return false, fmt.Errorf("failed to insert award: %w", err)
		}
		return tag.RowsAffected() == 1, nil

	case achievement.UpdateTierUpgraded:
		tag, err := s.db.Exec(ctx, `
		UPDATE user_achievements SET
			current_tier = $3,
			percentage_complete = $4,
			points_awarded = $5,
			progress = $6,
			last_tier_upgrade_at = NOW()
		WHERE user_id = $1 AND achievement_code = $2 AND current_tier <> $3
		`, userID, update.Code, update.Tier, update.Percentage, update.Points, update.Progress)
		if err != nil {
			return false, fmt.Errorf("failed to upgrade tier: %w", err)
		}
		return tag.RowsAffected() == 1, nil

	case achievement.UpdateProgressOnly:
		_, err := s.db.Exec(ctx, `
		UPDATE user_achievements SET
			percentage_complete = $3,
			progress = $4
		WHERE user_id = $1 AND achievement_code = $2
		`, userID, update.Code, update.Percentage, update.Progress)
		if err != nil {
			return false, fmt.Errorf("failed to refresh progress: %w", err)
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown update kind %d", update.Kind)
}

func (s *AchievementService) logUpdate(ctx context.Context, userID uuid.UUID, update achievement.Update) error {
	category := activity.LogEarnBadge
	if update.Kind == achievement.UpdateTierUpgraded {
		category = activity.LogTierUpgrade
	}

	detail, _ := json.Marshal(map[string]any{
		"from_tier": update.FromTier,
		"points":    update.Points,
	})

	_, err := s.db.Exec(ctx, `
	INSERT INTO activity_log (user_id, category, achievement_code, tier, detail)
	VALUES ($1, $2, $3, $4, $5)
	`, userID, category, update.Code, update.Tier, detail)
	return err
}

func (s *AchievementService) recordCoinEarned(ctx context.Context, userID uuid.UUID, update achievement.Update) {
	if s.recorder == nil {
		return
	}
	event := activity.Event{
		ID:     uuid.New(),
		UserID: userID,
		Type:   activity.TypeCoinEarned,
		Payload: map[string]any{
			"achievementCode": update.Code,
			"tier":            string(update.Tier),
			"points":          update.Points,
		},
		CreatedAt: time.Now(),
	}
	if err := s.recorder.Track(ctx, event); err != nil {
		log.Printf("Achievement: failed to record coin_earned for user %s: %v", userID, err)
	}
}

func (s *AchievementService) notifyAward(ctx context.Context, userID uuid.UUID, update achievement.Update) {
	if s.users == nil {
		return
	}
	title := "New coin earned!"
	body := fmt.Sprintf("You earned the %s coin.", update.Code)
	if update.Kind == achievement.UpdateTierUpgraded {
		title = "Tier upgrade!"
		body = fmt.Sprintf("Your %s coin is now %s.", update.Code, update.Tier)
	}
	s.users.NotifyUser(ctx, userID, title, body, map[string]any{
		"achievementCode": update.Code,
		"tier":            string(update.Tier),
	})
}

// ListWithProgress joins the registry with the user's awards and live
// progress. Hidden coins only appear once earned.
func (s *AchievementService) ListWithProgress(ctx context.Context, userID uuid.UUID, st *stats.UserStats, category achievement.Category) ([]achievement.WithProgress, error) {
	defs, err := s.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	awards, err := s.Awards(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := make([]achievement.WithProgress, 0, len(defs))
	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		if category != "" && def.Category != category {
			continue
		}
		ua, earned := awards[def.Code]
		if !def.Visible(earned) {
			continue
		}

		item := achievement.WithProgress{Definition: def, Earned: earned}
		if prog, ok := achievement.ProgressOf(def, st); ok {
			item.UserProgress = prog
		}
		if earned {
			item.CurrentTier = ua.CurrentTier
			item.PointsAwarded = ua.PointsAwarded
			item.EarnedAt = ua.EarnedAt.Format(time.RFC3339)
			if ua.LastTierUpgradeAt != nil {
				item.LastTierUpgradeAt = ua.LastTierUpgradeAt.Format(time.RFC3339)
			}
		}
		list = append(list, item)
	}
	return list, nil
}

// ClearForUser wipes one user's awards and repairs the rollup. Admin only.
func (s *AchievementService) ClearForUser(ctx context.Context, userID, adminID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear achievements: %w", err)
	}

	// The wipe log records who ordered it alongside the count.
	_, err = s.db.Exec(ctx, `
	INSERT INTO activity_log (user_id, category, detail)
	VALUES ($1, 'achievements_wipe', $2)
	`, userID, fmt.Sprintf(`{"cleared": %d, "admin_user_id": %q}`, tag.RowsAffected(), adminID))
	if err != nil {
		log.Printf("Achievement: failed to log wipe for user %s: %v", userID, err)
	}

	if err := s.scores.Recalculate(ctx, userID); err != nil {
		log.Printf("Achievement: failed to recalculate after wipe for user %s: %v", userID, err)
	}
	s.cache.InvalidateEngagement(ctx, userID, time.Now())

	log.Printf("Achievement: cleared %d awards for user %s", tag.RowsAffected(), userID)
	return tag.RowsAffected(), nil
}

// ClearAll wipes every award. Used by admin tooling before re-seeding the
// definition registry.
func (s *AchievementService) ClearAll(ctx context.Context, adminID uuid.UUID) (int64, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT user_id FROM user_achievements`)
	if err != nil {
		return 0, fmt.Errorf("failed to list awarded users: %w", err)
	}
	var userIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var total int64
	for _, userID := range userIDs {
		cleared, err := s.ClearForUser(ctx, userID, adminID)
		if err != nil {
			log.Printf("Achievement: clear all failed for user %s: %v", userID, err)
			continue
		}
		total += cleared
	}
	log.Printf("Achievement: cleared %d awards across %d users", total, len(userIDs))
	return total, nil
}

// Recent returns the user's latest awards for leaderboard badges.
func (s *AchievementService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]achievement.UserAchievement, error) {
	query := `
	SELECT user_id, achievement_code, current_tier, percentage_complete,
	       points_awarded, progress, earned_at, last_tier_upgrade_at
	FROM user_achievements
	WHERE user_id = $1
	ORDER BY earned_at DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent achievements: %w", err)
	}
	defer rows.Close()

	var recent []achievement.UserAchievement
	for rows.Next() {
		var ua achievement.UserAchievement
		if err := rows.Scan(
			&ua.UserID, &ua.AchievementCode, &ua.CurrentTier, &ua.PercentageComplete,
			&ua.PointsAwarded, &ua.Progress, &ua.EarnedAt, &ua.LastTierUpgradeAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recent achievement: %w", err)
		}
		recent = append(recent, ua)
	}
	return recent, rows.Err()
}

func updateKindLabel(kind achievement.UpdateKind) string {
	if kind == achievement.UpdateTierUpgraded {
		return "tier_upgraded"
	}
	return "awarded"
}
