package achievement

import (
	"math"

	"jerkyClubAPI/internal/stats"
)

// ProgressInfo is the progress of one user against one definition.
type ProgressInfo struct {
	Current    int `json:"current"`
	Required   int `json:"required"`
	Percentage int `json:"percentage"`
}

type evaluator func(st *stats.UserStats, req Requirement) (current, required int)

// The evaluator table. Kinds absent here (delegated collection kinds and
// unknown) are never awardable by this engine.
var evaluators = map[RequirementKind]evaluator{
	ReqRankCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalRankings, req.Value
	},
	ReqRankAllProducts: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.UniqueProducts, st.TotalRankableProducts
	},
	ReqStreakDays: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.LongestStreak, req.Value
	},
	ReqDailyLoginStreak: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.CurrentLoginStreak, req.Value
	},
	ReqUniqueBrands: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.UniqueBrands, req.Value
	},
	ReqLeaderboardPosition: func(st *stats.UserStats, req Requirement) (int, int) {
		// Binary: either the user sits at or above the required position.
		if st.LeaderboardPosition > 0 && st.LeaderboardPosition <= req.Value {
			return 1, 1
		}
		return 0, 1
	},
	ReqProfileViews: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalProfileViews, req.Value
	},
	ReqTrendsetter: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TrendingRanks, req.Value
	},
	ReqCompleteAnimalCategory: func(st *stats.UserStats, req Requirement) (int, int) {
		return len(st.CompletedAnimalCategories), req.Value
	},
	ReqSearchCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalSearches, req.Value
	},
	ReqProductViewCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalProductViews, req.Value
	},
	ReqUniqueProductViewCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.UniqueProductViews, req.Value
	},
	ReqProfileViewCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalProfileViews, req.Value
	},
	ReqUniqueProfileViewCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.UniqueProfileViews, req.Value
	},
	ReqPageViewCount: func(st *stats.UserStats, req Requirement) (int, int) {
		return st.TotalPageViews, req.Value
	},
	ReqJoinBefore: func(st *stats.UserStats, req Requirement) (int, int) {
		if !st.JoinDate.IsZero() && st.JoinDate.Before(req.Date) {
			return 1, 1
		}
		return 0, 1
	},
}

// ProgressOf computes progress for one definition. ok is false when the
// requirement kind has no evaluator here (delegated or unknown).
func ProgressOf(def Definition, st *stats.UserStats) (ProgressInfo, bool) {
	eval, ok := evaluators[def.Requirement.Kind]
	if !ok {
		return ProgressInfo{}, false
	}
	current, required := eval(st, def.Requirement)
	return ProgressInfo{
		Current:    current,
		Required:   required,
		Percentage: Percentage(current, required),
	}, true
}

// Percentage clamps to [0,100]. A zero requirement is complete on sight.
func Percentage(current, required int) int {
	if required <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	pct := int(math.Round(float64(current) / float64(required) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// TargetTier maps a percentage onto the tier the definition should sit at.
func TargetTier(def Definition, pct int) Tier {
	if !def.HasTiers {
		if pct >= 100 {
			return TierComplete
		}
		return TierNone
	}
	target := TierNone
	for _, t := range Ladder {
		if pct >= def.TierThresholds.Cutoff(t) {
			target = t
		}
	}
	return target
}

// TierPoints is the proportional point total awarded at a tier. Diamond and
// non-tiered completion pay out the definition's full points.
func TierPoints(def Definition, tier Tier) int {
	if !def.HasTiers || tier == TierDiamond {
		return def.Points
	}
	cutoff := def.TierThresholds.Cutoff(tier)
	return int(math.Round(float64(cutoff) / 100 * float64(def.Points)))
}

type UpdateKind int

const (
	UpdateAwarded UpdateKind = iota + 1
	UpdateTierUpgraded
	UpdateProgressOnly
)

// Update is one unit of change the engine wants persisted. Awarded and
// TierUpgraded units are activity-logged and each bumps the achievements
// counter by one; ProgressOnly refreshes percentage and progress silently.
type Update struct {
	Kind       UpdateKind `json:"kind"`
	Code       string     `json:"code"`
	FromTier   Tier       `json:"from_tier,omitempty"`
	Tier       Tier       `json:"tier"`
	Points     int        `json:"points"`
	Percentage int        `json:"percentage"`
	Progress   int        `json:"progress"`
}

// PlanUpdates walks the active definitions in insertion order and decides
// every persistence unit for this stats snapshot. Pure: the caller owns the
// side effects.
//
// A first award that lands above bronze walks the full ladder: one Awarded
// at bronze, then one TierUpgraded per tier up to the target, so a 0%->92%
// jump still records the bronze->silver->gold->platinum progression. An
// already-awarded coin moving up emits a single TierUpgraded straight to the
// target. Tiers never go down.
func PlanUpdates(defs []Definition, awards map[string]UserAchievement, st *stats.UserStats) []Update {
	var updates []Update

	// Awards granted earlier in this same pass satisfy prerequisites for
	// later definitions, which keeps A-before-B deterministic.
	awarded := make(map[string]UserAchievement, len(awards))
	for code, ua := range awards {
		awarded[code] = ua
	}

	for _, def := range defs {
		if !def.IsActive {
			continue
		}
		prog, ok := ProgressOf(def, st)
		if !ok {
			continue
		}
		if def.PrerequisiteCode != "" {
			if _, has := awarded[def.PrerequisiteCode]; !has {
				continue
			}
		}

		target := TargetTier(def, prog.Percentage)
		existing, has := awarded[def.Code]

		switch {
		case !has && target != TierNone:
			if !def.HasTiers {
				updates = append(updates, Update{
					Kind:       UpdateAwarded,
					Code:       def.Code,
					Tier:       TierComplete,
					Points:     def.Points,
					Percentage: prog.Percentage,
					Progress:   prog.Current,
				})
				awarded[def.Code] = UserAchievement{AchievementCode: def.Code, CurrentTier: TierComplete}
				continue
			}
			prev := TierBronze
			updates = append(updates, Update{
				Kind:       UpdateAwarded,
				Code:       def.Code,
				Tier:       TierBronze,
				Points:     TierPoints(def, TierBronze),
				Percentage: prog.Percentage,
				Progress:   prog.Current,
			})
			for _, t := range Ladder[1:] {
				if t.Rank() > target.Rank() {
					break
				}
				updates = append(updates, Update{
					Kind:       UpdateTierUpgraded,
					Code:       def.Code,
					FromTier:   prev,
					Tier:       t,
					Points:     TierPoints(def, t),
					Percentage: prog.Percentage,
					Progress:   prog.Current,
				})
				prev = t
			}
			awarded[def.Code] = UserAchievement{AchievementCode: def.Code, CurrentTier: target}

		case has && target.Above(existing.CurrentTier):
			updates = append(updates, Update{
				Kind:       UpdateTierUpgraded,
				Code:       def.Code,
				FromTier:   existing.CurrentTier,
				Tier:       target,
				Points:     TierPoints(def, target),
				Percentage: prog.Percentage,
				Progress:   prog.Current,
			})
			existing.CurrentTier = target
			awarded[def.Code] = existing

		case has && prog.Percentage != existing.PercentageComplete:
			updates = append(updates, Update{
				Kind:       UpdateProgressOnly,
				Code:       def.Code,
				Tier:       existing.CurrentTier,
				Points:     existing.PointsAwarded,
				Percentage: prog.Percentage,
				Progress:   prog.Current,
			})
			existing.PercentageComplete = prog.Percentage
			awarded[def.Code] = existing
		}
	}

	return updates
}

// WithProgress is a definition joined with the user's state for listings.
type WithProgress struct {
	Definition
	Earned            bool         `json:"earned"`
	CurrentTier       Tier         `json:"current_tier,omitempty"`
	PointsAwarded     int          `json:"points_awarded"`
	UserProgress      ProgressInfo `json:"progress"`
	EarnedAt          string       `json:"earned_at,omitempty"`
	LastTierUpgradeAt string       `json:"last_tier_upgrade_at,omitempty"`
}
