package progress

import (
	"fmt"

	"jerkyClubAPI/internal/achievement"
	"jerkyClubAPI/internal/stats"
)

// NextAchievement describes the single coin (or tier) the user is closest
// to, shaped for the messaging layer.
type NextAchievement struct {
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Icon          string           `json:"icon"`
	Current       int              `json:"current"`
	Target        int              `json:"target"`
	Remaining     int              `json:"remaining"`
	Percentage    int              `json:"percentage"`
	IsTierUpgrade bool             `json:"is_tier_upgrade"`
	CurrentTier   achievement.Tier `json:"current_tier,omitempty"`
	NextTier      achievement.Tier `json:"next_tier,omitempty"`
	ActionText    string           `json:"action_text"`
}

// Closest picks the best candidate: unearned active coins with a working
// evaluator, plus earned tiered coins not yet at diamond (targeting the next
// tier threshold). Flavor coins are excluded outright since they are always
// trivially close. Highest percentage wins; ties break on smallest remaining,
// then definition insertion order.
func Closest(defs []achievement.Definition, awards map[string]achievement.UserAchievement, st *stats.UserStats, category achievement.Category) *NextAchievement {
	var best *NextAchievement

	for _, def := range defs {
		if !def.IsActive || def.CollectionType == achievement.CollectionFlavorCoin {
			continue
		}
		if category != "" && def.Category != category {
			continue
		}

		prog, ok := achievement.ProgressOf(def, st)
		if !ok {
			continue
		}

		existing, earned := awards[def.Code]

		var cand *NextAchievement
		switch {
		case !earned:
			if def.PrerequisiteCode != "" {
				if _, has := awards[def.PrerequisiteCode]; !has {
					continue
				}
			}
			if prog.Percentage >= 100 {
				// Will be picked up by the next evaluation pass; nothing
				// actionable to show.
				continue
			}
			remaining := prog.Required - prog.Current
			if remaining < 0 {
				remaining = 0
			}
			cand = &NextAchievement{
				Code:       def.Code,
				Name:       def.Name,
				Icon:       def.Icon,
				Current:    prog.Current,
				Target:     prog.Required,
				Remaining:  remaining,
				Percentage: prog.Percentage,
				ActionText: actionText(def.Requirement.Kind, remaining),
			}

		case def.HasTiers && existing.CurrentTier != achievement.TierDiamond:
			next, ok := achievement.NextTier(existing.CurrentTier)
			if !ok {
				continue
			}
			cutoff := def.TierThresholds.Cutoff(next)
			remaining := cutoff - prog.Percentage
			if remaining < 0 {
				remaining = 0
			}
			cand = &NextAchievement{
				Code:          def.Code,
				Name:          def.Name,
				Icon:          def.Icon,
				Current:       prog.Percentage,
				Target:        cutoff,
				Remaining:     remaining,
				Percentage:    prog.Percentage,
				IsTierUpgrade: true,
				CurrentTier:   existing.CurrentTier,
				NextTier:      next,
				ActionText:    upgradeText(remaining, next),
			}

		default:
			continue
		}

		if best == nil ||
			cand.Percentage > best.Percentage ||
			(cand.Percentage == best.Percentage && cand.Remaining < best.Remaining) {
			best = cand
		}
	}

	return best
}

func upgradeText(remaining int, next achievement.Tier) string {
	return fmt.Sprintf("%d%% more to reach %s", remaining, next)
}

func actionText(kind achievement.RequirementKind, remaining int) string {
	switch kind {
	case achievement.ReqRankCount:
		return fmt.Sprintf("Rank %d more %s", remaining, plural(remaining, "product", "products"))
	case achievement.ReqRankAllProducts:
		return fmt.Sprintf("Rank %d more %s to finish the catalog", remaining, plural(remaining, "product", "products"))
	case achievement.ReqStreakDays:
		return fmt.Sprintf("Keep your ranking streak alive for %d more %s", remaining, plural(remaining, "day", "days"))
	case achievement.ReqDailyLoginStreak:
		return fmt.Sprintf("Log in %d more %s in a row", remaining, plural(remaining, "day", "days"))
	case achievement.ReqUniqueBrands:
		return fmt.Sprintf("Try %d more %s", remaining, plural(remaining, "brand", "brands"))
	case achievement.ReqLeaderboardPosition:
		return "Climb the leaderboard"
	case achievement.ReqProfileViews, achievement.ReqProfileViewCount:
		return fmt.Sprintf("Get %d more profile %s", remaining, plural(remaining, "view", "views"))
	case achievement.ReqUniqueProfileViewCount:
		return fmt.Sprintf("Check out %d more %s", remaining, plural(remaining, "profile", "profiles"))
	case achievement.ReqTrendsetter:
		return fmt.Sprintf("Be first to rank %d more trending %s", remaining, plural(remaining, "product", "products"))
	case achievement.ReqCompleteAnimalCategory:
		return fmt.Sprintf("Complete %d more animal %s", remaining, plural(remaining, "category", "categories"))
	case achievement.ReqSearchCount:
		return fmt.Sprintf("Search %d more %s", remaining, plural(remaining, "time", "times"))
	case achievement.ReqProductViewCount:
		return fmt.Sprintf("View %d more %s", remaining, plural(remaining, "product", "products"))
	case achievement.ReqUniqueProductViewCount:
		return fmt.Sprintf("Discover %d more %s", remaining, plural(remaining, "product", "products"))
	case achievement.ReqPageViewCount:
		return fmt.Sprintf("Browse %d more %s", remaining, plural(remaining, "page", "pages"))
	default:
		return "Keep going"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
