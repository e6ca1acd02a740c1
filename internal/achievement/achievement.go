package achievement

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierNone     Tier = "none"
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
	TierComplete Tier = "complete"
)

// Ladder is the fixed tier progression for tiered coins.
var Ladder = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum, TierDiamond}

var tierRank = map[Tier]int{
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
	TierDiamond:  5,
}

func (t Tier) Rank() int { return tierRank[t] }

// Above reports a strictly higher tier. None and complete rank as zero, so
// non-tiered coins never "upgrade".
func (t Tier) Above(other Tier) bool { return t.Rank() > other.Rank() }

// NextTier returns the tier one step up the ladder.
func NextTier(t Tier) (Tier, bool) {
	r := t.Rank()
	if r == 0 || r >= len(Ladder) {
		return "", false
	}
	return Ladder[r], true
}

// Thresholds maps tier -> percentage cutoff.
type Thresholds map[Tier]int

var DefaultThresholds = Thresholds{
	TierBronze:   40,
	TierSilver:   60,
	TierGold:     75,
	TierPlatinum: 90,
	TierDiamond:  100,
}

// Cutoff returns the percentage cutoff for a tier, falling back to the
// defaults when the definition has no override.
func (th Thresholds) Cutoff(t Tier) int {
	if th != nil {
		if v, ok := th[t]; ok {
			return v
		}
	}
	return DefaultThresholds[t]
}

type Category string

const (
	CategoryRanking    Category = "ranking"
	CategoryEngagement Category = "engagement"
	CategoryFlavor     Category = "flavor"
	CategoryCollection Category = "collection"
)

type CollectionType string

const (
	CollectionEngagement CollectionType = "engagement_collection"
	CollectionStatic     CollectionType = "static_collection"
	CollectionDynamic    CollectionType = "dynamic_collection"
	CollectionFlavorCoin CollectionType = "flavor_coin"
	CollectionHidden     CollectionType = "hidden_collection"
	CollectionLegacy     CollectionType = "legacy"
)

type Definition struct {
	Code             string         `json:"code" db:"code"`
	Name             string         `json:"name" db:"name"`
	Icon             string         `json:"icon" db:"icon"`
	Description      string         `json:"description" db:"description"`
	Tier             Tier           `json:"tier" db:"tier"`
	Category         Category       `json:"category" db:"category"`
	CollectionType   CollectionType `json:"collection_type" db:"collection_type"`
	Requirement      Requirement    `json:"requirement" db:"requirement"`
	Points           int            `json:"points" db:"points"`
	HasTiers         bool           `json:"has_tiers" db:"has_tiers"`
	TierThresholds   Thresholds     `json:"tier_thresholds" db:"tier_thresholds"`
	PrerequisiteCode string         `json:"prerequisite_code,omitempty" db:"prerequisite_code"`
	IsActive         bool           `json:"is_active" db:"is_active"`
	IsHidden         bool           `json:"is_hidden" db:"is_hidden"`
}

// MaxTier is the highest tier this definition can reach.
func (d Definition) MaxTier() Tier {
	if d.HasTiers {
		return TierDiamond
	}
	return TierComplete
}

type UserAchievement struct {
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	AchievementCode    string     `json:"achievement_code" db:"achievement_code"`
	CurrentTier        Tier       `json:"current_tier" db:"current_tier"`
	PercentageComplete int        `json:"percentage_complete" db:"percentage_complete"`
	PointsAwarded      int        `json:"points_awarded" db:"points_awarded"`
	Progress           int        `json:"progress" db:"progress"`
	EarnedAt           time.Time  `json:"earned_at" db:"earned_at"`
	LastTierUpgradeAt  *time.Time `json:"last_tier_upgrade_at,omitempty" db:"last_tier_upgrade_at"`
}

type RequirementKind string

const (
	ReqRankCount              RequirementKind = "rank_count"
	ReqRankAllProducts        RequirementKind = "rank_all_products"
	ReqStreakDays             RequirementKind = "streak_days"
	ReqDailyLoginStreak       RequirementKind = "daily_login_streak"
	ReqUniqueBrands           RequirementKind = "unique_brands"
	ReqLeaderboardPosition    RequirementKind = "leaderboard_position"
	ReqProfileViews           RequirementKind = "profile_views"
	ReqTrendsetter            RequirementKind = "trendsetter"
	ReqCompleteAnimalCategory RequirementKind = "complete_animal_category"
	ReqSearchCount            RequirementKind = "search_count"
	ReqProductViewCount       RequirementKind = "product_view_count"
	ReqUniqueProductViewCount RequirementKind = "unique_product_view_count"
	ReqProfileViewCount       RequirementKind = "profile_view_count"
	ReqUniqueProfileViewCount RequirementKind = "unique_profile_view_count"
	ReqPageViewCount          RequirementKind = "page_view_count"
	ReqJoinBefore             RequirementKind = "join_before"

	// Delegated to the collection manager; the engine recognizes these but
	// never evaluates them itself.
	ReqCompleteCollection  RequirementKind = "complete_collection"
	ReqStaticCollection    RequirementKind = "static_collection"
	ReqFlavorCoin          RequirementKind = "flavor_coin"
	ReqProteinCategoryPct  RequirementKind = "complete_protein_category_percentage"

	ReqUnknown RequirementKind = "unknown"
)

// Requirement is the tagged variant stored in the definition's requirement
// column. Value carries the numeric parameter, Date only applies to
// join_before.
type Requirement struct {
	Kind  RequirementKind `json:"kind"`
	Value int             `json:"value,omitempty"`
	Date  time.Time       `json:"date,omitempty"`
}

// ParseRequirement decodes the stored JSON requirement. Anything that does
// not decode, or names a kind this build does not know, comes back as
// Unknown and is permanently non-awarding.
func ParseRequirement(raw []byte) Requirement {
	var req Requirement
	if len(raw) == 0 {
		return Requirement{Kind: ReqUnknown}
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return Requirement{Kind: ReqUnknown}
	}
	if !req.Kind.known() {
		return Requirement{Kind: ReqUnknown}
	}
	return req
}

func (k RequirementKind) known() bool {
	switch k {
	case ReqRankCount, ReqRankAllProducts, ReqStreakDays, ReqDailyLoginStreak,
		ReqUniqueBrands, ReqLeaderboardPosition, ReqProfileViews, ReqTrendsetter,
		ReqCompleteAnimalCategory, ReqSearchCount, ReqProductViewCount,
		ReqUniqueProductViewCount, ReqProfileViewCount, ReqUniqueProfileViewCount,
		ReqPageViewCount, ReqJoinBefore, ReqCompleteCollection,
		ReqStaticCollection, ReqFlavorCoin, ReqProteinCategoryPct:
		return true
	}
	return false
}

// Visible reports whether the user may see this definition in listings.
// Hidden coins only show up once earned.
func (d Definition) Visible(earned bool) bool {
	if earned {
		return true
	}
	return !d.IsHidden && d.CollectionType != CollectionHidden
}
