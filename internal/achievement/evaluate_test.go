package achievement

import (
	"testing"
	"time"

	"jerkyClubAPI/internal/stats"
)

func tieredDef(code string, required int) Definition {
	return Definition{
		Code:        code,
		Name:        code,
		Category:    CategoryRanking,
		Requirement: Requirement{Kind: ReqRankCount, Value: required},
		Points:      100,
		HasTiers:    true,
		IsActive:    true,
	}
}

func flatDef(code string, required int) Definition {
	return Definition{
		Code:        code,
		Name:        code,
		Category:    CategoryRanking,
		Requirement: Requirement{Kind: ReqRankCount, Value: required},
		Points:      50,
		IsActive:    true,
	}
}

func TestPercentageClamps(t *testing.T) {
	cases := []struct {
		current, required, want int
	}{
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
		{25, 10, 100},
		{-3, 10, 0},
		{7, 0, 100},
	}
	for _, c := range cases {
		if got := Percentage(c.current, c.required); got != c.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", c.current, c.required, got, c.want)
		}
	}
}

func TestTargetTier(t *testing.T) {
	def := tieredDef("ranker", 100)

	cases := []struct {
		pct  int
		want Tier
	}{
		{0, TierNone},
		{39, TierNone},
		{40, TierBronze},
		{60, TierSilver},
		{75, TierGold},
		{90, TierPlatinum},
		{100, TierDiamond},
	}
	for _, c := range cases {
		if got := TargetTier(def, c.pct); got != c.want {
			t.Errorf("TargetTier(%d%%) = %s, want %s", c.pct, got, c.want)
		}
	}

	flat := flatDef("one-shot", 1)
	if got := TargetTier(flat, 99); got != TierNone {
		t.Errorf("non-tiered at 99%% = %s, want none", got)
	}
	if got := TargetTier(flat, 100); got != TierComplete {
		t.Errorf("non-tiered at 100%% = %s, want complete", got)
	}
}

func TestTierPoints(t *testing.T) {
	def := tieredDef("ranker", 100)

	cases := []struct {
		tier Tier
		want int
	}{
		{TierBronze, 40},
		{TierSilver, 60},
		{TierGold, 75},
		{TierPlatinum, 90},
		{TierDiamond, 100},
	}
	for _, c := range cases {
		if got := TierPoints(def, c.tier); got != c.want {
			t.Errorf("TierPoints(%s) = %d, want %d", c.tier, got, c.want)
		}
	}
}

// A first award landing above bronze walks the whole ladder so the history
// shows every tier.
func TestPlanUpdatesFirstAwardLadderWalk(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100)}
	st := &stats.UserStats{TotalRankings: 92}

	updates := PlanUpdates(defs, map[string]UserAchievement{}, st)

	if len(updates) != 4 {
		t.Fatalf("got %d updates, want 4: %+v", len(updates), updates)
	}
	if updates[0].Kind != UpdateAwarded || updates[0].Tier != TierBronze {
		t.Errorf("first update = %+v, want Awarded bronze", updates[0])
	}
	wantTiers := []Tier{TierSilver, TierGold, TierPlatinum}
	for i, want := range wantTiers {
		up := updates[i+1]
		if up.Kind != UpdateTierUpgraded || up.Tier != want {
			t.Errorf("update %d = %+v, want TierUpgraded %s", i+1, up, want)
		}
	}
	if updates[3].Points != 90 {
		t.Errorf("platinum points = %d, want 90", updates[3].Points)
	}
}

func TestPlanUpdatesFullJumpEmitsFiveEvents(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100)}
	st := &stats.UserStats{TotalRankings: 100}

	updates := PlanUpdates(defs, map[string]UserAchievement{}, st)

	if len(updates) != 5 {
		t.Fatalf("0%%->100%% got %d updates, want 5 (one award, four upgrades)", len(updates))
	}
	if updates[4].Tier != TierDiamond || updates[4].Points != 100 {
		t.Errorf("final update = %+v, want diamond at full points", updates[4])
	}
}

func TestPlanUpdatesExistingAwardSingleUpgrade(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100)}
	awards := map[string]UserAchievement{
		"ranker": {AchievementCode: "ranker", CurrentTier: TierSilver, PercentageComplete: 60},
	}
	st := &stats.UserStats{TotalRankings: 91}

	updates := PlanUpdates(defs, awards, st)

	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1: %+v", len(updates), updates)
	}
	up := updates[0]
	if up.Kind != UpdateTierUpgraded || up.FromTier != TierSilver || up.Tier != TierPlatinum {
		t.Errorf("update = %+v, want silver->platinum in one step", up)
	}
}

func TestPlanUpdatesNeverDowngrades(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100)}
	awards := map[string]UserAchievement{
		"ranker": {AchievementCode: "ranker", CurrentTier: TierGold, PercentageComplete: 75},
	}
	// Stats fell back below the gold cutoff.
	st := &stats.UserStats{TotalRankings: 50}

	updates := PlanUpdates(defs, awards, st)

	for _, up := range updates {
		if up.Kind != UpdateProgressOnly {
			t.Errorf("unexpected %+v; tier must never go down", up)
		}
	}
}

func TestPlanUpdatesProgressOnlyWhenPercentageMoves(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100)}
	awards := map[string]UserAchievement{
		"ranker": {AchievementCode: "ranker", CurrentTier: TierBronze, PercentageComplete: 45},
	}
	st := &stats.UserStats{TotalRankings: 50}

	updates := PlanUpdates(defs, awards, st)

	if len(updates) != 1 || updates[0].Kind != UpdateProgressOnly || updates[0].Percentage != 50 {
		t.Fatalf("got %+v, want one ProgressOnly at 50%%", updates)
	}
}

// Re-running a plan against the state it produced is a no-op.
func TestPlanUpdatesIdempotent(t *testing.T) {
	defs := []Definition{tieredDef("ranker", 100), flatDef("starter", 1)}
	st := &stats.UserStats{TotalRankings: 62}

	first := PlanUpdates(defs, map[string]UserAchievement{}, st)
	if len(first) == 0 {
		t.Fatal("expected updates on first pass")
	}

	awards := map[string]UserAchievement{}
	for _, up := range first {
		ua := awards[up.Code]
		ua.AchievementCode = up.Code
		ua.CurrentTier = up.Tier
		ua.PercentageComplete = up.Percentage
		ua.PointsAwarded = up.Points
		awards[up.Code] = ua
	}

	second := PlanUpdates(defs, awards, st)
	if len(second) != 0 {
		t.Fatalf("second pass produced %+v, want none", second)
	}
}

// Prerequisites unlock within the same pass, in definition order.
func TestPlanUpdatesPrerequisiteGating(t *testing.T) {
	a := flatDef("first-rank", 1)
	b := flatDef("follow-up", 1)
	b.PrerequisiteCode = "first-rank"
	defs := []Definition{a, b}

	st := &stats.UserStats{TotalRankings: 1}

	updates := PlanUpdates(defs, map[string]UserAchievement{}, st)

	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2: %+v", len(updates), updates)
	}
	if updates[0].Code != "first-rank" || updates[1].Code != "follow-up" {
		t.Errorf("order = [%s, %s], want [first-rank, follow-up]", updates[0].Code, updates[1].Code)
	}

	// With the definitions reversed, B stays gated until the next pass.
	reversed := []Definition{b, a}
	updates = PlanUpdates(reversed, map[string]UserAchievement{}, st)
	if len(updates) != 1 || updates[0].Code != "first-rank" {
		t.Fatalf("reversed order got %+v, want only first-rank", updates)
	}
}

func TestPlanUpdatesSkipsUnknownAndInactive(t *testing.T) {
	unknown := flatDef("mystery", 1)
	unknown.Requirement = Requirement{Kind: ReqUnknown}
	inactive := flatDef("retired", 1)
	inactive.IsActive = false
	delegated := flatDef("collector", 1)
	delegated.Requirement = Requirement{Kind: ReqCompleteCollection}

	st := &stats.UserStats{TotalRankings: 10}

	updates := PlanUpdates([]Definition{unknown, inactive, delegated}, map[string]UserAchievement{}, st)
	if len(updates) != 0 {
		t.Fatalf("got %+v, want none", updates)
	}
}

func TestParseRequirement(t *testing.T) {
	req := ParseRequirement([]byte(`{"kind": "rank_count", "value": 25}`))
	if req.Kind != ReqRankCount || req.Value != 25 {
		t.Errorf("got %+v", req)
	}

	req = ParseRequirement([]byte(`{"kind": "time_travel", "value": 1}`))
	if req.Kind != ReqUnknown {
		t.Errorf("unrecognized kind parsed as %q, want unknown", req.Kind)
	}

	req = ParseRequirement([]byte(`not json`))
	if req.Kind != ReqUnknown {
		t.Errorf("garbage parsed as %q, want unknown", req.Kind)
	}

	req = ParseRequirement(nil)
	if req.Kind != ReqUnknown {
		t.Errorf("empty parsed as %q, want unknown", req.Kind)
	}
}

func TestJoinBeforeEvaluator(t *testing.T) {
	def := flatDef("early-bird", 0)
	def.Requirement = Requirement{Kind: ReqJoinBefore, Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	early := &stats.UserStats{JoinDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	late := &stats.UserStats{JoinDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	prog, ok := ProgressOf(def, early)
	if !ok || prog.Percentage != 100 {
		t.Errorf("early joiner progress = %+v, ok=%t", prog, ok)
	}
	prog, _ = ProgressOf(def, late)
	if prog.Percentage != 0 {
		t.Errorf("late joiner progress = %+v, want 0%%", prog)
	}
}

func TestVisible(t *testing.T) {
	hidden := flatDef("secret", 1)
	hidden.IsHidden = true

	if hidden.Visible(false) {
		t.Error("hidden coin visible before earning")
	}
	if !hidden.Visible(true) {
		t.Error("hidden coin not visible after earning")
	}
}
