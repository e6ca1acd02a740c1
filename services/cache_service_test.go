package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jerkyClubAPI/internal/leaderboard"
	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/internal/user"
)

func testView(period score.Period, userIDs ...uuid.UUID) *leaderboard.View {
	view := &leaderboard.View{
		Period:      period,
		TotalUsers:  len(userIDs),
		GeneratedAt: time.Now(),
	}
	for i, id := range userIDs {
		view.Entries = append(view.Entries, leaderboard.Entry{
			Rank:        i + 1,
			UserID:      id,
			DisplayName: "Tester",
			Score:       100 - i,
		})
	}
	return view
}

func TestCacheLeaderboardRoundTrip(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()

	userID := uuid.New()
	svc.SetLeaderboard(ctx, testView(score.PeriodWeek, userID), 50)

	got, ok := svc.GetLeaderboard(ctx, score.PeriodWeek, 50)
	require.True(t, ok)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, userID, got.Entries[0].UserID)

	// A different limit is a different page.
	_, ok = svc.GetLeaderboard(ctx, score.PeriodWeek, 10)
	assert.False(t, ok)
}

func TestInvalidateEngagementDropsPositions(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()
	userID := uuid.New()

	rank := 7
	for _, period := range score.Periods {
		p := period
		svc.SetPosition(ctx, userID, &leaderboard.Position{Period: p, Rank: &rank, Score: 42})
	}

	svc.InvalidateEngagement(ctx, userID, time.Now())

	for _, period := range score.Periods {
		_, ok := svc.GetPosition(ctx, userID, period)
		assert.False(t, ok, "position %s should be gone", period)
	}
}

// An old event timestamp outside the rolling week window leaves the week
// position untouched but still clears the all-time one.
func TestInvalidateEngagementRespectsWindows(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()
	userID := uuid.New()

	rank := 3
	for _, period := range score.Periods {
		p := period
		svc.SetPosition(ctx, userID, &leaderboard.Position{Period: p, Rank: &rank, Score: 9})
	}

	staleTS := time.Now().Add(-10 * 24 * time.Hour)
	svc.InvalidateEngagement(ctx, userID, staleTS)

	_, ok := svc.GetPosition(ctx, userID, score.PeriodAllTime)
	assert.False(t, ok, "all-time position always invalidates")
	_, ok = svc.GetPosition(ctx, userID, score.PeriodWeek)
	assert.True(t, ok, "week position survives a 10-day-old event")
	_, ok = svc.GetPosition(ctx, userID, score.PeriodMonth)
	assert.True(t, ok, "month position survives")
}

// Leaderboard pages only invalidate when the user actually appears in the
// cached rows.
func TestInvalidateEngagementMembershipTest(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()

	member := uuid.New()
	outsider := uuid.New()

	svc.SetLeaderboard(ctx, testView(score.PeriodAllTime, member, uuid.New()), 50)
	svc.SetLeaderboard(ctx, testView(score.PeriodWeek, uuid.New(), uuid.New()), 50)

	svc.InvalidateEngagement(ctx, outsider, time.Now())
	_, ok := svc.GetLeaderboard(ctx, score.PeriodAllTime, 50)
	assert.True(t, ok, "page without the user must stay cached")

	svc.InvalidateEngagement(ctx, member, time.Now())
	_, ok = svc.GetLeaderboard(ctx, score.PeriodAllTime, 50)
	assert.False(t, ok, "page containing the user must drop")
	_, ok = svc.GetLeaderboard(ctx, score.PeriodWeek, 50)
	assert.True(t, ok, "unrelated page stays cached")
}

func TestInvalidateProfile(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()

	userID := uuid.New()
	svc.SetProfile(ctx, &user.ProfileDisplay{UserID: userID, DisplayName: "Maya S."})

	got, ok := svc.GetProfile(ctx, userID)
	require.True(t, ok)
	assert.Equal(t, "Maya S.", got.DisplayName)

	svc.InvalidateProfile(ctx, userID)
	_, ok = svc.GetProfile(ctx, userID)
	assert.False(t, ok)
}

func TestCacheCorruptEntryIsDroppedOnRead(t *testing.T) {
	svc := newCacheServiceForTest()
	ctx := context.Background()

	key := leaderboardKey(score.PeriodAllTime, 50)
	require.NoError(t, svc.backend.Set(ctx, key, []byte("{not json"), time.Minute))

	_, ok := svc.GetLeaderboard(ctx, score.PeriodAllTime, 50)
	assert.False(t, ok)

	// The defensive delete means the raw bytes are gone too.
	_, present, err := svc.backend.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := newMemoryBackend()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), -time.Second))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must read as a miss")
}
