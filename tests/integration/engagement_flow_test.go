package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jerkyClubAPI/handlers"
	"jerkyClubAPI/internal/activity"
	"jerkyClubAPI/internal/score"
	"jerkyClubAPI/internal/stats"
	"jerkyClubAPI/internal/streak"
	modelUser "jerkyClubAPI/internal/user"
	"jerkyClubAPI/middleware"
	"jerkyClubAPI/services"
	"jerkyClubAPI/tests/helpers"
)

// TestEngagementFlow walks one user through the engagement pipeline: ingest,
// score rollup, streaks, stats and the leaderboard view.
func TestEngagementFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	cache := services.NewCacheService()
	userService := services.NewUserService(pool, cache)
	metricsService := services.NewMetricsService(pool)
	scoreService := services.NewScoreService(pool, cache)
	streakService := services.NewStreakService(pool)
	classifier := services.NewClassificationService(nil, nil, nil, nil)
	activityService := services.NewActivityService(pool, classifier)
	leaderboardService := services.NewLeaderboardService(pool, cache)

	ctx := context.Background()
	clerkID := "user_test_flow_" + time.Now().Format("20060102150405")

	t.Log("Step 1: Sign up")
	u, err := userService.CreateUser(ctx, &modelUser.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "test.flow@example.com",
		Handle:    "flowtester",
		FirstName: "Flow",
		LastName:  "Tester",
	})
	require.NoError(t, err)

	t.Log("Step 2: Track batched activity and flush")
	for i := 0; i < 3; i++ {
		require.NoError(t, activityService.Track(ctx, activity.Event{
			UserID:  u.ID,
			Type:    activity.TypeSearch,
			Payload: map[string]any{"query": "peppered beef"},
		}))
	}
	require.NoError(t, activityService.Flush(ctx))
	assert.Zero(t, activityService.PendingEvents())

	var eventCount int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE user_id = $1 AND event_type = 'search'`,
		u.ID).Scan(&eventCount)
	require.NoError(t, err)
	assert.Equal(t, 3, eventCount)

	t.Log("Step 3: Roll the searches into the score buckets")
	require.NoError(t, scoreService.Increment(ctx, u.ID, score.Counters{Searches: 3}, time.Now()))

	row, err := scoreService.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, row.AllTime.Searches)
	assert.Equal(t, 3, row.Week.Searches)
	assert.Equal(t, 3, row.Month.Searches)
	assert.Equal(t, 3, row.AllTime.Score())

	t.Log("Step 4: Record a login streak")
	s, err := streakService.RecordLogin(ctx, u.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)

	// Same day again: no change.
	s, err = streakService.RecordLogin(ctx, u.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, streak.TypeDailyLogin, s.Type)

	t.Log("Step 5: Stats snapshot sees the activity")
	st, err := metricsService.Snapshot(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalSearches)
	assert.Equal(t, 1, st.CurrentLoginStreak)

	t.Log("Step 6: Leaderboard view and position")
	view, err := leaderboardService.TopN(ctx, score.PeriodAllTime, 50)
	require.NoError(t, err)
	found := false
	for _, entry := range view.Entries {
		if entry.UserID == u.ID {
			found = true
			assert.Equal(t, 3, entry.Score)
			assert.Equal(t, "Flow T.", entry.DisplayName)
		}
	}
	assert.True(t, found, "user with a score should appear on the board")

	pos, err := leaderboardService.Position(ctx, u.ID, score.PeriodAllTime)
	require.NoError(t, err)
	require.NotNil(t, pos.Rank)
	assert.GreaterOrEqual(t, *pos.Rank, 1)
	assert.Equal(t, 3, pos.Score)

	t.Log("Step 7: Stats over HTTP")
	engagementHandler := handlers.NewEngagementHandler(activityService, streakService, metricsService, scoreService)

	// The auth middleware resolves both ids into context before handlers run.
	reqCtx := context.WithValue(context.Background(), middleware.ClerkIDKey, clerkID)
	reqCtx = context.WithValue(reqCtx, middleware.UserIDKey, u.ID)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/stats", nil).WithContext(reqCtx)
	rr := httptest.NewRecorder()

	engagementHandler.GetStats(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var gotStats stats.UserStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &gotStats))
	assert.Equal(t, 3, gotStats.TotalSearches)

	t.Log("Step 8: Weekly reset zeroes only the week bucket")
	require.NoError(t, scoreService.ResetWeekly(ctx))

	row, err = scoreService.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, row.Week.Searches)
	assert.Equal(t, 3, row.AllTime.Searches)
	assert.Equal(t, 3, row.Month.Searches)
}
