package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelUser "jerkyClubAPI/internal/user"
	"jerkyClubAPI/services"
	"jerkyClubAPI/tests/helpers"
)

// weekStartUTC is the start of the current ISO week, matching what the
// weekly reset zeroes.
func weekStartUTC(now time.Time) time.Time {
	now = now.UTC()
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysSinceMonday)
}

func monthStartUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TestRecalculateUsesCalendarBuckets pins the repair fold to the same
// calendar week and month the resets zero. Events from before the current
// bucket boundary must stay out of the short buckets even when they are
// only a few days old.
func TestRecalculateUsesCalendarBuckets(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	cache := services.NewCacheService()
	userService := services.NewUserService(pool, cache)
	scoreService := services.NewScoreService(pool, cache)

	ctx := context.Background()
	now := time.Now().UTC()
	suffix := now.Format("20060102150405")

	insertSearch := func(userID uuid.UUID, at time.Time) {
		_, err := pool.Exec(ctx, `
		INSERT INTO activity_events (id, user_id, event_type, payload, created_at)
		VALUES ($1, $2, 'search', '{}', $3)
		`, uuid.New(), userID, at)
		require.NoError(t, err)
	}

	t.Log("Week bucket excludes events from before Monday")
	weekUser, err := userService.CreateUser(ctx, &modelUser.CreateUserRequest{
		ClerkID: "user_test_recalc_week_" + suffix,
		Email:   "test.recalc.week@example.com",
		Handle:  "recalcweek" + suffix,
	})
	require.NoError(t, err)

	insertSearch(weekUser.ID, now)
	insertSearch(weekUser.ID, weekStartUTC(now).Add(-time.Minute))

	require.NoError(t, scoreService.Recalculate(ctx, weekUser.ID))
	row, err := scoreService.Get(ctx, weekUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.AllTime.Searches)
	assert.Equal(t, 1, row.Week.Searches, "pre-week event must not count toward the week bucket")

	t.Log("Month bucket excludes events from before the 1st")
	monthUser, err := userService.CreateUser(ctx, &modelUser.CreateUserRequest{
		ClerkID: "user_test_recalc_month_" + suffix,
		Email:   "test.recalc.month@example.com",
		Handle:  "recalcmonth" + suffix,
	})
	require.NoError(t, err)

	insertSearch(monthUser.ID, now)
	insertSearch(monthUser.ID, monthStartUTC(now).Add(-time.Minute))

	require.NoError(t, scoreService.Recalculate(ctx, monthUser.ID))
	row, err = scoreService.Get(ctx, monthUser.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.AllTime.Searches)
	assert.Equal(t, 1, row.Month.Searches, "pre-month event must not count toward the month bucket")
}
