package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modelUser "jerkyClubAPI/internal/user"
	"jerkyClubAPI/services"
	"jerkyClubAPI/tests/helpers"
)

// TestClearForUserRecordsActingAdmin checks the wipe audit entry: it must
// carry both the cleared count and the id of the admin who ordered it.
func TestClearForUserRecordsActingAdmin(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	cache := services.NewCacheService()
	userService := services.NewUserService(pool, cache)
	scoreService := services.NewScoreService(pool, cache)
	achievementService := services.NewAchievementService(pool, scoreService, cache, userService)

	ctx := context.Background()
	suffix := time.Now().Format("20060102150405")

	admin, err := userService.CreateUser(ctx, &modelUser.CreateUserRequest{
		ClerkID: "user_test_wipe_admin_" + suffix,
		Email:   "test.wipe.admin@example.com",
		Handle:  "wipeadmin" + suffix,
	})
	require.NoError(t, err)
	target, err := userService.CreateUser(ctx, &modelUser.CreateUserRequest{
		ClerkID: "user_test_wipe_target_" + suffix,
		Email:   "test.wipe.target@example.com",
		Handle:  "wipetarget" + suffix,
	})
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `
	INSERT INTO achievement_definitions (code, name, category, requirement)
	VALUES ('test_wipe_coin', 'Wipe Test Coin', 'engagement', '{"kind": "search_count", "value": 10}')
	ON CONFLICT (code) DO NOTHING
	`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
	INSERT INTO user_achievements (user_id, achievement_code, current_tier, percentage_complete, points_awarded)
	VALUES ($1, 'test_wipe_coin', 'bronze', 100, 10)
	`, target.ID)
	require.NoError(t, err)

	cleared, err := achievementService.ClearForUser(ctx, target.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	var remaining int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_achievements WHERE user_id = $1`, target.ID).Scan(&remaining))
	assert.Zero(t, remaining)

	var clearedLogged int
	var adminLogged string
	require.NoError(t, pool.QueryRow(ctx, `
	SELECT (detail->>'cleared')::int, detail->>'admin_user_id'
	FROM activity_log
	WHERE user_id = $1 AND category = 'achievements_wipe'
	ORDER BY created_at DESC
	LIMIT 1
	`, target.ID).Scan(&clearedLogged, &adminLogged))
	assert.Equal(t, 1, clearedLogged)
	assert.Equal(t, admin.ID.String(), adminLogged)
}
