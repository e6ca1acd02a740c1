package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jerkyClubAPI/internal/apperr"
	"jerkyClubAPI/internal/notification"
	"jerkyClubAPI/internal/user"
)

// UserService owns the identity rows the engine reads: creation and updates
// arrive from the Clerk webhook, everything else resolves clerk IDs and
// serves the cached profile card.
type UserService struct {
	db           *pgxpool.Pool
	cache        *CacheService
	pushProvider notification.PushProvider
}

func NewUserService(db *pgxpool.Pool, cache *CacheService) *UserService {
	return &UserService{db: db, cache: cache}
}

// SetPushProvider injects the FCM client after boot. Without one, NotifyUser
// is a no-op.
func (s *UserService) SetPushProvider(provider notification.PushProvider) {
	s.pushProvider = provider
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{}

	query := `
	INSERT INTO users (clerk_id, email, handle, first_name, last_name, avatar_url)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (clerk_id) DO UPDATE SET
		email = EXCLUDED.email,
		handle = EXCLUDED.handle,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		avatar_url = EXCLUDED.avatar_url,
		updated_at = NOW()
	RETURNING id, clerk_id, email, handle, first_name, last_name, avatar_url, hide_name, is_active, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		req.ClerkID, req.Email, req.Handle, req.FirstName, req.LastName, req.AvatarURL,
	).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Handle, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.HideName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, handle, first_name, last_name, avatar_url, hide_name, is_active, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Handle, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.HideName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user.get", "user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// ResolveClerkID maps the authenticated Clerk subject onto our user id.
func (s *UserService) ResolveClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1 AND is_active = TRUE`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.NotFound("user.resolve", "user not found")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

// UpdateProfile writes the identity fields and drops the profile cache.
func (s *UserService) UpdateProfile(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users SET
		handle = COALESCE(NULLIF($2, ''), handle),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		avatar_url = COALESCE(NULLIF($5, ''), avatar_url),
		hide_name = COALESCE($6, hide_name),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, handle, first_name, last_name, avatar_url, hide_name, is_active, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query,
		clerkID, req.Handle, req.FirstName, req.LastName, req.AvatarURL, req.HideName,
	).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Handle, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.HideName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user.update", "user not found")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.cache.InvalidateProfile(ctx, u.ID)
	return u, nil
}

// ProfileDisplay serves the public profile card through the cache.
func (s *UserService) ProfileDisplay(ctx context.Context, userID uuid.UUID) (*user.ProfileDisplay, error) {
	if cached, ok := s.cache.GetProfile(ctx, userID); ok {
		return cached, nil
	}

	query := `
	SELECT id, first_name, last_name, handle, avatar_url, hide_name, created_at
	FROM users
	WHERE id = $1 AND is_active = TRUE
	`

	var firstName, lastName, handle, avatarURL string
	profile := &user.ProfileDisplay{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID, &firstName, &lastName, &handle, &avatarURL, &profile.HideName, &profile.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user.profile", "user not found")
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.DisplayName = user.User{
		FirstName: firstName, LastName: lastName, Handle: handle, HideName: profile.HideName,
	}.DisplayName()
	if !profile.HideName {
		profile.AvatarURL = avatarURL
	}

	s.cache.SetProfile(ctx, profile)
	return profile, nil
}

// DeactivateByClerkID handles the Clerk user.deleted event. Rows stay for
// referential integrity; the user just stops appearing anywhere.
func (s *UserService) DeactivateByClerkID(ctx context.Context, clerkID string) error {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
	UPDATE users SET is_active = FALSE, updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id
	`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("user.deactivate", "user not found")
		}
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.cache.InvalidateProfile(ctx, id)
	return nil
}

// RegisterDevice stores one FCM token for push delivery.
func (s *UserService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) error {
	if token == "" {
		return apperr.Validation("user.device", "missing fcm token")
	}
	_, err := s.db.Exec(ctx, `
	INSERT INTO user_devices (user_id, fcm_token, platform)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, fcm_token) DO NOTHING
	`, userID, token, platform)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *UserService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT fcm_token, platform FROM user_devices WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// NotifyUser pushes to all of the user's devices. No provider, no devices,
// or a failed send never bubbles up to the caller.
func (s *UserService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]any) {
	if s.pushProvider == nil {
		return
	}
	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Warning: loading device tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}
	if err := s.pushProvider.SendPush(ctx, tokens, title, body, data); err != nil {
		log.Printf("Warning: push to user %s failed: %v", userID, err)
	}
}
