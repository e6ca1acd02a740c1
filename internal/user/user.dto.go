package user

import (
	"time"

	"github.com/google/uuid"
)

type CreateUserRequest struct {
	ClerkID   string `json:"clerkId" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Handle    string `json:"handle" validate:"required,min=3,max=30"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type UpdateProfileRequest struct {
	Handle    string `json:"handle,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	HideName  *bool  `json:"hideName,omitempty"`
}

// ProfileDisplay is the cached public profile card.
type ProfileDisplay struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	HideName    bool      `json:"hide_name"`
	JoinedAt    time.Time `json:"joined_at"`
}
