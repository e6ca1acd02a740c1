package user

import (
	"time"

	"github.com/google/uuid"

	"jerkyClubAPI/internal/leaderboard"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	ClerkID   string    `json:"clerkId"`
	Email     string    `json:"email"`
	Handle    string    `json:"handle"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	HideName  bool      `json:"hideName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName applies the privacy rules shared with the leaderboard.
func (u User) DisplayName() string {
	return leaderboard.DisplayName(u.FirstName, u.LastName, u.Handle, u.HideName)
}
