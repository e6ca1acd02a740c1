package activity

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSearch       Type = "search"
	TypeProductView  Type = "product_view"
	TypeProfileView  Type = "profile_view"
	TypeRankingSaved Type = "ranking_saved"
	TypeCoinEarned   Type = "coin_earned"
	TypeLogin        Type = "login"
	TypePurchase     Type = "purchase"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSearch, TypeProductView, TypeProfileView, TypeRankingSaved,
		TypeCoinEarned, TypeLogin, TypePurchase:
		return true
	}
	return false
}

// Immediate types bypass the batch queue and are persisted on the spot.
func (t Type) Immediate() bool {
	switch t {
	case TypeRankingSaved, TypeCoinEarned, TypeLogin, TypePurchase:
		return true
	}
	return false
}

// TriggersClassification reports whether this activity should wake the
// classification worker for the user. Coin earns and logins do not.
func (t Type) TriggersClassification() bool {
	switch t {
	case TypeSearch, TypeProductView, TypeProfileView, TypeRankingSaved, TypePurchase:
		return true
	}
	return false
}

// Event is an append-only activity record. Events are never mutated after
// insert; the event ID doubles as an idempotency key.
type Event struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Type      Type           `json:"type" db:"type"`
	Payload   map[string]any `json:"payload" db:"payload"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// LogCategory is the category column of the activity log written by the
// achievement engine alongside awards.
type LogCategory string

const (
	LogEarnBadge        LogCategory = "earn_badge"
	LogTierUpgrade      LogCategory = "tier_upgrade"
	LogAchievementsWipe LogCategory = "achievements_wipe"
)

type LogEntry struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Category  LogCategory    `json:"category" db:"category"`
	Payload   map[string]any `json:"payload" db:"payload"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
