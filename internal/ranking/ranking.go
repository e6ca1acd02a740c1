package ranking

import (
	"time"

	"github.com/google/uuid"
)

// Ranking is one product placed on one of the user's lists. Uniqueness is
// (user, list, product); re-saving moves the position.
type Ranking struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ListID    uuid.UUID `json:"list_id" db:"list_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SaveRequest struct {
	ListID    uuid.UUID `json:"list_id" validate:"required"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Position  int       `json:"position" validate:"required,min=1"`
}
