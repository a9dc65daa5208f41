package entity

import (
	"time"

	"github.com/google/uuid"
)

// Review is a rating left on a business. Ratings are expected in 1..5 but the
// search engine averages whatever the store returns.
type Review struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	BusinessID uuid.UUID `json:"business_id" validate:"required"`
	Rating     float64   `json:"rating"`
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
