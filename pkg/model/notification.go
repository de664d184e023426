package model

import "time"

const (
	NotifyBookingCreated   = "booking_created"
	NotifyBookingConfirmed = "booking_confirmed"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyBookingCompleted = "booking_completed"
	NotifyReviewCreated    = "review_created"
)

// Notification is a persisted, best-effort side-channel message produced
// by the fan-out consumer. Delivery beyond the database (push, email) is
// a separate concern.
type Notification struct {
	ID        string            `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string            `json:"user_id" bson:"user_id" validate:"required"`
	Kind      string            `json:"kind" bson:"kind" validate:"required,oneof=booking_created booking_confirmed booking_cancelled booking_completed review_created"`
	Title     string            `json:"title" bson:"title" validate:"required,min=2,max=120"`
	Body      string            `json:"body" bson:"body" validate:"required,max=500"`
	Data      map[string]string `json:"data,omitempty" bson:"data,omitempty"`
	Read      bool              `json:"read" bson:"read"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at" validate:"omitempty"`
}
