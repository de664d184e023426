package model

import "time"

// Review rates a completed booking. The unique index on booking_id
// enforces one review per booking; only the buyer may write it.
type Review struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BookingID string    `json:"booking_id" bson:"booking_id" validate:"required,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required"`
	StoreID   string    `json:"store_id" bson:"store_id" validate:"omitempty,mongodb"`
	OfferID   string    `json:"offer_id" bson:"offer_id" validate:"omitempty,mongodb"`
	Rating    int       `json:"rating" bson:"rating" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty" validate:"omitempty,max=1000"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type ReviewUpdate struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// RatingSummary is the output of the $group recalculation pipeline.
type RatingSummary struct {
	Average float64 `bson:"average"`
	Count   int64   `bson:"count"`
}
