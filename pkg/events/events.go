// Package events defines the Kafka topics and payloads shared by the
// producing services (bookings, reviews) and the notifications consumer.
package events

import "time"

const (
	TopicBookingEvents = "lastbite.booking-events"
	TopicReviewEvents  = "lastbite.review-events"

	TopicBookingEventsDLQ = "lastbite.booking-events.dlq"
	TopicReviewEventsDLQ  = "lastbite.review-events.dlq"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"
	EventReviewCreated    = "review.created"
)

// BookingEvent is published on every lifecycle transition. The offer title
// is denormalized so the consumer can render notifications without a
// cross-collection lookup.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	OfferID    string    `json:"offer_id"`
	StoreID    string    `json:"store_id"`
	BuyerID    string    `json:"buyer_id"`
	SellerID   string    `json:"seller_id"`
	OfferTitle string    `json:"offer_title"`
	Quantity   int       `json:"quantity"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ReviewEvent struct {
	ReviewID   string    `json:"review_id"`
	BookingID  string    `json:"booking_id"`
	StoreID    string    `json:"store_id"`
	OfferID    string    `json:"offer_id"`
	UserID     string    `json:"user_id"`
	SellerID   string    `json:"seller_id"`
	Rating     int       `json:"rating"`
	OccurredAt time.Time `json:"occurred_at"`
}
