package model

import "time"

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking reserves a quantity of an offer. Creation decrements the offer's
// available quantity inside the same transaction; cancellation restores it.
type Booking struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OfferID     string    `json:"offer_id" bson:"offer_id" validate:"required,mongodb"`
	StoreID     string    `json:"store_id" bson:"store_id" validate:"omitempty,mongodb"`
	BuyerID     string    `json:"buyer_id" bson:"buyer_id" validate:"required"`
	SellerID    string    `json:"seller_id" bson:"seller_id" validate:"omitempty"`
	Quantity    int       `json:"quantity" bson:"quantity" validate:"required,min=1,max=100"`
	UnitPrice   float64   `json:"unit_price" bson:"unit_price" validate:"omitempty,gte=0"`
	TotalPrice  float64   `json:"total_price" bson:"total_price" validate:"omitempty,gte=0"`
	Status      string    `json:"status" bson:"status" validate:"required,oneof=pending confirmed completed cancelled"`
	PickupCode  string    `json:"pickup_code,omitempty" bson:"pickup_code,omitempty" validate:"omitempty,len=8"`
	PickupToken string    `json:"pickup_token,omitempty" bson:"pickup_token,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// CanTransitionTo encodes the booking state machine:
// pending -> confirmed | cancelled, confirmed -> completed | cancelled.
// Completed and cancelled are terminal.
func (b *Booking) CanTransitionTo(next string) bool {
	switch b.Status {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCompleted || next == BookingCancelled
	default:
		return false
	}
}

// HoldsInventory reports whether the booking currently accounts for
// reserved offer stock that must be restored if it is cancelled.
func (b *Booking) HoldsInventory() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}
