package model

import "time"

const (
	OfferActive  = "active"
	OfferSoldOut = "sold_out"
	OfferExpired = "expired"
)

const (
	CategoryBakery  = "bakery"
	CategoryProduce = "produce"
	CategoryDairy   = "dairy"
	CategoryMeals   = "meals"
	CategoryGrocery = "grocery"
	CategoryOther   = "other"
)

// Offer is a surplus-food listing. Quantity is the initial stock and is
// immutable after creation; AvailableQuantity only changes through guarded
// $inc updates inside booking transactions.
type Offer struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	StoreID           string    `json:"store_id" bson:"store_id" validate:"required,mongodb"`
	SellerID          string    `json:"seller_id" bson:"seller_id" validate:"required"`
	Title             string    `json:"title" bson:"title" validate:"required,min=2,max=120"`
	Description       string    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Category          string    `json:"category" bson:"category" validate:"required,oneof=bakery produce dairy meals grocery other"`
	OriginalPrice     float64   `json:"original_price" bson:"original_price" validate:"required,gt=0"`
	DiscountedPrice   float64   `json:"discounted_price" bson:"discounted_price" validate:"required,gt=0,ltfield=OriginalPrice"`
	Quantity          int       `json:"quantity" bson:"quantity" validate:"required,min=1,max=1000"`
	AvailableQuantity int       `json:"available_quantity" bson:"available_quantity" validate:"min=0,ltefield=Quantity"`
	PickupStart       time.Time `json:"pickup_start" bson:"pickup_start" validate:"required"`
	PickupEnd         time.Time `json:"pickup_end" bson:"pickup_end" validate:"required,gtfield=PickupStart"`
	Status            string    `json:"status" bson:"status" validate:"required,oneof=active sold_out expired"`
	AverageRating     float64   `json:"average_rating" bson:"average_rating" validate:"omitempty,min=0,max=5"`
	RatingCount       int64     `json:"rating_count" bson:"rating_count" validate:"omitempty,min=0"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// OfferUpdate deliberately has no Quantity or AvailableQuantity field:
// stock can only move through the booking lifecycle.
type OfferUpdate struct {
	Title           string     `json:"title,omitempty" validate:"omitempty,min=2,max=120"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,max=1000"`
	Category        string     `json:"category,omitempty" validate:"omitempty,oneof=bakery produce dairy meals grocery other"`
	OriginalPrice   *float64   `json:"original_price,omitempty" validate:"omitempty,gt=0"`
	DiscountedPrice *float64   `json:"discounted_price,omitempty" validate:"omitempty,gt=0"`
	PickupStart     *time.Time `json:"pickup_start,omitempty" validate:"omitempty"`
	PickupEnd       *time.Time `json:"pickup_end,omitempty" validate:"omitempty"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=active sold_out expired"`
}
