package model

import "time"

// GeoPoint is a GeoJSON point (longitude first, then latitude),
// matching what the 2dsphere index on the Stores collection expects.
type GeoPoint struct {
	Type        string    `json:"type" bson:"type" validate:"required,eq=Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"required,len=2,geo_coordinates"`
}

type Store struct {
	ID            string            `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID       string            `json:"owner_id" bson:"owner_id" validate:"required"`
	Name          string            `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description   string            `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Address       string            `json:"address" bson:"address" validate:"required,min=2,max=200"`
	City          string            `json:"city" bson:"city" validate:"required,min=2,max=100"`
	Phone         string            `json:"phone" bson:"phone" validate:"required,e164"`
	Location      GeoPoint          `json:"location" bson:"location" validate:"required"`
	OpeningHours  map[string]string `json:"opening_hours,omitempty" bson:"opening_hours,omitempty" validate:"omitempty,opening_hours"`
	AverageRating float64           `json:"average_rating" bson:"average_rating" validate:"omitempty,min=0,max=5"`
	RatingCount   int64             `json:"rating_count" bson:"rating_count" validate:"omitempty,min=0"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type StoreUpdate struct {
	Name         string             `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description  *string            `json:"description,omitempty" validate:"omitempty,max=500"`
	Address      string             `json:"address,omitempty" validate:"omitempty,min=2,max=200"`
	City         string             `json:"city,omitempty" validate:"omitempty,min=2,max=100"`
	Phone        string             `json:"phone,omitempty" validate:"omitempty,e164"`
	Location     *GeoPoint          `json:"location,omitempty" validate:"omitempty"`
	OpeningHours *map[string]string `json:"opening_hours,omitempty" validate:"omitempty"`
}

// StoreStats is the result of the seller statistics aggregation pipeline.
type StoreStats struct {
	StoreID          string           `json:"store_id" bson:"_id"`
	TotalBookings    int64            `json:"total_bookings" bson:"total_bookings"`
	BookingsByStatus map[string]int64 `json:"bookings_by_status" bson:"-"`
	CompletedRevenue float64          `json:"completed_revenue" bson:"completed_revenue"`
	QuantitySaved    int64            `json:"quantity_saved" bson:"quantity_saved"`
	AverageRating    float64          `json:"average_rating" bson:"average_rating"`
	RatingCount      int64            `json:"rating_count" bson:"rating_count"`
	ActiveOffers     int64            `json:"active_offers" bson:"active_offers"`
}

// StatusCount is one bucket of the per-status grouping stage.
type StatusCount struct {
	Status string `bson:"_id"`
	Count  int64  `bson:"count"`
}
