package model

import "time"

// OfferLock is an advisory lock that serializes booking creation per offer.
// A TTL index on expires_at reaps stale locks left by crashed requests.
type OfferLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
