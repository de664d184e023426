package errors

import "errors"

var (
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidID         = errors.New("invalid booking ID format")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrInsufficientStock = errors.New("insufficient available quantity")
	ErrLockHeld          = errors.New("offer is locked by another booking request")
	ErrStatusChanged     = errors.New("booking status changed concurrently")
)
