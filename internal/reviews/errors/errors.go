package errors

import "errors"

var (
	ErrNotFound        = errors.New("review not found")
	ErrInvalidID       = errors.New("invalid review ID format")
	ErrDuplicate       = errors.New("booking already reviewed by this user")
	ErrBookingNotFound = errors.New("booking not found")
)
