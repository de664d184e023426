package errors

import "errors"

var (
	ErrNotFound      = errors.New("offer not found")
	ErrInvalidID     = errors.New("invalid offer ID format")
	ErrStoreNotFound = errors.New("store not found")
)
