package errors

import "errors"

var (
	ErrNotFound = errors.New("store not found")

	ErrInvalidID = errors.New("invalid store ID format")
)
