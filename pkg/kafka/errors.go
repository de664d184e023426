package kafka

import "errors"

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrConsumerClosed = errors.New("kafka consumer is closed")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")

	// ErrPermanentFailure marks a handler error that must not be retried
	// (malformed payload, unknown event type). The consumer routes the
	// message straight to the DLQ.
	ErrPermanentFailure = errors.New("permanent failure")
)
