package domain

import (
	"context"
	"errors"
)

// Service authenticates and dispatches inbound payment-provider webhooks.
type Service interface {
	// Handle verifies the signature over the exact raw body, absorbs
	// duplicates, and dispatches the event. The idempotency ledger
	// entry is written only after a successful dispatch, so a crash
	// mid-dispatch leaves the event retryable by the provider.
	Handle(ctx context.Context, rawBody []byte, signatureHeader string) error
}

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrMalformedPayload = errors.New("malformed_payload")
	ErrMissingData      = errors.New("missing_data")
)
