package token

import "errors"

var (
	ErrInvalidFormat    = errors.New("invalid_token_format")
	ErrInvalidSignature = errors.New("invalid_token_signature")
	ErrExpired          = errors.New("token_expired")
	ErrMissingClaim     = errors.New("missing_claim")

	// errDecryptFailed marks a 5-segment credential that could not be
	// decrypted. It triggers fallback to the signed path instead of a
	// terminal failure, since two issuers are in play.
	errDecryptFailed = errors.New("token_decrypt_failed")
)
