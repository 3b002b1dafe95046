package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex HMAC-SHA256 of message under secret,
// the scheme the provider uses for both webhook bodies and checkout
// confirmations.
func ComputeSignature(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares an expected signature in constant time.
func VerifySignature(secret string, message []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PaymentMessage is the canonical message signed during checkout: the
// order and payment identifiers joined by a pipe.
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
