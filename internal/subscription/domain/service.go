package domain

import (
	"context"
	"errors"
	"time"

	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

var (
	ErrMissingData          = errors.New("missing_data")
	ErrVerificationFailed   = errors.New("verification_failed")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrUnknownPlan          = errors.New("unknown_plan")
)

// ActivateParams carries everything an activation transition needs. The
// user is located by email; cancellations instead locate by subscription
// id because provider cancellation events carry nothing else.
type ActivateParams struct {
	Email             string
	DisplayName       string
	Plan              identitydomain.Plan
	SubscriptionID    string
	BillingCustomerID string
	PeriodEnd         *time.Time
}

// VerifyPaymentRequest is the synchronous checkout confirmation. The
// client receives these values before any webhook necessarily arrives.
type VerifyPaymentRequest struct {
	OrderID   string
	PaymentID string
	Signature string
	Email     string
	Plan      identitydomain.Plan
}

// Service owns the commercial plan and subscription status of users.
type Service interface {
	// Activate applies the active-subscription state and grants a
	// fresh quota window. Re-activating the same subscription is
	// idempotent: it re-applies the same fields but does not grant
	// another window.
	Activate(ctx context.Context, params ActivateParams) (*identitydomain.User, error)

	// Cancel downgrades the owning user to free. Usage counters are
	// left alone; a downgrade earns no bonus window.
	Cancel(ctx context.Context, subscriptionID, reason string) (*identitydomain.User, error)

	// RecordPaymentFailure notes a failed charge without touching
	// entitlements. A single failed charge does not revoke access.
	RecordPaymentFailure(ctx context.Context, subscriptionID string, metadata map[string]any) error

	// VerifyPayment validates a checkout confirmation against the
	// provider before activating.
	VerifyPayment(ctx context.Context, req VerifyPaymentRequest) (*identitydomain.User, error)
}
