package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"

	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

// Service tracks rolling usage windows and enforces plan ceilings.
//
// ResetIfStale and CheckAndReserve are deliberately independent: read-only
// collaborators (usage inspection, history, billing status) reset stale
// windows but never enforce, so an exhausted user can still see their own
// data.
type Service interface {
	// ResetIfStale zeroes the counter when the window has rolled over
	// and returns the current user row.
	ResetIfStale(ctx context.Context, user *identitydomain.User) (*identitydomain.User, error)

	// CheckAndReserve admits the request or returns *ExceededError.
	// It does not consume quota; Increment does, after the protected
	// action has actually completed.
	CheckAndReserve(ctx context.Context, user *identitydomain.User) error

	// Increment advances the counter by exactly one.
	Increment(ctx context.Context, userID snowflake.ID) error

	// Summarize reports the current window for display.
	Summarize(user *identitydomain.User) Summary
}
