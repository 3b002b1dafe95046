package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidEmail = errors.New("invalid_email")
	ErrUserNotFound = errors.New("user_not_found")
)

// Service provisions and resolves user records.
type Service interface {
	// FindOrCreate returns the user for the normalized email, creating
	// it with default entitlements on first sight. Creation is atomic
	// with respect to concurrent calls for the same email.
	FindOrCreate(ctx context.Context, email, displayName string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
