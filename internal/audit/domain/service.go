package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service records immutable audit entries. Writes are best effort from the
// caller's perspective; failures are surfaced so callers can decide whether
// the action itself should fail.
type Service interface {
	AuditLog(ctx context.Context, userID *snowflake.ID, actorType ActorType, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
