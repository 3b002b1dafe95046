package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Seen reports whether an event key is already in the ledger.
	Seen(ctx context.Context, db *gorm.DB, eventKey string) (bool, error)

	// Record inserts a ledger entry. It returns false when the key was
	// already present, which callers treat as a benign duplicate.
	Record(ctx context.Context, db *gorm.DB, entry *ProcessedEvent) (bool, error)

	// PurgeOlderThan deletes entries processed before the cutoff.
	PurgeOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
