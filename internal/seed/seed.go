package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

const (
	demoEmail   = "demo@promptlens.dev"
	demoDisplay = "Demo User"
)

// EnsureDemoUser seeds a free-plan demo account for local development.
// It is a no-op when the account already exists.
func EnsureDemoUser(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, display_name, plan, usage_count, last_reset_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`,
		node.Generate(),
		demoEmail,
		demoDisplay,
		identitydomain.PlanFree,
		now,
		now,
		now,
	).Error
}
