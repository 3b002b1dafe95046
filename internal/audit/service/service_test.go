package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	auditdomain "github.com/keshav-const/promptlens-sub000/internal/audit/domain"
	auditrepository "github.com/keshav-const/promptlens-sub000/internal/audit/repository"
	"github.com/keshav-const/promptlens-sub000/internal/auditcontext"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id INTEGER PRIMARY KEY,
			user_id INTEGER,
			actor_type TEXT NOT NULL,
			actor_id TEXT,
			action TEXT NOT NULL,
			target_type TEXT NOT NULL,
			target_id TEXT,
			metadata TEXT NOT NULL DEFAULT '{}',
			ip_address TEXT,
			user_agent TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create audit_logs: %v", err)
	}
	return db
}

func newAuditService(t *testing.T, db *gorm.DB) auditdomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
}

func TestAuditLogWritesEntry(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := newAuditService(t, db)

	userID := snowflake.ID(42)
	subID := "sub_123"
	err := svc.AuditLog(
		context.Background(),
		&userID,
		auditdomain.ActorTypeProvider,
		nil,
		"subscription.activated",
		"subscription",
		&subID,
		map[string]any{"plan": "pro_monthly"},
	)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	entries, err := svc.List(context.Background(), auditdomain.ListFilter{UserID: userID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Action != "subscription.activated" || entry.ActorType != string(auditdomain.ActorTypeProvider) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Metadata["plan"] != "pro_monthly" {
		t.Fatalf("expected metadata to survive, got %v", entry.Metadata)
	}
}

func TestAuditLogActorFromContext(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := newAuditService(t, db)

	ctx := auditcontext.WithActor(context.Background(), "user", "99")
	ctx = auditcontext.WithIPAddress(ctx, "203.0.113.9")

	if err := svc.AuditLog(ctx, nil, "", nil, "payment.verified", "payment", nil, nil); err != nil {
		t.Fatalf("audit log: %v", err)
	}

	entries, err := svc.List(context.Background(), auditdomain.ListFilter{Action: "payment.verified"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ActorType != "user" || entry.ActorID == nil || *entry.ActorID != "99" {
		t.Fatalf("expected actor from context, got %+v", entry)
	}
	if entry.IPAddress == nil || *entry.IPAddress != "203.0.113.9" {
		t.Fatalf("expected ip from context, got %v", entry.IPAddress)
	}
}

func TestAuditLogRequiresAction(t *testing.T) {
	db := setupAuditTestDB(t)
	svc := newAuditService(t, db)

	if err := svc.AuditLog(context.Background(), nil, auditdomain.ActorTypeSystem, nil, "  ", "user", nil, nil); err == nil {
		t.Fatal("expected error for blank action")
	}
}
