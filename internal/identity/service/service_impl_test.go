package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/keshav-const/promptlens-sub000/internal/clock"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
)

func setupIdentityTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT,
			plan TEXT NOT NULL DEFAULT 'free',
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_reset_at DATETIME NOT NULL,
			billing_customer_id TEXT,
			subscription_id TEXT,
			subscription_status TEXT,
			subscription_period_end DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create users: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clk:   clock.Fixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func TestFindOrCreateProvisionsDefaults(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db)

	user, err := svc.FindOrCreate(context.Background(), "New@Example.com", "New User")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if user.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Plan != identitydomain.PlanFree {
		t.Fatalf("expected free plan, got %q", user.Plan)
	}
	if user.UsageCount != 0 {
		t.Fatalf("expected zero usage, got %d", user.UsageCount)
	}
	if user.LastResetAt.IsZero() {
		t.Fatalf("expected last_reset_at to be set")
	}
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db)

	first, err := svc.FindOrCreate(context.Background(), "user@example.com", "First")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	second, err := svc.FindOrCreate(context.Background(), "USER@example.com", "Second")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %v and %v", first.ID, second.ID)
	}
	if second.DisplayName != "First" {
		t.Fatalf("existing record must keep its fields, got %q", second.DisplayName)
	}
}

func TestFindOrCreateConcurrentFirstContact(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.FindOrCreate(context.Background(), "race@example.com", "Racer")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}

	var count int64
	if err := db.Table("users").Where("email = ?", "race@example.com").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one user, got %d", count)
	}
}

func TestFindOrCreateRejectsInvalidEmail(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db)

	for _, email := range []string{"", "   ", "not-an-email"} {
		if _, err := svc.FindOrCreate(context.Background(), email, ""); !errors.Is(err, identitydomain.ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestFindByIDNotFound(t *testing.T) {
	db := setupIdentityTestDB(t)
	svc := newTestService(t, db)

	if _, err := svc.FindByID(context.Background(), snowflake.ID(12345)); !errors.Is(err, identitydomain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
