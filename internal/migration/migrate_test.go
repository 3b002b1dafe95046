package migration

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openMigrationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openMigrationTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	for _, table := range []string{"users", "processed_events", "audit_logs"} {
		var count int64
		if err := db.Raw(
			`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count).Error; err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := openMigrationTestDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var applied int64
	if err := db.Raw(`SELECT COUNT(1) FROM schema_migrations`).Scan(&applied).Error; err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if applied != 3 {
		t.Fatalf("expected 3 applied versions, got %d", applied)
	}
}
