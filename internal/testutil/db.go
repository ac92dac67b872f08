// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/yoockh/scribe/config"
	"github.com/yoockh/scribe/internal/logger"
	"github.com/yoockh/scribe/internal/migrations"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, dialect, err := config.OpenDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.Discard())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := migrations.Up(context.Background(), sqlDB, dialect); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
