// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/db"
	"gorm.io/gorm"
)

// NewDB opens a migrated sqlite database in a per-test temp dir. The
// connection is closed when the test completes.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kriya.db")
	gormDB, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("db.Connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("db.AutoMigrate: %v", err)
	}
	t.Cleanup(func() { db.Close(gormDB) })
	return gormDB
}
