package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "default local",
			cfg:  config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root", Name: "kriya"},
			want: "root@tcp(127.0.0.1:3306)/kriya?parseTime=true",
		},
		{
			name: "custom host and port",
			cfg:  config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "kriya", Name: "kriya_bob"},
			want: "kriya@tcp(10.0.0.5:3307)/kriya_bob?parseTime=true",
		},
		{
			name: "with password",
			cfg:  config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "app", Password: "s3cret", Name: "kriya"},
			want: "app:s3cret@tcp(db.internal:3306)/kriya?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("data/kriya.db")
	if !strings.HasPrefix(dsn, "file:data/kriya.db?") {
		t.Errorf("SQLiteDSN = %q, want file: prefix", dsn)
	}
	for _, want := range []string{"_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("SQLiteDSN = %q, missing %s", dsn, want)
		}
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), `unknown driver "postgres"`) {
		t.Errorf("error = %q", err.Error())
	}
}

func TestConnect_SQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kriya.db")
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer Close(gormDB)

	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := Ping(gormDB); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
	if !gormDB.Migrator().HasColumn(&models.Message{}, "is_read") {
		t.Error("messages.is_read column missing")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 6 {
		t.Errorf("len(AllModels()) = %d, want 6", got)
	}
}
