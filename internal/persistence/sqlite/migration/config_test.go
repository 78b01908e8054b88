package migration

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultSQLiteConfig(t *testing.T) {
	config := DefaultSQLiteConfig("data/service_data.db")

	if config.Path != "data/service_data.db" {
		t.Errorf("Path = %s", config.Path)
	}
	if config.BusyTimeout != 5*time.Second {
		t.Errorf("BusyTimeout = %v, want 5s", config.BusyTimeout)
	}
	if !config.EnableForeignKeys {
		t.Error("expected EnableForeignKeys")
	}
	if config.JournalMode != "WAL" {
		t.Errorf("JournalMode = %s, want WAL", config.JournalMode)
	}
	if !config.ImmediateTx {
		t.Error("expected ImmediateTx")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSQLiteConfig_DSN(t *testing.T) {
	dsn := DefaultSQLiteConfig("/tmp/crm.db").DSN()

	path, rawQuery, ok := strings.Cut(dsn, "?")
	if !ok {
		t.Fatalf("DSN has no query: %s", dsn)
	}
	if path != "/tmp/crm.db" {
		t.Errorf("path = %s", path)
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	pragmas := strings.Join(query["_pragma"], ",")
	for _, want := range []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)", "foreign_keys(1)"} {
		if !strings.Contains(pragmas, want) {
			t.Errorf("pragmas %q missing %s", pragmas, want)
		}
	}
	if query.Get("_txlock") != "immediate" {
		t.Errorf("_txlock = %q", query.Get("_txlock"))
	}
}

func TestSQLiteConfig_DSN_NoOptions(t *testing.T) {
	if dsn := (SQLiteConfig{Path: "plain.db"}).DSN(); dsn != "plain.db" {
		t.Errorf("DSN = %s, want plain.db", dsn)
	}
}

func TestSQLiteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SQLiteConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*SQLiteConfig) {}},
		{name: "empty path", mutate: func(c *SQLiteConfig) { c.Path = "" }, wantErr: "path"},
		{name: "negative timeout", mutate: func(c *SQLiteConfig) { c.BusyTimeout = -time.Second }, wantErr: "BusyTimeout"},
		{name: "bad journal", mutate: func(c *SQLiteConfig) { c.JournalMode = "FAST" }, wantErr: "journal mode"},
		{name: "bad synchronous", mutate: func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, wantErr: "synchronous"},
		{name: "negative open conns", mutate: func(c *SQLiteConfig) { c.MaxOpenConns = -1 }, wantErr: "MaxOpenConns"},
		{name: "negative idle conns", mutate: func(c *SQLiteConfig) { c.MaxIdleConns = -1 }, wantErr: "MaxIdleConns"},
		{name: "negative lifetime", mutate: func(c *SQLiteConfig) { c.ConnMaxLifetime = -time.Minute }, wantErr: "ConnMaxLifetime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultSQLiteConfig("test.db")
			tt.mutate(&config)
			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteConfig_Open_CreatesNestedDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "crm.db")

	db, err := TempFileTestSQLiteConfig(dbPath).Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestSQLiteConfig_Open_AppliesPragmasToEveryConnection(t *testing.T) {
	db, err := TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "crm.db")).Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	// Hold two connections at once so the pool cannot hand back the same one.
	c1, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer c1.Close()
	c2, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer c2.Close()

	var fk1, fk2 int
	if err := c1.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk1); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if err := c2.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk2); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk1 != 1 || fk2 != 1 {
		t.Errorf("foreign_keys = %d/%d, want 1 on both connections", fk1, fk2)
	}

	var mode string
	if err := c2.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %s, want wal", mode)
	}
}

func TestSQLiteConfig_Open_InvalidConfig(t *testing.T) {
	if _, err := (SQLiteConfig{}).Open(context.Background()); err == nil {
		t.Fatal("expected error for empty config")
	}
}
