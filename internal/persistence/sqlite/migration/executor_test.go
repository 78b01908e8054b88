package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")).Open(context.Background())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

func TestSQLiteExecutor_InitializeVersionTable(t *testing.T) {
	db := setupTestDB(t)
	executor := NewSQLiteExecutor(db)
	ctx := context.Background()

	if err := executor.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable failed: %v", err)
	}
	if err := executor.InitializeVersionTable(ctx); err != nil {
		t.Errorf("InitializeVersionTable should be idempotent: %v", err)
	}
	if !tableExists(t, db, "schema_migrations") {
		t.Error("schema_migrations was not created")
	}
}

func TestSQLiteExecutor_ExecuteMigration_Success(t *testing.T) {
	db := setupTestDB(t)
	executor := NewSQLiteExecutor(db)
	ctx := context.Background()

	if err := executor.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable failed: %v", err)
	}

	migration := Migration{
		Version:  "001",
		SQL:      "CREATE TABLE members (id TEXT PRIMARY KEY);\nCREATE INDEX idx_members_id ON members(id);",
		FilePath: "migrations/001_members.sql",
		Checksum: "abc123",
	}
	if err := executor.ExecuteMigration(ctx, migration); err != nil {
		t.Fatalf("ExecuteMigration failed: %v", err)
	}

	if !tableExists(t, db, "members") {
		t.Error("members table was not created")
	}

	applied, err := executor.GetAppliedVersions(ctx)
	if err != nil {
		t.Fatalf("GetAppliedVersions failed: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "001" || applied[0].Checksum != "abc123" {
		t.Errorf("unexpected applied versions: %+v", applied)
	}
}

func TestSQLiteExecutor_ExecuteMigration_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	executor := NewSQLiteExecutor(db)
	ctx := context.Background()

	if err := executor.InitializeVersionTable(ctx); err != nil {
		t.Fatalf("InitializeVersionTable failed: %v", err)
	}

	migration := Migration{
		Version:  "001",
		SQL:      "CREATE TABLE partial (id TEXT);\nTHIS IS NOT SQL;",
		FilePath: "migrations/001_broken.sql",
	}
	if err := executor.ExecuteMigration(ctx, migration); err == nil {
		t.Fatal("expected error for invalid SQL")
	}

	if tableExists(t, db, "partial") {
		t.Error("partial table survived a failed migration")
	}
	applied, err := executor.GetAppliedVersions(ctx)
	if err != nil {
		t.Fatalf("GetAppliedVersions failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("failed migration was recorded: %+v", applied)
	}
}

func TestSQLiteExecutor_ExecuteMigration_EmptySQL(t *testing.T) {
	db := setupTestDB(t)
	executor := NewSQLiteExecutor(db)

	err := executor.ExecuteMigration(context.Background(), Migration{Version: "001", SQL: "-- nothing here\n"})
	if err == nil {
		t.Fatal("expected error for migration without statements")
	}
}

func TestParseSQL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "single statement", input: "CREATE TABLE a (id TEXT);", want: 1},
		{name: "two statements", input: "CREATE TABLE a (id TEXT);\nCREATE TABLE b (id TEXT);", want: 2},
		{name: "comments only", input: "-- header\n-- more", want: 0},
		{name: "trailing statement without semicolon", input: "SELECT 1;\nSELECT 2", want: 2},
		{name: "blank", input: "   \n\n", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseSQL(tt.input); len(got) != tt.want {
				t.Errorf("parseSQL() returned %d statements (%q), want %d", len(got), got, tt.want)
			}
		})
	}
}
