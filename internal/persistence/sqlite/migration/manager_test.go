package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type mockFileScanner struct {
	migrations []Migration
	scanError  error
}

func (m *mockFileScanner) ScanMigrations(migrationDir string) ([]Migration, error) {
	if m.scanError != nil {
		return nil, m.scanError
	}
	return m.migrations, nil
}

func (m *mockFileScanner) ValidateFileName(filename string) error {
	return nil
}

type mockExecutor struct {
	appliedVersions []AppliedMigration
	executionError  error
	initError       error
	executionOrder  []string
}

func (m *mockExecutor) ExecuteMigration(ctx context.Context, migration Migration) error {
	if m.executionError != nil {
		return m.executionError
	}
	m.executionOrder = append(m.executionOrder, migration.Version)
	m.appliedVersions = append(m.appliedVersions, AppliedMigration{
		Version:   migration.Version,
		AppliedAt: time.Now(),
		Checksum:  migration.Checksum,
	})
	return nil
}

func (m *mockExecutor) InitializeVersionTable(ctx context.Context) error {
	return m.initError
}

func (m *mockExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	return m.appliedVersions, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoMigrations() []Migration {
	return []Migration{
		{Version: "001", Description: "Initial schema", SQL: "CREATE TABLE members (id TEXT);", FilePath: "001_initial.sql", Checksum: "a"},
		{Version: "002", Description: "Add indexes", SQL: "CREATE INDEX idx_members ON members(id);", FilePath: "002_indexes.sql", Checksum: "b"},
	}
}

func TestMigrationManager_RunMigrations_AppliesOnlyPending(t *testing.T) {
	executor := &mockExecutor{appliedVersions: []AppliedMigration{
		{Version: "001", AppliedAt: time.Now(), Checksum: "a"},
	}}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	if err := manager.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if len(executor.executionOrder) != 1 || executor.executionOrder[0] != "002" {
		t.Errorf("expected only 002 to run, got %v", executor.executionOrder)
	}
}

func TestMigrationManager_RunMigrations_Idempotency(t *testing.T) {
	executor := &mockExecutor{}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())
	ctx := context.Background()

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(executor.executionOrder) != 2 {
		t.Errorf("expected 2 executions in total, got %v", executor.executionOrder)
	}
}

func TestMigrationManager_RunMigrations_InitializationError(t *testing.T) {
	initErr := errors.New("disk I/O error")
	executor := &mockExecutor{initError: initErr}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	err := manager.RunMigrations(context.Background())
	if !errors.Is(err, initErr) {
		t.Fatalf("expected init error, got %v", err)
	}
}

func TestMigrationManager_RunMigrations_ExecutionError(t *testing.T) {
	executor := &mockExecutor{executionError: errors.New("syntax error")}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	err := manager.RunMigrations(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var migErr *MigrationError
	if !errors.As(err, &migErr) || migErr.Version != "001" {
		t.Errorf("expected MigrationError for 001, got %v", err)
	}
}

func TestMigrationManager_GetPendingMigrations_ScanError(t *testing.T) {
	scanErr := errors.New("read failed")
	manager := NewMigrationManager(&mockFileScanner{scanError: scanErr}, &mockExecutor{}, "migrations", quietLogger())

	if _, err := manager.GetPendingMigrations(context.Background()); !errors.Is(err, scanErr) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestMigrationManager_GetPendingMigrations_SequenceGap(t *testing.T) {
	migrations := []Migration{
		{Version: "001", SQL: "SELECT 1", FilePath: "001_a.sql"},
		{Version: "003", SQL: "SELECT 1", FilePath: "003_c.sql"},
	}
	manager := NewMigrationManager(&mockFileScanner{migrations: migrations}, &mockExecutor{}, "migrations", quietLogger())

	if _, err := manager.GetPendingMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMigrationManager_GetPendingMigrations_MissingAppliedMigration(t *testing.T) {
	executor := &mockExecutor{appliedVersions: []AppliedMigration{
		{Version: "001", Checksum: "a"},
		{Version: "002", Checksum: "b"},
		{Version: "003", Checksum: "c"},
	}}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	if _, err := manager.GetPendingMigrations(context.Background()); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestMigrationManager_GetPendingMigrations_ChecksumMismatch(t *testing.T) {
	executor := &mockExecutor{appliedVersions: []AppliedMigration{
		{Version: "001", Checksum: "edited"},
	}}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	if _, err := manager.GetPendingMigrations(context.Background()); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestMigrationManager_GetMigrationStatus(t *testing.T) {
	executor := &mockExecutor{appliedVersions: []AppliedMigration{
		{Version: "001", AppliedAt: time.Now(), Checksum: "a"},
	}}
	manager := NewMigrationManager(&mockFileScanner{migrations: twoMigrations()}, executor, "migrations", quietLogger())

	status, err := manager.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status.CurrentVersion != "001" {
		t.Errorf("CurrentVersion = %q, want 001", status.CurrentVersion)
	}
	if status.PendingCount != 1 || status.PendingMigrations[0].Version != "002" {
		t.Errorf("unexpected pending migrations: %+v", status.PendingMigrations)
	}
}

func TestMigrationManager_ExecutionOrder(t *testing.T) {
	migrations := []Migration{
		{Version: "001", SQL: "SELECT 1", FilePath: "001_a.sql"},
		{Version: "002", SQL: "SELECT 1", FilePath: "002_b.sql"},
		{Version: "003", SQL: "SELECT 1", FilePath: "003_c.sql"},
	}
	executor := &mockExecutor{}
	manager := NewMigrationManager(&mockFileScanner{migrations: migrations}, executor, "migrations", nil)

	if err := manager.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	want := []string{"001", "002", "003"}
	for i, v := range want {
		if executor.executionOrder[i] != v {
			t.Fatalf("execution order = %v, want %v", executor.executionOrder, want)
		}
	}
}
