package migration

import (
	"context"
	"time"
)

// Migration is one NNN_description.sql file from the embedded schema set.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	// Checksum is the hex SHA-256 of the file; applied rows must keep matching it.
	Checksum string
}

type MigrationManager interface {
	RunMigrations(ctx context.Context) error
	GetPendingMigrations(ctx context.Context) ([]Migration, error)
	GetMigrationStatus(ctx context.Context) (*MigrationStatus, error)
}

// FileScanner reads migration files out of a filesystem directory.
type FileScanner interface {
	ScanMigrations(dir string) ([]Migration, error)
	ValidateFileName(filename string) error
}

// Executor applies migrations and owns the schema_migrations table.
// ExecuteMigration must apply the SQL and record the version atomically.
type Executor interface {
	ExecuteMigration(ctx context.Context, migration Migration) error
	InitializeVersionTable(ctx context.Context) error
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}

type MigrationStatus struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// AppliedMigration mirrors a schema_migrations row.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}
