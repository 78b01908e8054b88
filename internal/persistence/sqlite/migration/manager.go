package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// migrationManagerImpl implements the MigrationManager interface
type migrationManagerImpl struct {
	scanner      FileScanner
	executor     Executor
	migrationDir string
	logger       *slog.Logger
}

// NewMigrationManager creates a new MigrationManager implementation.
// A nil logger falls back to slog.Default.
func NewMigrationManager(scanner FileScanner, executor Executor, migrationDir string, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &migrationManagerImpl{
		scanner:      scanner,
		executor:     executor,
		migrationDir: migrationDir,
		logger:       logger.With(slog.String("component", "migration")),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *migrationManagerImpl) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to initialize schema_migrations table", slog.Any("error", err))
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pendingMigrations, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve pending migrations", slog.Any("error", err))
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pendingMigrations) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, migration := range pendingMigrations {
		m.logger.InfoContext(ctx, "applying migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("position", i+1),
			slog.Int("total", len(pendingMigrations)),
		)

		migrationStart := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				slog.String("version", migration.Version),
				slog.String("file", migration.FilePath),
				slog.Any("error", err),
			)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration applied",
			slog.String("version", migration.Version),
			slog.Duration("elapsed", time.Since(migrationStart)),
		)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(pendingMigrations)),
		slog.Duration("elapsed", time.Since(startTime)),
	)
	return nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *migrationManagerImpl) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	availableMigrations, err := m.scanner.ScanMigrations(m.migrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateMigrationSequence(availableMigrations, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedMap := make(map[string]bool, len(applied))
	for _, a := range applied {
		appliedMap[a.Version] = true
	}

	// availableMigrations is already sorted by the scanner
	var pending []Migration
	for _, migration := range availableMigrations {
		if !appliedMap[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// GetMigrationStatus returns status information about migrations
func (m *migrationManagerImpl) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	pendingMigrations, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending migrations: %w", err)
	}

	appliedMigrations, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	currentVersion := ""
	maxVersion := -1
	for _, migration := range appliedMigrations {
		if version, err := strconv.Atoi(migration.Version); err == nil && version > maxVersion {
			maxVersion = version
			currentVersion = migration.Version
		}
	}

	return &MigrationStatus{
		CurrentVersion:    currentVersion,
		PendingCount:      len(pendingMigrations),
		AppliedMigrations: appliedMigrations,
		PendingMigrations: pendingMigrations,
	}, nil
}

// validateMigrationSequence rejects gaps in the available versions, applied
// versions with no file, and applied files whose contents changed.
func validateMigrationSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		version, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath,
				"validate sequence", fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		byVersion[version] = migration
	}

	if len(available) > 0 {
		minVersion, _ := strconv.Atoi(available[0].Version)
		maxVersion, _ := strconv.Atoi(available[len(available)-1].Version)
		for version := minVersion; version <= maxVersion; version++ {
			if _, ok := byVersion[version]; !ok {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, version)
			}
		}
	}

	for _, a := range applied {
		version, err := strconv.Atoi(a.Version)
		if err != nil {
			return NewDatabaseError(a.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrInvalidVersion, a.Version))
		}
		migration, ok := byVersion[version]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && migration.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(a.Version, migration.FilePath, "validate checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
