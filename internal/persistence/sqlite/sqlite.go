package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/crmbridge/internal/persistence"
	"github.com/example/crmbridge/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

var _ persistence.Store = (*Storage)(nil)

// Storage is the persistent store backed by a single SQLite file. It holds
// members, service records and the TTL cache.
type Storage struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option customises a Storage.
type Option func(*Storage)

// WithClock overrides the time source used for timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides member id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Storage) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger sets the logger used for migrations and lazy expiry.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens the database file at path with the default configuration.
func Open(ctx context.Context, path string, opts ...Option) (*Storage, error) {
	return OpenConfig(ctx, migration.DefaultSQLiteConfig(path), opts...)
}

// OpenConfig opens the database described by config. Call Migrate before use.
func OpenConfig(ctx context.Context, config migration.SQLiteConfig, opts ...Option) (*Storage, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, persistence.NewStorageError("open", err)
	}

	s := &Storage{
		pool:   pool,
		mapper: NewErrorMapper(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := s.migrationManager()
	if err := manager.RunMigrations(ctx); err != nil {
		return persistence.NewStorageError("migrate", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	status, err := s.migrationManager().GetMigrationStatus(ctx)
	if err != nil {
		return nil, persistence.NewStorageError("migration status", err)
	}
	return status, nil
}

func (s *Storage) migrationManager() migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationDir,
		s.logger,
	)
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return persistence.NewStorageError("ping", err)
	}
	return nil
}

// DB exposes the underlying handle for tests and tooling.
func (s *Storage) DB() *sql.DB {
	return s.pool.DB()
}

func (s *Storage) timestamp() int64 {
	return s.now().UTC().UnixNano()
}

func fromTimestamp(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func (s *Storage) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return s.mapper.MapError(op, err)
}
