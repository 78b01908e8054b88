package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/crmbridge/internal/persistence"
	"github.com/example/crmbridge/internal/persistence/sqlite/migration"
)

// ConnectionPool manages SQLite database connections with transaction support.
// Write transactions are serialized inside the process and retried while the
// file is locked by another process.
type ConnectionPool struct {
	db      *sql.DB
	config  migration.SQLiteConfig
	writeMu sync.Mutex
	retry   *RetryHelper
}

// NewConnectionPool opens the database described by config.
func NewConnectionPool(ctx context.Context, config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := config.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &ConnectionPool{
		db:     db,
		config: config,
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}, nil
}

// DB returns the underlying database connection
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the connection pool
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TransactionFunc represents a function that executes within a transaction
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn within a write transaction. If fn returns an
// error the transaction is rolled back, otherwise it is committed. Busy and
// locked errors restart the whole transaction.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	cp.writeMu.Lock()
	defer cp.writeMu.Unlock()

	return cp.retry.WithRetry(ctx, func() error {
		return cp.runTransaction(ctx, fn)
	})
}

func (cp *ConnectionPool) runTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ErrorMapper maps SQLite errors to persistence layer errors
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError translates err into the persistence error taxonomy. Errors that
// already belong to it pass through unchanged.
func (em *ErrorMapper) MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, persistence.ErrNotFound) {
		return persistence.ErrNotFound
	}
	if persistence.IsValidation(err) || persistence.IsStorage(err) {
		return err
	}

	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		field, message := describeConstraint(sqliteErr.Code(), sqliteErr.Error())
		vErr := persistence.NewValidationError(field, message)
		vErr.Err = err
		return vErr
	}

	return persistence.NewStorageError(op, err)
}

// describeConstraint turns a constraint failure such as
// "UNIQUE constraint failed: members.primary_email" into a field/message pair.
func describeConstraint(code int, msg string) (string, string) {
	field := "record"
	const marker = "constraint failed: "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		detail := strings.TrimSpace(msg[i+len(marker):])
		if i := strings.IndexAny(detail, " ,("); i >= 0 {
			detail = detail[:i]
		}
		if _, column, ok := strings.Cut(detail, "."); ok {
			detail = column
		}
		if detail != "" {
			field = detail
		}
	}

	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return field, "already in use"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return field, "references a missing record"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return field, "is required"
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return field, "has an invalid value"
	}
	return field, "violates a constraint"
}

// RetryConfig configures retry behavior for database operations
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a retry configuration with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryHelper provides retry functionality for database operations
type RetryHelper struct {
	config RetryConfig
}

// NewRetryHelper creates a new retry helper
func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config}
}

// RetryableFunc represents a function that can be retried
type RetryableFunc func() error

// WithRetry executes fn, retrying while it fails with a busy or locked error.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn RetryableFunc) error {
	var lastErr error
	delay := rh.config.InitialDelay

	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
			if delay > rh.config.MaxDelay {
				delay = rh.config.MaxDelay
			}
		}

		lastErr = fn()
		if lastErr == nil || !isRetryableError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", rh.config.MaxRetries, lastErr)
}

// isRetryableError reports whether err is SQLITE_BUSY or SQLITE_LOCKED.
func isRetryableError(err error) bool {
	var sqliteErr *sqlitedriver.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
