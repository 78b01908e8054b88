package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrVersionConflict covers gaps in the version sequence and applied
	// versions whose file has disappeared.
	ErrVersionConflict  = errors.New("migration version conflict")
	ErrInvalidVersion   = errors.New("invalid migration version")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch means an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError attaches the version, file and step to a migration failure.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration %s: %s: %v", e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

func NewMigrationError(version, filePath, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, FilePath: filePath, Operation: operation, Err: err}
}

// DatabaseError reports a failed statement while applying or tracking migrations.
type DatabaseError struct {
	Version   string
	Query     string
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("migration database error during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("migration %s database error during %s: %v", e.Version, e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func NewDatabaseError(version, query, operation string, err error) *DatabaseError {
	return &DatabaseError{Version: version, Query: query, Operation: operation, Err: err}
}
