// Package migration applies versioned SQL schema changes to the SQLite store.
//
// Migrations are plain SQL files named {version}_{description}.sql (for
// example "001_initial_schema.sql") read from an fs.FS, typically one embedded
// into the binary. Applied versions are tracked in a schema_migrations table
// so each file runs exactly once, inside its own transaction.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), ".", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
