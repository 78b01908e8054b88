package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/crmbridge/internal/persistence/sqlite"
	"github.com/example/crmbridge/internal/persistence/sqlite/migration"
)

// StoreHarness bundles a migrated temporary store with the clock and id
// generator it was built with.
type StoreHarness struct {
	Storage *sqlite.Storage
	Clock   *Clock
	IDs     *IDGenerator
	Path    string
}

// NewStore opens a migrated store in tb.TempDir driven by a fresh Clock and
// IDGenerator. The store is closed when the test finishes.
func NewStore(tb testing.TB) *StoreHarness {
	tb.Helper()

	h := &StoreHarness{
		Clock: NewClock(ReferenceTime()),
		IDs:   NewIDGenerator("member"),
		Path:  filepath.Join(tb.TempDir(), "service_data.db"),
	}

	storage, err := sqlite.OpenConfig(context.Background(),
		migration.TempFileTestSQLiteConfig(h.Path),
		sqlite.WithClock(h.Clock.Now),
		sqlite.WithIDGenerator(h.IDs.Next),
		sqlite.WithLogger(DiscardLogger()),
	)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	h.Storage = storage
	return h
}
