package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCleaner struct {
	mu      sync.Mutex
	calls   int
	removed int
	err     error
	swept   chan struct{}
}

func (s *stubCleaner) ClearExpiredCache(context.Context) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.swept != nil {
		select {
		case s.swept <- struct{}{}:
		default:
		}
	}
	return s.removed, s.err
}

type countingObserver struct {
	mu    sync.Mutex
	total int
}

func (o *countingObserver) ObserveSweep(removed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.total += removed
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	t.Parallel()

	t.Run("reports removed entries", func(t *testing.T) {
		t.Parallel()
		cleaner := &stubCleaner{removed: 4}
		observer := &countingObserver{}
		sweeper := NewSweeper(cleaner, time.Minute, discard(), observer)

		removed, err := sweeper.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, removed)
		assert.Equal(t, 4, observer.total)
	})

	t.Run("returns cleaner errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("disk full")
		observer := &countingObserver{}
		sweeper := NewSweeper(&stubCleaner{err: boom}, time.Minute, discard(), observer)

		_, err := sweeper.RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, observer.total)
	})
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	t.Parallel()

	cleaner := &stubCleaner{removed: 1, swept: make(chan struct{}, 1)}
	sweeper := NewSweeper(cleaner, 5*time.Millisecond, discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	select {
	case <-cleaner.swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}

func TestRunDisabled(t *testing.T) {
	t.Parallel()

	cleaner := &stubCleaner{}
	NewSweeper(cleaner, 0, discard(), nil).Run(context.Background())
	assert.Zero(t, cleaner.calls)
}

func TestRunKeepsSweepingAfterFailures(t *testing.T) {
	t.Parallel()

	cleaner := &stubCleaner{err: errors.New("database is locked"), swept: make(chan struct{}, 1)}
	sweeper := NewSweeper(cleaner, 5*time.Millisecond, discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-cleaner.swept:
		case <-done:
			t.Fatal("sweeper stopped after a failed sweep")
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d never ran", i+1)
		}
	}
	cancel()
	<-done
}
