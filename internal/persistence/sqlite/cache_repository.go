package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/example/crmbridge/internal/persistence"
)

// SetCache stores value as JSON under key. A zero ttl never expires.
func (s *Storage) SetCache(ctx context.Context, key string, value any, service string, ttl time.Duration) error {
	vErr := &persistence.ValidationError{}
	if strings.TrimSpace(key) == "" {
		vErr.Add("key", "is required")
	}
	if strings.TrimSpace(service) == "" {
		vErr.Add("service", "is required")
	}
	if ttl < 0 {
		vErr.Add("ttl", "must not be negative")
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		vErr.Add("value", "must be JSON serializable")
		vErr.Err = err
	}
	if vErr.HasErrors() {
		return vErr
	}

	var expiresAt any
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UTC().UnixNano()
	}

	const query = `
		INSERT INTO cache (key, value, expires_at, service)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			service = excluded.service
	`
	err = s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, key, string(encoded), expiresAt, service)
		return err
	})
	return s.fail("set cache", err)
}

// GetCache returns the entry stored under key. An entry whose expiry has
// passed is deleted and reported as persistence.ErrNotFound.
func (s *Storage) GetCache(ctx context.Context, key string) (persistence.CacheEntry, error) {
	var (
		entry     persistence.CacheEntry
		value     string
		expiresAt sql.NullInt64
	)
	err := s.pool.DB().QueryRowContext(ctx,
		`SELECT key, value, expires_at, service FROM cache WHERE key = ?`, key,
	).Scan(&entry.Key, &value, &expiresAt, &entry.Service)
	if err != nil {
		return persistence.CacheEntry{}, s.fail("get cache", err)
	}

	now := s.timestamp()
	if expiresAt.Valid && expiresAt.Int64 <= now {
		err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM cache WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?`, key, now)
			return err
		})
		if err != nil {
			return persistence.CacheEntry{}, s.fail("expire cache entry", err)
		}
		s.logger.DebugContext(ctx, "cache entry expired", slog.String("key", key), slog.String("service", entry.Service))
		return persistence.CacheEntry{}, persistence.ErrNotFound
	}

	entry.Value = json.RawMessage(value)
	if expiresAt.Valid {
		t := fromTimestamp(expiresAt.Int64)
		entry.ExpiresAt = &t
	}
	return entry, nil
}

// ClearExpiredCache deletes every expired entry and returns how many were removed.
func (s *Storage) ClearExpiredCache(ctx context.Context) (int, error) {
	var removed int64
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.timestamp())
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, s.fail("clear expired cache", err)
	}
	return int(removed), nil
}

// ClearServiceCache deletes every entry of service, expired or not.
func (s *Storage) ClearServiceCache(ctx context.Context, service string) (int, error) {
	var removed int64
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM cache WHERE service = ?`, service)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, s.fail("clear service cache", err)
	}
	return int(removed), nil
}
