package sqlite

import (
	"context"

	"github.com/example/crmbridge/internal/persistence"
)

// GetStats counts members, service records per service, cache entries per
// service and cache entries that have expired but not yet been swept.
func (s *Storage) GetStats(ctx context.Context) (persistence.Stats, error) {
	db := s.pool.DB()
	stats := persistence.Stats{
		ServiceData: map[string]int{},
		Cache:       map[string]int{},
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&stats.Members); err != nil {
		return persistence.Stats{}, s.fail("stats", err)
	}

	grouped := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT service, COUNT(*) FROM service_data GROUP BY service`, stats.ServiceData},
		{`SELECT service, COUNT(*) FROM cache GROUP BY service`, stats.Cache},
	}
	for _, g := range grouped {
		if err := s.countByService(ctx, g.query, g.into); err != nil {
			return persistence.Stats{}, s.fail("stats", err)
		}
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.timestamp(),
	).Scan(&stats.ExpiredCache); err != nil {
		return persistence.Stats{}, s.fail("stats", err)
	}
	return stats, nil
}

func (s *Storage) countByService(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var service string
		var count int
		if err := rows.Scan(&service, &count); err != nil {
			return err
		}
		into[service] = count
	}
	return rows.Err()
}
