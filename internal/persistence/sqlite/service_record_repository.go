package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/example/crmbridge/internal/persistence"
)

const serviceRecordColumns = `service, entity_type, entity_id, member_id, data, updated_at`

func scanServiceRecord(row rowScanner) (persistence.ServiceRecord, error) {
	var (
		r         persistence.ServiceRecord
		memberID  sql.NullString
		data      string
		updatedAt int64
	)
	if err := row.Scan(&r.Service, &r.EntityType, &r.EntityID, &memberID, &data, &updatedAt); err != nil {
		return persistence.ServiceRecord{}, err
	}
	r.MemberID = stringPtr(memberID)
	r.Payload = json.RawMessage(data)
	r.UpdatedAt = fromTimestamp(updatedAt)
	return r, nil
}

// SetServiceRecord inserts or replaces the payload stored under the record's
// composite key. A nil MemberID keeps any existing member link.
func (s *Storage) SetServiceRecord(ctx context.Context, record persistence.ServiceRecord) error {
	vErr := &persistence.ValidationError{}
	if strings.TrimSpace(record.Service) == "" {
		vErr.Add("service", "is required")
	}
	if strings.TrimSpace(record.EntityType) == "" {
		vErr.Add("entity_type", "is required")
	}
	if strings.TrimSpace(record.EntityID) == "" {
		vErr.Add("entity_id", "is required")
	}
	payload := record.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		vErr.Add("payload", "must be valid JSON")
	}
	if vErr.HasErrors() {
		return vErr
	}

	const query = `
		INSERT INTO service_data (service, entity_type, entity_id, member_id, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (service, entity_type, entity_id) DO UPDATE SET
			member_id = COALESCE(excluded.member_id, service_data.member_id),
			data = excluded.data,
			updated_at = MAX(service_data.updated_at, excluded.updated_at)
	`
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			record.Service,
			record.EntityType,
			record.EntityID,
			nullableString(record.MemberID),
			string(payload),
			s.timestamp(),
		)
		return err
	})
	return s.fail("set service record", err)
}

// GetServiceRecord returns the record stored under the composite key.
func (s *Storage) GetServiceRecord(ctx context.Context, service, entityType, entityID string) (persistence.ServiceRecord, error) {
	record, err := scanServiceRecord(s.pool.DB().QueryRowContext(ctx,
		`SELECT `+serviceRecordColumns+` FROM service_data WHERE service = ? AND entity_type = ? AND entity_id = ?`,
		service, entityType, entityID,
	))
	if err != nil {
		return persistence.ServiceRecord{}, s.fail("get service record", err)
	}
	return record, nil
}

// GetServiceRecordByEntityID finds the most recent record of service with the
// given entity id, whatever its entity type.
func (s *Storage) GetServiceRecordByEntityID(ctx context.Context, service, entityID string) (persistence.ServiceRecord, error) {
	record, err := scanServiceRecord(s.pool.DB().QueryRowContext(ctx,
		`SELECT `+serviceRecordColumns+` FROM service_data WHERE service = ? AND entity_id = ? ORDER BY updated_at DESC LIMIT 1`,
		service, entityID,
	))
	if err != nil {
		return persistence.ServiceRecord{}, s.fail("get service record by entity id", err)
	}
	return record, nil
}

// GetAllServiceRecords lists every record of service, most recently updated first.
func (s *Storage) GetAllServiceRecords(ctx context.Context, service string) ([]persistence.ServiceRecord, error) {
	rows, err := s.pool.DB().QueryContext(ctx,
		`SELECT `+serviceRecordColumns+` FROM service_data WHERE service = ? ORDER BY updated_at DESC, entity_type, entity_id`,
		service,
	)
	if err != nil {
		return nil, s.fail("list service records", err)
	}
	defer rows.Close()

	var records []persistence.ServiceRecord
	for rows.Next() {
		record, err := scanServiceRecord(rows)
		if err != nil {
			return nil, s.fail("list service records", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list service records", err)
	}
	return records, nil
}
