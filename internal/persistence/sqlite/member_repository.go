package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/crmbridge/internal/persistence"
)

const memberColumns = `id, primary_email, alternate_email, platform_user_id, display_name, member_type, created_at, updated_at`

const (
	memberByIDQuery           = `SELECT ` + memberColumns + ` FROM members WHERE id = ?`
	memberByPlatformUserQuery = `SELECT ` + memberColumns + ` FROM members WHERE platform_user_id = ?`
	memberByPrimaryEmailQuery = `SELECT ` + memberColumns + ` FROM members WHERE primary_email = ?`
	memberByAltEmailQuery     = `SELECT ` + memberColumns + ` FROM members WHERE alternate_email = ? ORDER BY updated_at DESC, id LIMIT 1`
	// memberByEitherEmailQuery prefers a primary match over an alternate one.
	memberByEitherEmailQuery = `
		SELECT ` + memberColumns + ` FROM members
		WHERE primary_email = ? OR alternate_email = ?
		ORDER BY (primary_email = ?) DESC, updated_at DESC, id
		LIMIT 1`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (persistence.Member, error) {
	var (
		m                                  persistence.Member
		primary, alternate, platform, name sql.NullString
		memberType                         string
		createdAt, updatedAt               int64
	)
	if err := row.Scan(&m.ID, &primary, &alternate, &platform, &name, &memberType, &createdAt, &updatedAt); err != nil {
		return persistence.Member{}, err
	}
	m.PrimaryEmail = stringPtr(primary)
	m.AlternateEmail = stringPtr(alternate)
	m.PlatformUserID = stringPtr(platform)
	m.DisplayName = stringPtr(name)
	m.MemberType = persistence.MemberType(memberType)
	m.CreatedAt = fromTimestamp(createdAt)
	m.UpdatedAt = fromTimestamp(updatedAt)
	return m, nil
}

// UpsertMember updates the member with params.ID when it exists, merging only
// the non-nil fields. Otherwise a new member is inserted under a freshly
// generated id, which requires params.MemberType.
func (s *Storage) UpsertMember(ctx context.Context, params persistence.MemberParams) (string, error) {
	params = normalizeParams(params)

	var id string
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if params.ID != "" {
			existing, err := scanMember(tx.QueryRowContext(ctx, memberByIDQuery, params.ID))
			switch {
			case err == nil:
				id = existing.ID
				return s.updateMember(ctx, tx, existing, params)
			case !errors.Is(err, sql.ErrNoRows):
				return err
			}
		}

		var err error
		id, err = s.insertMember(ctx, tx, params)
		return err
	})
	if err != nil {
		return "", s.fail("upsert member", err)
	}
	return id, nil
}

// MergeMember resolves params to an existing member by id, platform user id,
// primary email and then alternate email, and merges into it. When nothing
// matches a new member is inserted. Resolution and write share one
// transaction, so concurrent merges for the same person leave one row.
func (s *Storage) MergeMember(ctx context.Context, params persistence.MemberParams) (string, error) {
	params = normalizeParams(params)

	var id string
	err := s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		existing, err := resolveMember(ctx, tx, params)
		switch {
		case err == nil:
			id = existing.ID
			return s.updateMember(ctx, tx, existing, params)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		id, err = s.insertMember(ctx, tx, params)
		return err
	})
	if err != nil {
		return "", s.fail("merge member", err)
	}
	return id, nil
}

func resolveMember(ctx context.Context, q querier, params persistence.MemberParams) (persistence.Member, error) {
	type lookup struct {
		query string
		args  []any
	}
	var lookups []lookup
	if params.ID != "" {
		lookups = append(lookups, lookup{memberByIDQuery, []any{params.ID}})
	}
	if params.PlatformUserID != nil {
		lookups = append(lookups, lookup{memberByPlatformUserQuery, []any{*params.PlatformUserID}})
	}
	for _, email := range []*string{params.PrimaryEmail, params.AlternateEmail} {
		if email != nil {
			lookups = append(lookups, lookup{memberByEitherEmailQuery, []any{*email, *email, *email}})
		}
	}

	for _, l := range lookups {
		m, err := scanMember(q.QueryRowContext(ctx, l.query, l.args...))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		return m, err
	}
	return persistence.Member{}, sql.ErrNoRows
}

func (s *Storage) insertMember(ctx context.Context, q querier, params persistence.MemberParams) (string, error) {
	vErr := &persistence.ValidationError{}
	switch {
	case params.MemberType == nil:
		vErr.Add("member_type", "is required")
	case !params.MemberType.Valid():
		vErr.Add("member_type", "must be candidate or member")
	}
	if params.PrimaryEmail == nil && params.AlternateEmail == nil && params.PlatformUserID == nil {
		vErr.Add("identifier", "one of primary_email, alternate_email or platform_user_id is required")
	}
	if vErr.HasErrors() {
		return "", vErr
	}

	m := mergeMemberFields(persistence.Member{MemberType: *params.MemberType}, params)
	id := s.newID()
	now := s.timestamp()

	const query = `
		INSERT INTO members (id, primary_email, alternate_email, platform_user_id, display_name, member_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := q.ExecContext(ctx, query,
		id,
		nullableString(m.PrimaryEmail),
		nullableString(m.AlternateEmail),
		nullableString(m.PlatformUserID),
		nullableString(m.DisplayName),
		string(m.MemberType),
		now,
		now,
	); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) updateMember(ctx context.Context, q querier, existing persistence.Member, params persistence.MemberParams) error {
	if params.MemberType != nil && !params.MemberType.Valid() {
		return persistence.NewValidationError("member_type", "must be candidate or member")
	}

	m := mergeMemberFields(existing, params)
	updatedAt := s.timestamp()
	if prev := existing.UpdatedAt.UnixNano(); prev > updatedAt {
		updatedAt = prev
	}

	const query = `
		UPDATE members
		SET primary_email = ?, alternate_email = ?, platform_user_id = ?, display_name = ?, member_type = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := q.ExecContext(ctx, query,
		nullableString(m.PrimaryEmail),
		nullableString(m.AlternateEmail),
		nullableString(m.PlatformUserID),
		nullableString(m.DisplayName),
		string(m.MemberType),
		updatedAt,
		m.ID,
	)
	return err
}

// mergeMemberFields overlays the non-nil params onto m. An alternate email
// equal to the primary one is dropped.
func mergeMemberFields(m persistence.Member, params persistence.MemberParams) persistence.Member {
	if params.PrimaryEmail != nil {
		m.PrimaryEmail = params.PrimaryEmail
	}
	if params.AlternateEmail != nil {
		m.AlternateEmail = params.AlternateEmail
	}
	if params.PlatformUserID != nil {
		m.PlatformUserID = params.PlatformUserID
	}
	if params.DisplayName != nil {
		m.DisplayName = params.DisplayName
	}
	if params.MemberType != nil {
		m.MemberType = *params.MemberType
	}
	if m.PrimaryEmail != nil && m.AlternateEmail != nil && *m.PrimaryEmail == *m.AlternateEmail {
		m.AlternateEmail = nil
	}
	return m
}

// normalizeParams trims identifiers and treats blank values as absent.
func normalizeParams(params persistence.MemberParams) persistence.MemberParams {
	params.ID = strings.TrimSpace(params.ID)
	params.PrimaryEmail = trimmedOrNil(params.PrimaryEmail)
	params.AlternateEmail = trimmedOrNil(params.AlternateEmail)
	params.PlatformUserID = trimmedOrNil(params.PlatformUserID)
	params.DisplayName = trimmedOrNil(params.DisplayName)
	return params
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// GetMemberByPlatformUserID returns the member with the given chat-platform id
// and all of its service records.
func (s *Storage) GetMemberByPlatformUserID(ctx context.Context, platformUserID string) (persistence.MemberRecord, error) {
	return s.memberRecord(ctx, "get member by platform user id", memberByPlatformUserQuery, platformUserID)
}

// GetMemberByPrimaryEmail returns the member whose organization email matches exactly.
func (s *Storage) GetMemberByPrimaryEmail(ctx context.Context, email string) (persistence.MemberRecord, error) {
	return s.memberRecord(ctx, "get member by primary email", memberByPrimaryEmailQuery, email)
}

// GetMemberByAnyEmail tries the primary email first and falls back to the alternate one.
func (s *Storage) GetMemberByAnyEmail(ctx context.Context, email string) (persistence.MemberRecord, error) {
	record, err := s.memberRecord(ctx, "get member by email", memberByPrimaryEmailQuery, email)
	if !errors.Is(err, persistence.ErrNotFound) {
		return record, err
	}
	return s.memberRecord(ctx, "get member by email", memberByAltEmailQuery, email)
}

func (s *Storage) memberRecord(ctx context.Context, op, query, arg string) (persistence.MemberRecord, error) {
	db := s.pool.DB()
	member, err := scanMember(db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return persistence.MemberRecord{}, s.fail(op, err)
	}

	services, err := s.memberServices(ctx, db, member.ID)
	if err != nil {
		return persistence.MemberRecord{}, s.fail(op, err)
	}
	return persistence.MemberRecord{Member: member, Services: services}, nil
}

func (s *Storage) memberServices(ctx context.Context, q querier, memberID string) (persistence.ServiceRecords, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+serviceRecordColumns+` FROM service_data WHERE member_id = ? ORDER BY updated_at DESC, entity_id`,
		memberID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := persistence.ServiceRecords{}
	for rows.Next() {
		record, err := scanServiceRecord(rows)
		if err != nil {
			return nil, err
		}
		if services[record.Service] == nil {
			services[record.Service] = map[string][]persistence.ServiceRecord{}
		}
		services[record.Service][record.EntityType] = append(services[record.Service][record.EntityType], record)
	}
	return services, rows.Err()
}

// ListMembers returns every member, newest first.
func (s *Storage) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, s.fail("list members", err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, s.fail("list members", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list members", err)
	}
	return members, nil
}

// GetPlatformUserIDMappings maps every known platform user id to its member id.
func (s *Storage) GetPlatformUserIDMappings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.DB().QueryContext(ctx,
		`SELECT platform_user_id, id FROM members WHERE platform_user_id IS NOT NULL`)
	if err != nil {
		return nil, s.fail("platform user mappings", err)
	}
	defer rows.Close()

	mappings := make(map[string]string)
	for rows.Next() {
		var platformID, memberID string
		if err := rows.Scan(&platformID, &memberID); err != nil {
			return nil, s.fail("platform user mappings", err)
		}
		mappings[platformID] = memberID
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("platform user mappings", err)
	}
	return mappings, nil
}
