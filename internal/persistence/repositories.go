package persistence

import (
	"context"
	"time"
)

// MemberRepository stores deduplicated people and resolves them by alternate identifiers.
type MemberRepository interface {
	UpsertMember(ctx context.Context, params MemberParams) (string, error)
	MergeMember(ctx context.Context, params MemberParams) (string, error)
	GetMemberByPlatformUserID(ctx context.Context, platformUserID string) (MemberRecord, error)
	GetMemberByPrimaryEmail(ctx context.Context, email string) (MemberRecord, error)
	GetMemberByAnyEmail(ctx context.Context, email string) (MemberRecord, error)
	ListMembers(ctx context.Context) ([]Member, error)
	GetPlatformUserIDMappings(ctx context.Context) (map[string]string, error)
}

// ServiceRecordRepository stores opaque external-service snapshots keyed by
// (service, entity type, entity id).
type ServiceRecordRepository interface {
	SetServiceRecord(ctx context.Context, record ServiceRecord) error
	GetServiceRecord(ctx context.Context, service, entityType, entityID string) (ServiceRecord, error)
	GetServiceRecordByEntityID(ctx context.Context, service, entityID string) (ServiceRecord, error)
	GetAllServiceRecords(ctx context.Context, service string) ([]ServiceRecord, error)
}

// CacheRepository is a TTL key/value store partitioned by service name.
type CacheRepository interface {
	SetCache(ctx context.Context, key string, value any, service string, ttl time.Duration) error
	GetCache(ctx context.Context, key string) (CacheEntry, error)
	ClearExpiredCache(ctx context.Context) (int, error)
	ClearServiceCache(ctx context.Context, service string) (int, error)
}

// Store is the full contract of the persistent store.
type Store interface {
	MemberRepository
	ServiceRecordRepository
	CacheRepository
	GetStats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}
