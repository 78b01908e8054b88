package persistence

import (
	"encoding/json"
	"time"
)

// MemberType distinguishes onboarded organization members from prospective candidates.
type MemberType string

const (
	MemberTypeCandidate MemberType = "candidate"
	MemberTypeMember    MemberType = "member"
)

// Valid reports whether t is one of the two supported tiers.
func (t MemberType) Valid() bool {
	return t == MemberTypeCandidate || t == MemberTypeMember
}

// Member is a deduplicated person tracked across external services.
type Member struct {
	ID             string
	PrimaryEmail   *string
	AlternateEmail *string
	PlatformUserID *string
	DisplayName    *string
	MemberType     MemberType
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MemberParams carries the optional fields of a member upsert. Nil fields are
// left untouched on update.
type MemberParams struct {
	ID             string
	PrimaryEmail   *string
	AlternateEmail *string
	PlatformUserID *string
	DisplayName    *string
	MemberType     *MemberType
}

// ServiceRecord is an opaque snapshot of an external-service entity.
type ServiceRecord struct {
	Service    string
	EntityType string
	EntityID   string
	MemberID   *string
	Payload    json.RawMessage
	UpdatedAt  time.Time
}

// Key returns the composite "service:entity_type:entity_id" identifier.
func (r ServiceRecord) Key() string {
	return ServiceRecordKey(r.Service, r.EntityType, r.EntityID)
}

// ServiceRecordKey builds the composite identifier of a service record.
func ServiceRecordKey(service, entityType, entityID string) string {
	return service + ":" + entityType + ":" + entityID
}

// ServiceRecords groups a member's records by service, then entity type. Each
// list is ordered most recent first.
type ServiceRecords map[string]map[string][]ServiceRecord

// Latest returns the most recently updated record for service/entityType.
func (s ServiceRecords) Latest(service, entityType string) (ServiceRecord, bool) {
	byType, ok := s[service]
	if !ok {
		return ServiceRecord{}, false
	}
	records := byType[entityType]
	if len(records) == 0 {
		return ServiceRecord{}, false
	}
	return records[0], true
}

// MemberRecord is a member together with every service record linked to it.
type MemberRecord struct {
	Member   Member
	Services ServiceRecords
}

// CacheEntry is an ephemeral key/value pair partitioned by service.
type CacheEntry struct {
	Key       string
	Value     json.RawMessage
	Service   string
	ExpiresAt *time.Time
}

// Stats summarises the contents of the store.
type Stats struct {
	Members      int            `json:"members"`
	ServiceData  map[string]int `json:"service_data"`
	Cache        map[string]int `json:"cache"`
	ExpiredCache int            `json:"expired_cache"`
}
