package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/crmbridge/internal/persistence"
)

// CRM contact field names.
const (
	fieldID               = "id"
	fieldName             = "name"
	fieldType             = "type"
	fieldEmail            = "emailAddress"
	fieldOrgEmail         = "c508Email"
	fieldPlatformUserID   = "cDiscordUserID"
	fieldPlatformUsername = "cDiscordUsername"
	fieldGitHubUsername   = "cGitHubUsername"
)

const (
	orgEmailPlaceholder       = "None"
	platformUserIDPlaceholder = "No Discord"
)

// contactTypes maps the CRM "type" field onto member tiers. Contacts of any
// other type are not mirrored.
var contactTypes = map[string]persistence.MemberType{
	"Member":             persistence.MemberTypeMember,
	"Candidate / Member": persistence.MemberTypeMember,
	"Candidate":          persistence.MemberTypeCandidate,
}

// normalizedContact is the typed view of a raw contact.
type normalizedContact struct {
	ID             string
	MemberType     persistence.MemberType
	OrgEmail       *string
	Email          *string
	PlatformUserID *string
	DisplayName    *string
}

// normalize extracts the member fields of a raw contact. ok is false when
// the contact has no id or is neither a member nor a candidate.
func (a *Adapter) normalize(contact Contact) (normalizedContact, bool) {
	id := stringField(contact, fieldID)
	if id == "" {
		return normalizedContact{}, false
	}
	memberType, ok := contactTypes[stringField(contact, fieldType)]
	if !ok {
		return normalizedContact{}, false
	}

	orgEmail := stringField(contact, fieldOrgEmail)
	if orgEmail == orgEmailPlaceholder {
		orgEmail = ""
	}
	email := stringField(contact, fieldEmail)
	if orgEmail == "" && a.isOrgEmail(email) {
		orgEmail, email = email, ""
	}

	platformUserID := stringField(contact, fieldPlatformUserID)
	if platformUserID == platformUserIDPlaceholder {
		platformUserID = ""
	}

	return normalizedContact{
		ID:             id,
		MemberType:     memberType,
		OrgEmail:       optional(orgEmail),
		Email:          optional(email),
		PlatformUserID: optional(platformUserID),
		DisplayName:    optional(stringField(contact, fieldName)),
	}, true
}

func (n normalizedContact) hasIdentifier() bool {
	return n.OrgEmail != nil || n.Email != nil || n.PlatformUserID != nil
}

func (a *Adapter) isOrgEmail(email string) bool {
	return len(email) > len(a.orgSuffix) &&
		strings.EqualFold(email[len(email)-len(a.orgSuffix):], a.orgSuffix)
}

// cacheContact mirrors one raw contact into the store: the member first, then
// the contact record linked to it. It reports false for contacts that are
// skipped.
func (a *Adapter) cacheContact(ctx context.Context, contact Contact) (bool, error) {
	normalized, ok := a.normalize(contact)
	if !ok {
		a.opLogger(ctx, "cache_contact").DebugContext(ctx, "skipping contact",
			"contact_id", contact[fieldID], "contact_type", contact[fieldType])
		return false, nil
	}

	payload, err := json.Marshal(contact)
	if err != nil {
		return false, fmt.Errorf("encode contact %s: %w", normalized.ID, err)
	}

	// A contact without any identifier cannot be resolved to a member; its
	// record is kept unlinked.
	var memberID *string
	if normalized.hasIdentifier() {
		memberType := normalized.MemberType
		id, err := a.store.MergeMember(ctx, persistence.MemberParams{
			PrimaryEmail:   normalized.OrgEmail,
			AlternateEmail: normalized.Email,
			PlatformUserID: normalized.PlatformUserID,
			DisplayName:    normalized.DisplayName,
			MemberType:     &memberType,
		})
		if err != nil {
			return false, fmt.Errorf("cache member for contact %s: %w", normalized.ID, err)
		}
		memberID = &id
	}

	err = a.store.SetServiceRecord(ctx, persistence.ServiceRecord{
		Service:    ServiceName,
		EntityType: EntityContact,
		EntityID:   normalized.ID,
		MemberID:   memberID,
		Payload:    payload,
	})
	if err != nil {
		return false, fmt.Errorf("cache contact %s: %w", normalized.ID, err)
	}
	return true, nil
}

// stringField reads a field as a trimmed string. Numbers are formatted and
// any other shape reads as absent.
func stringField(contact Contact, key string) string {
	switch v := contact[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
