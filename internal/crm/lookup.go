package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/example/crmbridge/internal/persistence"
)

// FindContactByPlatformID returns the raw contact of a chat platform user.
// A member with a cached contact record is answered locally. On a miss the
// CRM is searched and the result cached before it is returned, so the next
// call is a hit. ErrNotFound means the CRM has no such contact.
func (a *Adapter) FindContactByPlatformID(ctx context.Context, platformUserID string) (Contact, error) {
	logger := a.opLogger(ctx, "find_contact_by_platform_id", "platform_user_id", platformUserID)

	record, err := a.store.GetMemberByPlatformUserID(ctx, platformUserID)
	switch {
	case err == nil:
		if latest, ok := record.Services.Latest(ServiceName, EntityContact); ok {
			if contact, ok := decodeContact(latest.Payload); ok {
				a.observer.ObserveLookup("find_contact_by_platform_id", true)
				logger.DebugContext(ctx, "cache hit")
				return contact, nil
			}
		}
	case !isNotFound(err):
		return nil, fmt.Errorf("find contact by platform id: %w", err)
	}

	a.observer.ObserveLookup("find_contact_by_platform_id", false)
	logger.DebugContext(ctx, "cache miss, fetching from CRM")

	contact, err := a.fetchByPlatformID(ctx, "find_contact_by_platform_id", platformUserID)
	if err != nil {
		return nil, err
	}
	a.cacheQuietly(ctx, contact)
	return contact, nil
}

// FindMemberByPlatformID returns the member linked to a chat platform user,
// populating the store from the CRM on a miss.
// Unlike FindContactByPlatformID, a failure to cache the fetched contact is
// returned since the member can only be read back from the store.
func (a *Adapter) FindMemberByPlatformID(ctx context.Context, platformUserID string) (persistence.MemberRecord, error) {
	logger := a.opLogger(ctx, "find_member_by_platform_id", "platform_user_id", platformUserID)

	record, err := a.store.GetMemberByPlatformUserID(ctx, platformUserID)
	if err == nil {
		a.observer.ObserveLookup("find_member_by_platform_id", true)
		logger.DebugContext(ctx, "cache hit")
		return record, nil
	}
	if !isNotFound(err) {
		return persistence.MemberRecord{}, fmt.Errorf("find member by platform id: %w", err)
	}
	a.observer.ObserveLookup("find_member_by_platform_id", false)
	logger.DebugContext(ctx, "cache miss, fetching from CRM")

	contact, err := a.fetchByPlatformID(ctx, "find_member_by_platform_id", platformUserID)
	if err != nil {
		return persistence.MemberRecord{}, err
	}
	if _, err := a.cacheContact(ctx, contact); err != nil {
		return persistence.MemberRecord{}, err
	}
	return a.store.GetMemberByPlatformUserID(ctx, platformUserID)
}

// FindMemberByEmail returns the member owning email as primary or alternate
// address, populating the store from the CRM on a miss.
func (a *Adapter) FindMemberByEmail(ctx context.Context, email string) (persistence.MemberRecord, error) {
	logger := a.opLogger(ctx, "find_member_by_email", "email", email)

	record, err := a.store.GetMemberByAnyEmail(ctx, email)
	if err == nil {
		a.observer.ObserveLookup("find_member_by_email", true)
		logger.DebugContext(ctx, "cache hit")
		return record, nil
	}
	if !isNotFound(err) {
		return persistence.MemberRecord{}, fmt.Errorf("find member by email: %w", err)
	}
	a.observer.ObserveLookup("find_member_by_email", false)
	logger.DebugContext(ctx, "cache miss, fetching from CRM")

	filter := map[string]any{
		"type": "or",
		"value": []any{
			equalsFilter(fieldEmail, email),
			equalsFilter(fieldOrgEmail, email),
		},
	}
	contacts, err := a.searchRemote(ctx, "find_member_by_email", filter)
	if err != nil {
		return persistence.MemberRecord{}, err
	}
	if len(contacts) == 0 {
		return persistence.MemberRecord{}, ErrNotFound
	}
	if _, err := a.cacheContact(ctx, contacts[0]); err != nil {
		return persistence.MemberRecord{}, err
	}
	return a.store.GetMemberByAnyEmail(ctx, email)
}

// GetContactByID returns a contact by CRM id from the store, or from the CRM
// when it is not cached or forceRefresh is set. Fetched contacts are cached.
func (a *Adapter) GetContactByID(ctx context.Context, contactID string, forceRefresh bool) (Contact, error) {
	logger := a.opLogger(ctx, "get_contact_by_id", "contact_id", contactID)

	if !forceRefresh {
		record, err := a.store.GetServiceRecord(ctx, ServiceName, EntityContact, contactID)
		switch {
		case err == nil:
			if contact, ok := decodeContact(record.Payload); ok {
				a.observer.ObserveLookup("get_contact_by_id", true)
				logger.DebugContext(ctx, "cache hit")
				return contact, nil
			}
		case !isNotFound(err):
			return nil, fmt.Errorf("get contact by id: %w", err)
		}
		a.observer.ObserveLookup("get_contact_by_id", false)
	}

	logger.DebugContext(ctx, "fetching contact from CRM", "force_refresh", forceRefresh)
	contact, err := a.call(ctx, "get_contact_by_id", http.MethodGet, "Contact/"+contactID, nil)
	if err != nil {
		return nil, err
	}
	if len(contact) == 0 {
		return nil, ErrNotFound
	}
	a.cacheQuietly(ctx, contact)
	return contact, nil
}

func (a *Adapter) fetchByPlatformID(ctx context.Context, operation, platformUserID string) (Contact, error) {
	contacts, err := a.searchRemote(ctx, operation, equalsFilter(fieldPlatformUserID, platformUserID))
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrNotFound
	}
	return contacts[0], nil
}

// searchRemote runs a single-result contact search.
func (a *Adapter) searchRemote(ctx context.Context, operation string, filter map[string]any) ([]Contact, error) {
	params := map[string]any{
		"where":   []any{filter},
		"maxSize": 1,
		"select":  contactSelect,
	}
	resp, err := a.call(ctx, operation, http.MethodGet, "Contact", params)
	if err != nil {
		return nil, err
	}
	return contactList(resp), nil
}

// cacheQuietly caches a fetched contact, logging instead of failing: the
// caller already holds the remote answer.
func (a *Adapter) cacheQuietly(ctx context.Context, contact Contact) {
	if _, err := a.cacheContact(ctx, contact); err != nil {
		a.opLogger(ctx, "cache_contact").ErrorContext(ctx, "failed to cache contact",
			"contact_id", contact[fieldID], "error", err, "error_kind", ErrorKind(err))
	}
}

func equalsFilter(attribute, value string) map[string]any {
	return map[string]any{"type": "equals", "attribute": attribute, "value": value}
}

func decodeContact(payload json.RawMessage) (Contact, bool) {
	var contact Contact
	if err := json.Unmarshal(payload, &contact); err != nil || contact == nil {
		return nil, false
	}
	return contact, true
}
