package crm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/blake2b"
)

const searchKeyPrefix = "search:"

// SearchCacheKey derives the cache key of a search. encoding/json writes map
// keys in sorted order, so criteria that differ only in key order share a key.
func SearchCacheKey(criteria map[string]any) (string, error) {
	canonical, err := json.Marshal(criteria)
	if err != nil {
		return "", fmt.Errorf("encode search criteria: %w", err)
	}
	sum := blake2b.Sum256(canonical)
	return searchKeyPrefix + hex.EncodeToString(sum[:]), nil
}

// SearchContacts runs a contact search, serving identical searches from the
// cache for ttl (the adapter default when ttl <= 0). A remote response is
// cached whole and each contact in it is cached individually as well.
func (a *Adapter) SearchContacts(ctx context.Context, criteria map[string]any, ttl time.Duration) (map[string]any, error) {
	if ttl <= 0 {
		ttl = a.searchTTL
	}
	key, err := SearchCacheKey(criteria)
	if err != nil {
		return nil, err
	}
	logger := a.opLogger(ctx, "search_contacts", "cache_key", key)

	entry, err := a.store.GetCache(ctx, key)
	switch {
	case err == nil:
		var cached map[string]any
		if json.Unmarshal(entry.Value, &cached) == nil && cached != nil {
			a.observer.ObserveLookup("search_contacts", true)
			logger.DebugContext(ctx, "cache hit")
			return cached, nil
		}
	case !isNotFound(err):
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	a.observer.ObserveLookup("search_contacts", false)
	logger.DebugContext(ctx, "cache miss, fetching from CRM")

	resp, err := a.call(ctx, "search_contacts", http.MethodGet, "Contact", criteria)
	if err != nil {
		return nil, err
	}

	if err := a.store.SetCache(ctx, key, resp, ServiceName, ttl); err != nil {
		logger.ErrorContext(ctx, "failed to cache search response", "error", err, "error_kind", ErrorKind(err))
	}
	for _, contact := range contactList(resp) {
		a.cacheQuietly(ctx, contact)
	}
	return resp, nil
}
