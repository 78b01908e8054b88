// Package crm keeps a local mirror of EspoCRM contacts in the persistent
// store and answers member lookups from it. Every lookup is cache-aside: a
// miss calls the CRM and writes the result back before returning, so the
// next identical lookup is served locally.
package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/crmbridge/internal/persistence"
)

const (
	// ServiceName labels CRM rows in service_data and the CRM cache partition.
	ServiceName = "espocrm"
	// EntityContact is the entity type of cached CRM contacts.
	EntityContact = "contact"

	// DefaultOrgEmailDomain is the organization's own email domain.
	DefaultOrgEmailDomain = "508.dev"
	// DefaultSearchTTL is how long a cached search response stays valid.
	DefaultSearchTTL = 5 * time.Minute
	// DefaultPageSize is the number of contacts requested per sync page.
	DefaultPageSize = 200

	contactSelect = "id,name,emailAddress,c508Email,cDiscordUsername,cDiscordUserID,cGitHubUsername,type,resumeIds,resumeNames,resumeTypes"
)

// ErrNotFound is returned when neither the store nor the CRM knows the record.
var ErrNotFound = persistence.ErrNotFound

// Contact is a raw CRM contact record.
type Contact = map[string]any

// Remote is the slice of the EspoCRM client the adapter needs.
type Remote interface {
	Request(ctx context.Context, method, action string, params map[string]any) (map[string]any, error)
}

// Observer receives lookup and remote-call events, e.g. for metrics.
type Observer interface {
	ObserveLookup(operation string, hit bool)
	ObserveRemote(operation string, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveLookup(string, bool)                 {}
func (noopObserver) ObserveRemote(string, time.Duration, error) {}

// Options configures an Adapter. Zero values select the defaults.
type Options struct {
	OrgEmailDomain string
	SearchTTL      time.Duration
	PageSize       int
	Logger         *slog.Logger
	Observer       Observer
	Now            func() time.Time
}

// Adapter implements cache-aside access to CRM contacts.
type Adapter struct {
	remote    Remote
	store     persistence.Store
	orgSuffix string
	searchTTL time.Duration
	pageSize  int
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time
}

// New builds an adapter over remote and store.
func New(remote Remote, store persistence.Store, opts Options) *Adapter {
	if opts.OrgEmailDomain == "" {
		opts.OrgEmailDomain = DefaultOrgEmailDomain
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = DefaultSearchTTL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{
		remote:    remote,
		store:     store,
		orgSuffix: "@" + opts.OrgEmailDomain,
		searchTTL: opts.SearchTTL,
		pageSize:  opts.PageSize,
		logger:    defaultLogger(opts.Logger),
		observer:  opts.Observer,
		now:       opts.Now,
	}
}

// Initialize loads every member and candidate contact into the store. It
// never fails: problems are logged so startup can continue.
func (a *Adapter) Initialize(ctx context.Context) {
	logger := a.opLogger(ctx, "initialize")
	logger.InfoContext(ctx, "initializing CRM data store")

	loaded, err := a.Sync(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to initialize CRM data store", "error", err, "error_kind", ErrorKind(err))
		return
	}
	logger.With("loaded", loaded).InfoContext(ctx, "CRM data store initialized")
}

// Sync pages through every Member, Candidate and "Candidate / Member" contact
// and caches each one. It returns the number of contacts cached. Only a
// failure of the first page is returned; later page and record failures are
// logged and skipped. Paging stops at the first short page, or at the
// reported total when the CRM sends one.
func (a *Adapter) Sync(ctx context.Context) (int, error) {
	logger := a.opLogger(ctx, "sync")

	loaded := 0
	total := -1
	for offset := 0; total < 0 || offset < total; offset += a.pageSize {
		params := map[string]any{
			"where":   []any{contactTypeFilter()},
			"maxSize": a.pageSize,
			"offset":  offset,
			"select":  contactSelect,
		}
		resp, err := a.call(ctx, "sync", http.MethodGet, "Contact", params)
		if err != nil {
			if offset == 0 {
				return 0, err
			}
			if total < 0 {
				// Without a total a failed page leaves no way to know what remains.
				logger.ErrorContext(ctx, "stopping sync at failed contact page", "offset", offset, "error", err, "error_kind", ErrorKind(err))
				break
			}
			logger.ErrorContext(ctx, "skipping contact page", "offset", offset, "error", err, "error_kind", ErrorKind(err))
			continue
		}

		contacts := contactList(resp)
		if offset == 0 {
			total = intField(resp, "total", -1)
			if total < 0 {
				logger.WarnContext(ctx, "CRM response has no total, paging until a short page")
			} else {
				logger.With("total", total).InfoContext(ctx, "loading members and candidates")
			}
		}

		for _, contact := range contacts {
			cached, err := a.cacheContact(ctx, contact)
			if err != nil {
				logger.ErrorContext(ctx, "failed to cache contact", "contact_id", contact["id"], "error", err, "error_kind", ErrorKind(err))
				continue
			}
			if cached {
				loaded++
			}
		}

		if len(contacts) < a.pageSize {
			break
		}
	}
	return loaded, nil
}

// UpdateContact writes fields to the CRM and then refetches the contact so
// the cached copy matches what the CRM actually stored. It reports false when
// the CRM rejects the update.
func (a *Adapter) UpdateContact(ctx context.Context, contactID string, fields map[string]any) bool {
	logger := a.opLogger(ctx, "update_contact", "contact_id", contactID)

	resp, err := a.call(ctx, "update_contact", http.MethodPut, "Contact/"+contactID, fields)
	if err != nil {
		logger.ErrorContext(ctx, "failed to update contact", "error", err, "error_kind", ErrorKind(err))
		return false
	}
	if len(resp) == 0 {
		logger.WarnContext(ctx, "contact update returned an empty record")
		return false
	}

	if _, err := a.GetContactByID(ctx, contactID, true); err != nil {
		logger.WarnContext(ctx, "contact updated but cache refresh failed", "error", err, "error_kind", ErrorKind(err))
	}
	logger.InfoContext(ctx, "contact updated")
	return true
}

// InvalidateContact refetches one contact from the CRM and re-caches it.
func (a *Adapter) InvalidateContact(ctx context.Context, contactID string) error {
	_, err := a.GetContactByID(ctx, contactID, true)
	return err
}

// CacheStats extends the store statistics with the number of cached contacts.
type CacheStats struct {
	persistence.Stats
	CRMContacts int `json:"crm_contacts"`
}

// GetCacheStats reports store statistics plus the cached contact count.
func (a *Adapter) GetCacheStats(ctx context.Context) (CacheStats, error) {
	stats, err := a.store.GetStats(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	records, err := a.store.GetAllServiceRecords(ctx, ServiceName)
	if err != nil {
		return CacheStats{}, err
	}

	contacts := 0
	for _, record := range records {
		if record.EntityType == EntityContact {
			contacts++
		}
	}
	return CacheStats{Stats: stats, CRMContacts: contacts}, nil
}

// ClearCache drops the CRM partition of the TTL cache. Members and service
// records are durable mirror state and stay.
func (a *Adapter) ClearCache(ctx context.Context) (int, error) {
	cleared, err := a.store.ClearServiceCache(ctx, ServiceName)
	if err != nil {
		return 0, err
	}
	a.opLogger(ctx, "clear_cache").With("cleared", cleared).InfoContext(ctx, "CRM cache cleared")
	return cleared, nil
}

// PlatformUserMappings returns every cached platform user id with its member id.
func (a *Adapter) PlatformUserMappings(ctx context.Context) (map[string]string, error) {
	return a.store.GetPlatformUserIDMappings(ctx)
}

// call performs one remote request and reports it to the observer.
func (a *Adapter) call(ctx context.Context, operation, method, action string, params map[string]any) (map[string]any, error) {
	start := a.now()
	resp, err := a.remote.Request(ctx, method, action, params)
	a.observer.ObserveRemote(operation, a.now().Sub(start), err)
	if err != nil {
		a.opLogger(ctx, operation).ErrorContext(ctx, "CRM request failed",
			"method", method, "action", action, "error", err, "error_kind", ErrorKind(err))
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return resp, nil
}

func contactTypeFilter() map[string]any {
	values := make([]any, 0, 3)
	for _, t := range []string{"Member", "Candidate", "Candidate / Member"} {
		values = append(values, equalsFilter(fieldType, t))
	}
	return map[string]any{"type": "or", "value": values}
}

func contactList(resp map[string]any) []Contact {
	raw, _ := resp["list"].([]any)
	contacts := make([]Contact, 0, len(raw))
	for _, item := range raw {
		if contact, ok := item.(map[string]any); ok {
			contacts = append(contacts, contact)
		}
	}
	return contacts
}

func intField(m map[string]any, key string, fallback int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
