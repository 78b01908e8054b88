package crm_test

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/example/crmbridge/internal/crm"
	"github.com/example/crmbridge/internal/espo"
)

// fakeRemote is an in-memory EspoCRM that understands the subset of the
// search syntax the adapter sends.
type fakeRemote struct {
	mu       sync.Mutex
	contacts []crm.Contact
	calls    []string
	failAll  error
	failAt   map[int]error
	// noTotal drops "total" from search responses.
	noTotal bool
}

func newFakeRemote(contacts ...crm.Contact) *fakeRemote {
	return &fakeRemote{contacts: contacts, failAt: map[int]error{}}
}

func (f *fakeRemote) Request(_ context.Context, method, action string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, method+" "+action)
	if f.failAll != nil {
		return nil, f.failAll
	}

	switch {
	case action == "Contact" && method == http.MethodGet:
		offset, _ := params["offset"].(int)
		if err, ok := f.failAt[offset]; ok {
			return nil, err
		}
		return f.search(params), nil
	case strings.HasPrefix(action, "Contact/"):
		id := strings.TrimPrefix(action, "Contact/")
		contact := f.find(id)
		if contact == nil {
			return nil, &espo.APIError{StatusCode: http.StatusNotFound, Reason: "Not Found"}
		}
		if method == http.MethodPut {
			for k, v := range params {
				contact[k] = v
			}
		}
		return clone(contact), nil
	}
	return nil, &espo.APIError{StatusCode: http.StatusBadRequest, Reason: "unsupported"}
}

func (f *fakeRemote) search(params map[string]any) map[string]any {
	where, _ := params["where"].([]any)
	var matched []any
	for _, contact := range f.contacts {
		if matchesAll(contact, where) {
			matched = append(matched, clone(contact))
		}
	}
	total := len(matched)

	offset, _ := params["offset"].(int)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if size, ok := params["maxSize"].(int); ok && size < len(matched) {
		matched = matched[:size]
	}
	if matched == nil {
		matched = []any{}
	}
	if f.noTotal {
		return map[string]any{"list": matched}
	}
	return map[string]any{"total": float64(total), "list": matched}
}

func (f *fakeRemote) find(id string) crm.Contact {
	for _, contact := range f.contacts {
		if contact["id"] == id {
			return contact
		}
	}
	return nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

func matchesAll(contact crm.Contact, where []any) bool {
	for _, item := range where {
		filter, _ := item.(map[string]any)
		if !matches(contact, filter) {
			return false
		}
	}
	return true
}

func matches(contact crm.Contact, filter map[string]any) bool {
	switch filter["type"] {
	case "equals":
		attribute, _ := filter["attribute"].(string)
		return contact[attribute] == filter["value"]
	case "or":
		values, _ := filter["value"].([]any)
		for _, item := range values {
			sub, _ := item.(map[string]any)
			if matches(contact, sub) {
				return true
			}
		}
		return false
	}
	return true
}

func clone(contact crm.Contact) map[string]any {
	out := make(map[string]any, len(contact))
	for k, v := range contact {
		out[k] = v
	}
	return out
}
