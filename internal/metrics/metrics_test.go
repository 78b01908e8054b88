package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLookupAndRemote(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveLookup("find_member_by_email", true)
	m.ObserveLookup("find_member_by_email", false)
	m.ObserveLookup("find_member_by_email", false)
	m.ObserveRemote("sync", 20*time.Millisecond, nil)
	m.ObserveRemote("sync", 5*time.Millisecond, errors.New("boom"))
	m.ObserveSweep(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("find_member_by_email", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("find_member_by_email", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteCalls.WithLabelValues("sync", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteCalls.WithLabelValues("sync", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.expiredRemoved))
}

func TestMiddlewareAndHandler(t *testing.T) {
	t.Parallel()
	m := New()

	handler := m.Middleware("/stats", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/stats", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "crmbridge_http_requests_total"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
