package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

func TestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/rooms/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v1/rooms/a", "/api/v1/rooms/b", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/rooms/{slug}", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpRequestsInFlight))
}

func TestCatalogMetrics(t *testing.T) {
	m := New()
	m.CacheLookup("miss")
	m.CacheLookup("fresh")
	m.CacheLookup("fresh")
	m.Fetch("list", 20*time.Millisecond, nil)
	m.Fetch("list", time.Second, errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheLookups.WithLabelValues("fresh")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.fetchDuration))
}

func TestSessionMetrics(t *testing.T) {
	m := New()
	m.ObserveSession(session.State{Status: session.StatusAuthenticated, User: &models.User{ID: "u1"}})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authenticated))

	m.ObserveSession(session.State{Status: session.StatusUnauthenticated, Initialized: true})
	assert.Equal(t, float64(0), testutil.ToFloat64(m.authenticated))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessionTransitions.WithLabelValues("unauthenticated")))

	m.ObserveAuthEvent(events.AuthEvent{Kind: events.SignedOut, Source: events.SourceRemote})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.authEvents.WithLabelValues("SIGNED_OUT", "remote")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheLookup("stale")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `therapy_rooms_catalog_cache_lookups_total{result="stale"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
