package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/events/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, id := range []string{"1", "2"} {
		res, err := http.Get(srv.URL + "/api/events/" + id)
		require.NoError(t, err)
		res.Body.Close()
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/events/{id}", "GET", "404")))
}

func TestObserveStoreAndHandler(t *testing.T) {
	m := New()
	m.ObserveStore("create event", "ok", 2*time.Millisecond)
	m.ObserveStore("create event", "invalid", time.Millisecond)
	m.WebhookDelivery(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("create event", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookSends.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `donortrack_store_operations_total{op="create event",outcome="invalid"} 1`)
}
