package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.RequestSubmitted()
	m.RequestSubmitted()
	m.RequestDecided("approve")
	m.RequestDecided("reject")
	m.DecisionConflict()
	m.FeedEvent("INSERT")

	body := scrape(t, m)
	require.Contains(t, body, "descanso_requests_submitted_total 2")
	require.Contains(t, body, `descanso_requests_decided_total{decision="approve"} 1`)
	require.Contains(t, body, `descanso_requests_decided_total{decision="reject"} 1`)
	require.Contains(t, body, "descanso_decision_conflicts_total 1")
	require.Contains(t, body, `descanso_feed_events_total{type="INSERT"} 1`)
}

func TestMetricsMiddlewareRecordsRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/abc", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	body := scrape(t, m)
	require.Contains(t, body, `descanso_http_requests_total{code="204",route="/requests/{id}"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RequestSubmitted()
	m.RequestDecided("approve")
	m.DecisionConflict()
	m.FeedEvent("UPDATE")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
