package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	submitted      prometheus.Counter
	decided        *prometheus.CounterVec
	staleConflicts prometheus.Counter
	feedEvents     *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "descanso_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "descanso_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "descanso_requests_submitted_total",
		Help: "Leave requests submitted.",
	})
	decided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "descanso_requests_decided_total",
		Help: "Manager decisions by outcome.",
	}, []string{"decision"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "descanso_decision_conflicts_total",
		Help: "Decisions lost to the optimistic status race.",
	})
	feed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "descanso_feed_events_total",
		Help: "Change feed events by type.",
	}, []string{"type"})
	registry.MustRegister(requests, duration, submitted, decided, stale, feed)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		submitted:       submitted,
		decided:         decided,
		staleConflicts:  stale,
		feedEvents:      feed,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RequestSubmitted counts a successful submission.
func (m *Metrics) RequestSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

// RequestDecided counts a successful decision.
func (m *Metrics) RequestDecided(decision string) {
	if m != nil {
		m.decided.WithLabelValues(decision).Inc()
	}
}

// DecisionConflict counts a lost optimistic race.
func (m *Metrics) DecisionConflict() {
	if m != nil {
		m.staleConflicts.Inc()
	}
}

// FeedEvent counts a delivered change feed event.
func (m *Metrics) FeedEvent(eventType string) {
	if m != nil {
		m.feedEvents.WithLabelValues(eventType).Inc()
	}
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards flushes so streaming responses keep working when wrapped.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
