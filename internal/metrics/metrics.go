// Package metrics собирает метрики Prometheus локального моста и ядра:
// HTTP-запросы, обращения к кешу каталога, переходы сессии и события аутентификации.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/therapy-rooms/internal/events"
	"github.com/magabrotheeeer/therapy-rooms/internal/session"
)

const namespace = "therapy_rooms"

// Metrics хранит коллекторы и собственный реестр.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	cacheLookups  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	sessionTransitions *prometheus.CounterVec
	authenticated      prometheus.Gauge
	authEvents         *prometheus.CounterVec
}

// New создает метрики в новом реестре вместе с коллекторами процесса и рантайма Go.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being served",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "cache_lookups_total",
				Help:      "Catalog cache lookups by result",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of catalog backend reads including retries",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"op", "status"},
		),
		sessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "transitions_total",
				Help:      "Committed session store transitions by resulting status",
			},
			[]string{"status"},
		),
		authenticated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "authenticated",
				Help:      "1 when the session store holds an authenticated user",
			},
		),
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Auth events by kind and source",
			},
			[]string{"kind", "source"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.cacheLookups,
		m.fetchDuration,
		m.sessionTransitions,
		m.authenticated,
		m.authEvents,
	)
	return m
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware записывает число, длительность и статус HTTP-запросов по шаблону маршрута.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		status := strconv.Itoa(wrapped.statusCode)

		m.httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}

// CacheLookup учитывает обращение к кешу каталога.
func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Fetch учитывает чтение каталога из бэкенда.
func (m *Metrics) Fetch(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetchDuration.WithLabelValues(op, status).Observe(d.Seconds())
}

// ObserveSession учитывает зафиксированный переход хранилища сессии.
func (m *Metrics) ObserveSession(st session.State) {
	m.sessionTransitions.WithLabelValues(string(st.Status)).Inc()
	if st.Authenticated() {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}

// ObserveAuthEvent учитывает событие аутентификации из шины.
func (m *Metrics) ObserveAuthEvent(ev events.AuthEvent) {
	m.authEvents.WithLabelValues(string(ev.Kind), string(ev.Source)).Inc()
}
