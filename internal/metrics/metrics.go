// Package metrics exposes Prometheus instrumentation for the game and the
// HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated   prometheus.Counter
	answersSubmitted  *prometheus.CounterVec
	gamesFinished     *prometheus.CounterVec
	challengesCreated prometheus.Counter
	challengeJoins    *prometheus.CounterVec
	bulkRows          *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "globetrotter_game_sessions_created_total",
			Help: "Game sessions created",
		}),
		answersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "globetrotter_answers_submitted_total",
			Help: "Answers submitted, by correctness",
		}, []string{"result"}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "globetrotter_games_finished_total",
			Help: "Game sessions reaching a terminal status",
		}, []string{"status"}),
		challengesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "globetrotter_challenges_created_total",
			Help: "Challenges created",
		}),
		challengeJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "globetrotter_challenge_joins_total",
			Help: "Challenge joins, by participant kind",
		}, []string{"kind"}),
		bulkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "globetrotter_destination_import_rows_total",
			Help: "Bulk destination import rows, by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsCreated, m.answersSubmitted, m.gamesFinished,
		m.challengesCreated, m.challengeJoins, m.bulkRows,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry (useful for tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) AnswerSubmitted(correct bool) {
	if m == nil {
		return
	}
	result := "wrong"
	if correct {
		result = "correct"
	}
	m.answersSubmitted.WithLabelValues(result).Inc()
}

func (m *Metrics) GameFinished(status string) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) ChallengeCreated() {
	if m == nil {
		return
	}
	m.challengesCreated.Inc()
}

func (m *Metrics) ChallengeJoined(anonymous bool) {
	if m == nil {
		return
	}
	kind := "named"
	if anonymous {
		kind = "anonymous"
	}
	m.challengeJoins.WithLabelValues(kind).Inc()
}

func (m *Metrics) BulkImported(created, failed int) {
	if m == nil {
		return
	}
	m.bulkRows.WithLabelValues("created").Add(float64(created))
	m.bulkRows.WithLabelValues("failed").Add(float64(failed))
}

// Middleware records request counts and latency by chi route pattern, so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
