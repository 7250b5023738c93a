package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentwise"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Backfill outcome label values.
const (
	OutcomeScanned = "scanned"
	OutcomePatched = "patched"
	OutcomeSkipped = "skipped"
)

// Metrics holds the collectors of the service. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	UserCreations   *prometheus.CounterVec
	ProfileUpdates  *prometheus.CounterVec
	BackfillRecords *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid clashing registrations.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		UserCreations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "user_creations_total",
				Help:      "Total number of user creation attempts by result",
			},
			[]string{"result"},
		),
		ProfileUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_updates_total",
				Help:      "Total number of profile update attempts by result",
			},
			[]string{"result"},
		),
		BackfillRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backfill_records_total",
				Help:      "Tenancy records handled by the backfill, by outcome",
			},
			[]string{"outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.UserCreations, m.ProfileUpdates, m.BackfillRecords, m.RequestDuration)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// ObserveUserCreation counts a user creation attempt.
func (m *Metrics) ObserveUserCreation(err error) {
	if m == nil {
		return
	}
	m.UserCreations.WithLabelValues(result(err)).Inc()
}

// ObserveProfileUpdate counts a profile update attempt.
func (m *Metrics) ObserveProfileUpdate(err error) {
	if m == nil {
		return
	}
	m.ProfileUpdates.WithLabelValues(result(err)).Inc()
}

// AddBackfill adds n records with the given outcome.
func (m *Metrics) AddBackfill(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.BackfillRecords.WithLabelValues(outcome).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware records the duration of every routed request, labelled by
// route template rather than raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		m.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}
