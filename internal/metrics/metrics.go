package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Dashboard metrics
	backendRequests  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	pollTicks        *prometheus.CounterVec
	slotResults      *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
	sessionsClosed   *prometheus.CounterVec
	liveSubscribers  prometheus.Gauge
	generationsTotal *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Dashboard metrics
	r.backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_backend_requests_total",
			Help: "Total number of backend requests by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)
	r.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeboard_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
	r.pollTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_poll_ticks_total",
			Help: "Total number of scheduled polling ticks",
		},
		[]string{"schedule"},
	)
	r.slotResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_slot_results_total",
			Help: "Fetch results by view slot: applied, error, stale or cancelled",
		},
		[]string{"slot", "result"},
	)
	r.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeboard_sessions_active",
			Help: "Number of open dashboard sessions",
		},
	)
	r.sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_sessions_closed_total",
			Help: "Total number of closed dashboard sessions by reason",
		},
		[]string{"reason"},
	)
	r.liveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeboard_live_subscribers",
			Help: "Number of connected live view websockets",
		},
	)
	r.generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeboard_generations_total",
			Help: "Total number of signal generation requests by outcome",
		},
		[]string{"outcome"},
	)

	reg.MustRegister(r.backendRequests)
	reg.MustRegister(r.backendDuration)
	reg.MustRegister(r.pollTicks)
	reg.MustRegister(r.slotResults)
	reg.MustRegister(r.sessionsActive)
	reg.MustRegister(r.sessionsClosed)
	reg.MustRegister(r.liveSubscribers)
	reg.MustRegister(r.generationsTotal)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// ObserveFetch records one backend request.
func (r *Registry) ObserveFetch(resource, outcome string, seconds float64) {
	r.backendRequests.WithLabelValues(resource, outcome).Inc()
	r.backendDuration.WithLabelValues(resource).Observe(seconds)
}

// ObservePollTick records a scheduled polling tick.
func (r *Registry) ObservePollTick(schedule string) {
	r.pollTicks.WithLabelValues(schedule).Inc()
}

// ObserveSlotResult records what happened to a fetch result for a view slot.
func (r *Registry) ObserveSlotResult(slot, result string) {
	r.slotResults.WithLabelValues(slot, result).Inc()
}

// SetActiveSessions sets the number of open sessions.
func (r *Registry) SetActiveSessions(n int) {
	r.sessionsActive.Set(float64(n))
}

// ObserveSessionClosed records a session teardown.
func (r *Registry) ObserveSessionClosed(reason string) {
	r.sessionsClosed.WithLabelValues(reason).Inc()
}

// LiveSubscriberInc increments connected live views.
func (r *Registry) LiveSubscriberInc() {
	r.liveSubscribers.Inc()
}

// LiveSubscriberDec decrements connected live views.
func (r *Registry) LiveSubscriberDec() {
	r.liveSubscribers.Dec()
}

// ObserveGeneration records a generation request outcome.
func (r *Registry) ObserveGeneration(outcome string) {
	r.generationsTotal.WithLabelValues(outcome).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
