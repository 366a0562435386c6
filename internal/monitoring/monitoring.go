package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

const namespace = "recorderhub"

// Heartbeat outcomes
const (
	ResultCommand   = "command"
	ResultNoCommand = "none"
	ResultRejected  = "rejected"
	ResultError     = "error"
)

// Service holds the hub's Prometheus metrics
type Service struct {
	gatherer prometheus.Gatherer

	heartbeats        *prometheus.CounterVec
	heartbeatDuration prometheus.Histogram
	commands          *prometheus.CounterVec
	mutationFailures  *prometheus.CounterVec
	inconsistencies   prometheus.Counter
	devicesRegistered prometheus.Counter
	sessionsCreated   prometheus.Counter
	assignmentsFailed prometheus.Counter
	events            *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// NewService registers all metrics on reg. Passing a fresh prometheus.Registry
// keeps tests isolated.
func NewService(reg *prometheus.Registry) *Service {
	f := promauto.With(reg)
	return &Service{
		gatherer: reg,
		heartbeats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeats processed by outcome (command/none/rejected/error).",
		}, []string{"result"}),
		heartbeatDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heartbeat_duration_seconds",
			Help:      "Time to update and resolve one heartbeat, commit included.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands returned to devices by name.",
		}, []string{"command"}),
		mutationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_mutation_failures_total",
			Help:      "Writes skipped during heartbeat resolution, retried on the next heartbeat.",
		}, []string{"operation"}),
		inconsistencies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_pointer_inconsistencies_total",
			Help:      "Devices found pointing at a session without a status row.",
		}),
		devicesRegistered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_registered_total",
			Help:      "Devices created on first heartbeat.",
		}),
		sessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Recording sessions created.",
		}),
		assignmentsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_assignment_failures_total",
			Help:      "Devices that could not join a new session because they were busy.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Maintenance and lifecycle events by name.",
		}, []string{"event"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status_code"}),
	}
}

// Handler serves the registered metrics
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

// ObserveHeartbeat records the outcome and latency of one heartbeat
func (s *Service) ObserveHeartbeat(result string, cmd *models.Command, took time.Duration) {
	s.heartbeats.WithLabelValues(result).Inc()
	s.heartbeatDuration.Observe(took.Seconds())
	if cmd != nil {
		s.commands.WithLabelValues(string(cmd.Name)).Inc()
	}
}

func (s *Service) MutationFailed(op string) {
	s.mutationFailures.WithLabelValues(op).Inc()
}

func (s *Service) Inconsistency() {
	s.inconsistencies.Inc()
}

func (s *Service) DeviceRegistered() {
	s.devicesRegistered.Inc()
}

// SessionCreated counts a new session and the devices it could not claim
func (s *Service) SessionCreated(session *models.RecordingSession) {
	s.sessionsCreated.Inc()
	for _, status := range session.DeviceStatuses {
		if status.Status == models.StatusFailed {
			s.assignmentsFailed.Inc()
		}
	}
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	s.events.WithLabelValues(eventName).Inc()
	nuts.L.Debugf("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}

// Middleware records request count and latency per route template. The metrics
// endpoint itself is skipped.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if route == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m := httpsnoop.CaptureMetrics(next, w, r)

		code := strconv.Itoa(m.Code)
		s.httpDuration.WithLabelValues(r.Method, route, code).Observe(m.Duration.Seconds())
		s.httpRequests.WithLabelValues(r.Method, route, code).Inc()
	})
}
