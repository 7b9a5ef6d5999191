// Package metrics defines and registers the Prometheus collectors of the
// presencectl client. It is the single source of truth for metric names,
// labels, and help strings.
//
// Collectors register with the default registry on import (promauto), so the
// watch command only has to expose /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presencectl"

// Outcome label values shared by the backend collectors.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnreachable = "unreachable"
	OutcomeMalformed   = "malformed"
)

// ── Backend calls ─────────────────────────────────────────────────────────────

// BackendRequestsTotal counts calls to the Auth and Presence services.
// Labels:
//   - endpoint: "login", "register", "verify", "connection_start", "list_users"
//   - outcome: "success", "failure" (non-Success envelope), "unreachable", "malformed"
var BackendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of backend calls, by endpoint and logical outcome.",
	},
	[]string{"endpoint", "outcome"},
)

// BackendRequestDuration measures round-trip latency including body decoding.
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of backend calls from request build to decoded envelope.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// ── Session ───────────────────────────────────────────────────────────────────

// SessionTransitionsTotal counts state machine transitions by target phase.
var SessionTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_transitions_total",
		Help:      "Total number of session state transitions, by target phase.",
	},
	[]string{"phase"},
)

// ForcedLogoutsTotal counts sessions ended because the backend rejected the credential.
var ForcedLogoutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_logouts_total",
		Help:      "Total number of sessions terminated after an Unauthorized response.",
	},
)

// PresenceRegistrationsTotal counts connection registrations.
// Label:
//   - result: "registered" or "failed"
var PresenceRegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "presence_registrations_total",
		Help:      "Total number of presence registrations issued, by result.",
	},
	[]string{"result"},
)

// StaleResponsesTotal counts replies discarded because the session moved on
// while they were in flight.
var StaleResponsesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_responses_total",
		Help:      "Total number of backend replies discarded after a session change.",
	},
	[]string{"endpoint"},
)

// ── Directory ─────────────────────────────────────────────────────────────────

// DirectorySize is the number of records in the last directory snapshot.
var DirectorySize = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "directory_size",
		Help:      "Number of connected principals in the last directory snapshot.",
	},
)

// ── Notifications ─────────────────────────────────────────────────────────────

// DroppedEventsTotal counts session events discarded undelivered at shutdown.
var DroppedEventsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_events_total",
		Help:      "Total number of session events dropped because the notifier was cancelled.",
	},
)
