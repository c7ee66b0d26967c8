// Package observability groups the Prometheus instruments exported by the
// auth relay.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	WSMessages     *prometheus.CounterVec
	AuthOutcomes   *prometheus.CounterVec
	StoredTokens   prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_auth_sessions",
			Help:      "Number of live interactive authentication sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Relay channel messages by direction and type.",
		}, []string{"direction", "type"}),
		AuthOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_outcomes_total",
			Help:      "Authentication attempts by terminal outcome.",
		}, []string{"outcome"}),
		StoredTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_tokens",
			Help:      "Number of records currently held by the token store.",
		}),
	}
}

// SessionEvent is a nil-safe counter bump for a session lifecycle event.
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

// SessionGauge adjusts the live-session gauge by delta. Nil-safe.
func (m *Metrics) SessionGauge(delta float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(delta)
}

// WSMessage counts one relay message. Nil-safe.
func (m *Metrics) WSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// AuthOutcome counts a terminal authentication outcome. Nil-safe.
func (m *Metrics) AuthOutcome(outcome string) {
	if m == nil {
		return
	}
	m.AuthOutcomes.WithLabelValues(outcome).Inc()
}

// SetStoredTokens records the current token-store size. Nil-safe.
func (m *Metrics) SetStoredTokens(n int) {
	if m == nil {
		return
	}
	m.StoredTokens.Set(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
