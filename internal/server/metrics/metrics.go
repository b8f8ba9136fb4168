// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the bot's collectors so tests can use a private registry.
type Metrics struct {
	Events        *prometheus.CounterVec
	Commands      *prometheus.CounterVec
	VoiceSessions *prometheus.CounterVec
	Gateway       prometheus.Gauge
}

// New registers the collectors with reg. The server passes its own registry,
// which also backs the /metrics handler; tests pass a fresh one.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "dispatcher",
			Name:      "events_total",
			Help:      "Inbound platform events by route.",
		}, []string{"route"}),

		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "dispatcher",
			Name:      "commands_total",
			Help:      "Handled commands by command and outcome.",
		}, []string{"command", "outcome"}),

		VoiceSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guildkeeper",
			Subsystem: "accounting",
			Name:      "voice_transitions_total",
			Help:      "Voice-state changes by derived transition.",
		}, []string{"transition"}),

		Gateway: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "guildkeeper",
			Subsystem: "gateway",
			Name:      "connected",
			Help:      "1 while the platform gateway session is open.",
		}),
	}
}
