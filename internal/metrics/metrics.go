// Package metrics exposes Prometheus instrumentation for the sync client.
// Metrics are registered on the default registry in init and served by the
// local HTTP server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EventsTotal counts inbound stream events routed by kind. Unknown and
	// malformed payloads get their own kinds so drops stay visible.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskd_stream_events_total",
			Help: "Inbound stream events by kind",
		},
		[]string{"kind"},
	)

	// StreamConnected is 1 while the stream connection is open.
	StreamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskd_stream_connected",
			Help: "Stream connection state (1 = open)",
		},
	)

	// ReconnectsTotal counts scheduled reconnect attempts.
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deskd_stream_reconnects_total",
			Help: "Reconnect attempts after a dropped connection",
		},
	)

	// CommandsDroppedTotal counts outbound commands dropped because the
	// connection was not open.
	CommandsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deskd_stream_commands_dropped_total",
			Help: "Outbound commands dropped while disconnected",
		},
	)

	// AuditStagesTotal counts terminal stage results per audit run.
	AuditStagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskd_audit_stages_total",
			Help: "Audit stages reaching a terminal status",
		},
		[]string{"status"},
	)

	// RepairsTotal counts repair calls by outcome.
	RepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskd_audit_repairs_total",
			Help: "Stage repair calls by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		StreamConnected,
		ReconnectsTotal,
		CommandsDroppedTotal,
		AuditStagesTotal,
		RepairsTotal,
	)
}
