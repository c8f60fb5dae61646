package domain

import "time"

// SatelliteState is the connectivity state of an external data/execution
// provider as reported by engine heartbeats.
type SatelliteState string

const (
	SatelliteOnline         SatelliteState = "ONLINE"
	SatelliteOffline        SatelliteState = "OFFLINE"
	SatelliteManualDisabled SatelliteState = "MANUAL_DISABLED"
)

// SatelliteStatus describes one named provider.
type SatelliteStatus struct {
	Status       SatelliteState `json:"status"`
	LatencyMs    int            `json:"latency_ms"`
	FailureCount int            `json:"failure_count"`
	SupportsData bool           `json:"supports_data"`
	SupportsExec bool           `json:"supports_exec"`
	LastError    string         `json:"last_error,omitempty"`
}

// SystemStatus aggregates the engine-side health picture. Heartbeat events
// overlay onto it field by field; fields absent from an event are left as
// they were.
type SystemStatus struct {
	Connected  bool                       `json:"connected"`
	LastUpdate time.Time                  `json:"last_update"`
	Heartbeats map[string]time.Time       `json:"heartbeats"`
	CPULoad    *float64                   `json:"cpu_load,omitempty"`
	Satellites map[string]SatelliteStatus `json:"satellites"`
}

// HeartbeatEvent is the payload of a system-heartbeat stream event. All
// fields are optional; only present fields are merged into SystemStatus.
type HeartbeatEvent struct {
	Heartbeats map[string]time.Time       `json:"heartbeats,omitempty"`
	CPULoad    *float64                   `json:"cpu_load,omitempty"`
	Satellites map[string]SatelliteStatus `json:"satellites,omitempty"`
}
