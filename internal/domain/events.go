package domain

import "encoding/json"

// Stream event kinds. Anything else on the wire is ignored.
const (
	EventRegimeUpdate    = "regime-update"
	EventSignalNew       = "signal-new"
	EventSignalUpdate    = "signal-update"
	EventSystemHeartbeat = "system-heartbeat"
	EventThought         = "thought"
)

// Envelope is the outer frame of every stream message. The payload stays
// raw until a reducer decodes it for a known kind.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Command is a fire-and-forget instruction sent to the engine over the
// stream. No reply is correlated to it.
type Command struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// RegimeUpdate is the payload of a regime-update event. An empty Regime
// leaves the current label in place; Metrics are overlaid key by key.
type RegimeUpdate struct {
	Regime  string             `json:"regime"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}
