package domain

import "time"

// TuningRecord is one historical strategy-tuning entry fetched from the
// engine's one-shot API. The client never produces these; it only displays
// and relays them.
type TuningRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Strategy  string         `json:"strategy"`
	Params    map[string]any `json:"params,omitempty"`
	Score     float64        `json:"score"`
}
