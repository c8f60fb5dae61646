package domain

import "time"

// Signal is one trading signal pushed by the engine. Identity is the ID;
// subsequent events with the same ID update the existing entry in place.
type Signal struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Score         float64   `json:"score"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	ExecutionMode string    `json:"execution_mode,omitempty"`
	RankingScore  *float64  `json:"ranking_score,omitempty"`
}
