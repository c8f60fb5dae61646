package domain

import "time"

// AuditModule is the module tag on thoughts that drive the audit state
// machine. Metadata keys below are the fields the audit fold consumes.
const (
	AuditModule = "audit"

	MetaStage   = "stage"
	MetaStatus  = "status"
	MetaError   = "error"
	MetaSuccess = "success"
)

// Audit status values carried in thought metadata.
const (
	ThoughtStatusStarting = "STARTING"
	ThoughtStatusOK       = "OK"
	ThoughtStatusFail     = "FAIL"
	ThoughtStatusFinished = "FINISHED"
)

// Thought is one append-only entry of the engine's reasoning log. The client
// keeps a bounded, newest-first window of these; the audit orchestrator
// additionally interprets audit-module thoughts as stage transitions.
type Thought struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Module    string         `json:"module"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MetaString returns the named metadata field as a string, or "" when the
// field is absent or not a string.
func (t Thought) MetaString(key string) string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaBool returns the named metadata field as a bool. JSON numbers sneak in
// from loosely typed producers, so 1/0 are accepted as well.
func (t Thought) MetaBool(key string) bool {
	if t.Metadata == nil {
		return false
	}
	switch v := t.Metadata[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}
