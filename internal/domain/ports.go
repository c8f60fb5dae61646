package domain

import "context"

// EngineAPI is the one-shot request/response surface of the backend. It is
// independent of the stream connection and must keep working while the
// stream is reconnecting.
type EngineAPI interface {
	// TriggerAudit asks the engine to start a full audit run.
	TriggerAudit(ctx context.Context) (bool, error)
	// RepairStage asks the engine to repair a single failed stage. A nil
	// error means the repair passed.
	RepairStage(ctx context.Context, stage string) error
	// TuningHistory fetches up to limit historical tuning records,
	// newest-first.
	TuningHistory(ctx context.Context, limit int) ([]TuningRecord, error)
}

// Mirror republishes received events for sibling local consumers. All
// methods are best-effort; a mirror failure never affects the sync state.
type Mirror interface {
	PublishSignal(ctx context.Context, sig Signal) error
	PublishThought(ctx context.Context, t Thought) error
}

// AuditRunStore persists finished audit sessions.
type AuditRunStore interface {
	Insert(ctx context.Context, run AuditRun) error
	ListRecent(ctx context.Context, limit int) ([]AuditRun, error)
}

// ReportArchiver writes a finished audit session to long-term blob storage
// and returns the object key.
type ReportArchiver interface {
	ArchiveRun(ctx context.Context, run AuditRun) (string, error)
}
