package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// Alerter delivers filtered audit-outcome notifications. Satisfied by
// notify.Notifier; nil disables alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event names emitted on session completion.
const (
	EventAuditPassed = "audit_passed"
	EventAuditFailed = "audit_failed"
)

// Orchestrator manages the audit session lifecycle: at most one open session
// at a time, fed by the thought stream, reset on reopen. History, archive,
// and alerter are optional collaborators exercised when a session finishes.
type Orchestrator struct {
	mu      sync.Mutex
	logger  *slog.Logger
	api     domain.EngineAPI
	cfg     SessionConfig
	history domain.AuditRunStore
	archive domain.ReportArchiver
	alerter Alerter

	session *Session
}

// Deps bundles the orchestrator's optional collaborators.
type Deps struct {
	History domain.AuditRunStore
	Archive domain.ReportArchiver
	Alerter Alerter
}

// NewOrchestrator creates an Orchestrator with no open session.
func NewOrchestrator(api domain.EngineAPI, cfg SessionConfig, deps Deps, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		logger:  logger.With(slog.String("component", "audit_orchestrator")),
		api:     api,
		cfg:     cfg,
		history: deps.History,
		archive: deps.Archive,
		alerter: deps.Alerter,
	}
}

// HandleThought forwards a thought to the open session, if any. Wire this to
// the state store's thought observer.
func (o *Orchestrator) HandleThought(t domain.Thought) {
	o.mu.Lock()
	sess := o.session
	o.mu.Unlock()

	if sess != nil {
		sess.Apply(t)
	}
}

// StartRun opens a fresh session (discarding any previous one, which resets
// all stages to PENDING) and asks the engine to begin a full audit. Old
// thought entries are never replayed into the new session.
func (o *Orchestrator) StartRun(ctx context.Context) (*Session, error) {
	o.mu.Lock()
	if o.session != nil {
		o.session.Close()
	}
	sess := NewSession(o.api, o.cfg, o.logger)
	sess.onFinish = o.finishRun
	sess.onClose = func(bool) { o.clear(sess) }
	o.session = sess
	o.mu.Unlock()

	if err := sess.Trigger(ctx); err != nil {
		sess.Close()
		o.clear(sess)
		return nil, err
	}
	return sess, nil
}

// Session returns the open session, or nil.
func (o *Orchestrator) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Repair forwards a single-stage repair to the open session.
func (o *Orchestrator) Repair(ctx context.Context, stage string) error {
	o.mu.Lock()
	sess := o.session
	o.mu.Unlock()

	if sess == nil {
		return domain.ErrSessionClosed
	}
	return sess.Repair(ctx, stage)
}

// Dismiss closes the open session, if any.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	sess := o.session
	o.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}

// Dispose tears the orchestrator down with its owning context.
func (o *Orchestrator) Dispose() {
	o.Dismiss()
}

// clear drops the session pointer once that exact session closed.
func (o *Orchestrator) clear(sess *Session) {
	o.mu.Lock()
	if o.session == sess {
		o.session = nil
	}
	o.mu.Unlock()
}

// finishRun runs the completion side effects for a finished session:
// history insert, report archival, and outcome notification. Each is
// best-effort and independent.
func (o *Orchestrator) finishRun(run domain.AuditRun) {
	ctx := context.Background()

	if o.history != nil {
		if err := o.history.Insert(ctx, run); err != nil {
			o.logger.Error("persist audit run failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if o.archive != nil {
		key, err := o.archive.ArchiveRun(ctx, run)
		if err != nil {
			o.logger.Error("archive audit run failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		} else {
			o.logger.Info("audit report archived",
				slog.String("run_id", run.ID),
				slog.String("key", key),
			)
		}
	}

	if o.alerter != nil {
		event := EventAuditPassed
		title := "Audit passed"
		if !run.Success {
			event = EventAuditFailed
			title = "Audit failed"
		}
		msg := fmt.Sprintf("run %s finished with %d stages", run.ID, len(run.Stages))
		if err := o.alerter.Notify(ctx, event, title, msg); err != nil {
			o.logger.Warn("audit notification failed",
				slog.String("error", err.Error()),
			)
		}
	}
}
