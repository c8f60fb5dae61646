package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfenwick/tradedesk/internal/domain"
	"github.com/rfenwick/tradedesk/internal/metrics"
)

const (
	// DefaultAutoCloseSeconds is the countdown armed on a successful
	// finish. Failed sessions never auto-close; they wait for an
	// explicit dismissal.
	DefaultAutoCloseSeconds = 20

	defaultTickInterval = time.Second
)

// SessionConfig tunes one audit session. Zero values take the defaults.
type SessionConfig struct {
	Stages           []string
	AutoCloseSeconds int
	TickInterval     time.Duration
}

// View is a read-only snapshot of a session for rendering collaborators.
type View struct {
	ID                        string              `json:"id"`
	StartedAt                 time.Time           `json:"started_at"`
	Stages                    []domain.AuditStage `json:"stages"`
	Finished                  bool                `json:"finished"`
	Success                   bool                `json:"success"`
	Progress                  float64             `json:"progress"`
	AutoCloseSecondsRemaining *int                `json:"auto_close_seconds_remaining,omitempty"`
}

// Session is one audit run, from open to finished/dismissed. All stage state
// is derived by folding audit-module thoughts through Apply; the only other
// mutation path is the optimistic repair transition.
type Session struct {
	mu     sync.Mutex
	logger *slog.Logger
	api    domain.EngineAPI

	id        string
	startedAt time.Time
	stages    []*domain.AuditStage
	index     map[string]*domain.AuditStage

	finished bool
	success  bool
	closed   bool

	remaining    *int
	tickStop     chan struct{}
	tickInterval time.Duration
	autoCloseSec int

	onFinish func(domain.AuditRun)
	onClose  func(auto bool)
}

// NewSession creates a session with all stages PENDING.
func NewSession(api domain.EngineAPI, cfg SessionConfig, logger *slog.Logger) *Session {
	names := cfg.Stages
	if len(names) == 0 {
		names = DefaultStages()
	}
	autoClose := cfg.AutoCloseSeconds
	if autoClose <= 0 {
		autoClose = DefaultAutoCloseSeconds
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	s := &Session{
		logger:       logger.With(slog.String("component", "audit")),
		api:          api,
		id:           uuid.NewString(),
		startedAt:    time.Now(),
		index:        make(map[string]*domain.AuditStage, len(names)),
		tickInterval: tick,
		autoCloseSec: autoClose,
	}
	for _, name := range names {
		st := &domain.AuditStage{Name: name, Status: domain.StagePending}
		s.stages = append(s.stages, st)
		s.index[name] = st
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Trigger asks the engine to start a full audit run for this session.
func (s *Session) Trigger(ctx context.Context) error {
	ok, err := s.api.TriggerAudit(ctx)
	if err != nil {
		return fmt.Errorf("audit: trigger: %w", err)
	}
	if !ok {
		return fmt.Errorf("audit: trigger: engine refused")
	}
	return nil
}

// Apply folds one thought into the session. Non-audit thoughts and unknown
// stage identifiers are ignored. A stage already terminal never reverts to
// PENDING or RUNNING mid-run; duplicate FINISHED entries do not re-trigger
// completion side effects.
func (s *Session) Apply(t domain.Thought) {
	if t.Module != domain.AuditModule {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	status := t.MetaString(domain.MetaStatus)
	if status == domain.ThoughtStatusFinished {
		s.finishLocked(t.MetaBool(domain.MetaSuccess))
		return
	}

	name := t.MetaString(domain.MetaStage)
	st, ok := s.index[name]
	if !ok {
		if name != "" {
			s.logger.Debug("ignoring unknown stage", slog.String("stage", name))
		}
		return
	}

	switch status {
	case domain.ThoughtStatusStarting:
		if !st.Status.Done() {
			st.Status = domain.StageRunning
		}
	case domain.ThoughtStatusOK:
		if st.Status != domain.StageOK {
			metrics.AuditStagesTotal.WithLabelValues("ok").Inc()
		}
		st.Status = domain.StageOK
		st.Error = ""
	case domain.ThoughtStatusFail:
		if st.Status != domain.StageFail {
			metrics.AuditStagesTotal.WithLabelValues("fail").Inc()
		}
		st.Status = domain.StageFail
		st.Error = t.MetaString(domain.MetaError)
	}
}

// Repair triggers the engine's single-stage repair. Only a FAIL stage can be
// repaired, and a second call while one is in flight is a no-op. On success
// the stage moves directly to OK without waiting for a corroborating
// thought; on failure it stays FAIL.
func (s *Session) Repair(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	st, ok := s.index[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("audit: repair %s: %w", name, domain.ErrUnknownStage)
	}
	if st.Status != domain.StageFail {
		s.mu.Unlock()
		return fmt.Errorf("audit: repair %s: %w", name, domain.ErrStageNotFailed)
	}
	if st.Repairing {
		s.mu.Unlock()
		return domain.ErrRepairInFlight
	}
	st.Repairing = true
	s.mu.Unlock()

	err := s.api.RepairStage(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been dismissed while the call was in flight;
	// its stage set no longer outlives it, so leave everything alone.
	if s.closed {
		return err
	}

	st.Repairing = false
	if err != nil {
		metrics.RepairsTotal.WithLabelValues("fail").Inc()
		s.logger.Warn("stage repair failed",
			slog.String("stage", name),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("audit: repair %s: %w", name, err)
	}

	st.Status = domain.StageOK
	st.Error = ""
	metrics.RepairsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("stage repaired", slog.String("stage", name))
	return nil
}

// Progress returns completed/total, where completed counts OK and FAIL
// stages. Purely derived, never stored.
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Session) progressLocked() float64 {
	if len(s.stages) == 0 {
		return 0
	}
	done := 0
	for _, st := range s.stages {
		if st.Status.Done() {
			done++
		}
	}
	return float64(done) / float64(len(s.stages))
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:        s.id,
		StartedAt: s.startedAt,
		Finished:  s.finished,
		Success:   s.success,
		Progress:  s.progressLocked(),
	}
	for _, st := range s.stages {
		v.Stages = append(v.Stages, *st)
	}
	if s.remaining != nil {
		r := *s.remaining
		v.AutoCloseSecondsRemaining = &r
	}
	return v
}

// Closed reports whether the session has been dismissed or auto-closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close dismisses the session and stops the auto-close countdown. Safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeLocked(false)
	s.mu.Unlock()
}

// finishLocked records completion exactly once. The countdown is armed only
// on success; a failed session persists until explicitly dismissed.
func (s *Session) finishLocked(success bool) {
	if s.finished {
		return
	}
	s.finished = true
	s.success = success
	s.logger.Info("audit finished",
		slog.Bool("success", success),
		slog.Float64("progress", s.progressLocked()),
	)

	if s.onFinish != nil {
		run := s.runLocked()
		go s.onFinish(run)
	}

	if success {
		s.armCountdownLocked()
	}
}

// runLocked builds the persistable record of this session. Caller must hold
// s.mu.
func (s *Session) runLocked() domain.AuditRun {
	run := domain.AuditRun{
		ID:         s.id,
		StartedAt:  s.startedAt,
		FinishedAt: time.Now(),
		Success:    s.success,
	}
	for _, st := range s.stages {
		run.Stages = append(run.Stages, *st)
	}
	return run
}

// armCountdownLocked starts the auto-close ticker. At most one ticker ever
// runs; duplicate FINISHED entries land on the finished guard before
// reaching this. Caller must hold s.mu.
func (s *Session) armCountdownLocked() {
	if s.remaining != nil {
		return
	}
	r := s.autoCloseSec
	s.remaining = &r
	s.tickStop = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.closed || s.remaining == nil {
					s.mu.Unlock()
					return
				}
				*s.remaining--
				if *s.remaining <= 0 {
					s.closeLocked(true)
					s.mu.Unlock()
					return
				}
				s.mu.Unlock()
			}
		}
	}(s.tickStop)
}

// closeLocked marks the session closed and releases the ticker. Caller must
// hold s.mu.
func (s *Session) closeLocked(auto bool) {
	if s.closed {
		return
	}
	s.closed = true
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	s.remaining = nil
	if s.onClose != nil {
		go s.onClose(auto)
	}
	s.logger.Info("audit session closed", slog.Bool("auto", auto))
}
