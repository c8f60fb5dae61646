package audit

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfenwick/tradedesk/internal/domain"
)

type fakeHistory struct {
	mu   sync.Mutex
	runs []domain.AuditRun
}

func (f *fakeHistory) Insert(ctx context.Context, run domain.AuditRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeHistory) ListRecent(ctx context.Context, limit int) ([]domain.AuditRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs, nil
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func newTestOrchestrator(api domain.EngineAPI, deps Deps) *Orchestrator {
	cfg := SessionConfig{
		Stages:       []string{"alpha", "beta"},
		TickInterval: time.Hour,
	}
	return NewOrchestrator(api, cfg, deps, slog.Default())
}

func TestStartRunOpensFreshSession(t *testing.T) {
	o := newTestOrchestrator(&fakeAPI{triggerOK: true}, Deps{})

	first, err := o.StartRun(context.Background())
	require.NoError(t, err)
	first.Apply(auditThought("alpha", domain.ThoughtStatusOK, ""))

	second, err := o.StartRun(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.True(t, first.Closed(), "reopening dismisses the previous run")

	// The new run starts from PENDING; nothing from the old run replays.
	assert.Equal(t, domain.StagePending, second.Snapshot().Stages[0].Status)
}

func TestStartRunFailsWhenEngineRefuses(t *testing.T) {
	o := newTestOrchestrator(&fakeAPI{triggerOK: false}, Deps{})

	_, err := o.StartRun(context.Background())
	require.Error(t, err)
	assert.Nil(t, o.Session())
}

func TestHandleThoughtForwardsToOpenSession(t *testing.T) {
	o := newTestOrchestrator(&fakeAPI{triggerOK: true}, Deps{})

	// No session open: must not panic.
	o.HandleThought(auditThought("alpha", domain.ThoughtStatusOK, ""))

	sess, err := o.StartRun(context.Background())
	require.NoError(t, err)

	o.HandleThought(auditThought("alpha", domain.ThoughtStatusFail, "x"))
	assert.Equal(t, domain.StageFail, sess.Snapshot().Stages[0].Status)
}

func TestDismissClearsSession(t *testing.T) {
	o := newTestOrchestrator(&fakeAPI{triggerOK: true}, Deps{})

	_, err := o.StartRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, o.Session())

	o.Dismiss()
	require.Eventually(t, func() bool { return o.Session() == nil }, time.Second, 5*time.Millisecond)
}

func TestFinishedRunIsPersisted(t *testing.T) {
	history := &fakeHistory{}
	o := newTestOrchestrator(&fakeAPI{triggerOK: true}, Deps{History: history})

	_, err := o.StartRun(context.Background())
	require.NoError(t, err)

	o.HandleThought(auditThought("alpha", domain.ThoughtStatusOK, ""))
	o.HandleThought(auditThought("beta", domain.ThoughtStatusOK, ""))
	o.HandleThought(finishedThought(true))

	require.Eventually(t, func() bool { return history.count() == 1 }, time.Second, 5*time.Millisecond)

	runs, err := history.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, runs[0].Success)
	assert.Len(t, runs[0].Stages, 2)
}

func TestRepairWithoutSession(t *testing.T) {
	o := newTestOrchestrator(&fakeAPI{}, Deps{})
	err := o.Repair(context.Background(), "alpha")
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
}
