package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfenwick/tradedesk/internal/domain"
	"github.com/rfenwick/tradedesk/internal/state"
)

type fakeMirror struct {
	mu       sync.Mutex
	signals  []domain.Signal
	thoughts []domain.Thought
}

func (f *fakeMirror) PublishSignal(ctx context.Context, sig domain.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeMirror) PublishThought(ctx context.Context, t domain.Thought) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thoughts = append(f.thoughts, t)
	return nil
}

func envelope(t *testing.T, kind string, payload any) domain.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.Envelope{Type: kind, Payload: raw}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *state.Store, *fakeMirror) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.New(logger)
	mirror := &fakeMirror{}
	return NewDispatcher(store, mirror, logger), store, mirror
}

func TestDispatchRegimeUpdate(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	d.Dispatch(context.Background(), envelope(t, domain.EventRegimeUpdate, domain.RegimeUpdate{
		Regime:  "trending",
		Metrics: map[string]float64{"adx": 31.5},
	}))

	regime, metrics := store.Regime()
	assert.Equal(t, "trending", regime)
	assert.Equal(t, 31.5, metrics["adx"])
}

func TestDispatchSignalKindsBothUpsert(t *testing.T) {
	d, store, mirror := newTestDispatcher(t)

	d.Dispatch(context.Background(), envelope(t, domain.EventSignalNew, domain.Signal{
		ID: "sig-1", Symbol: "BTCUSDT", Status: "PENDING",
	}))
	d.Dispatch(context.Background(), envelope(t, domain.EventSignalUpdate, domain.Signal{
		ID: "sig-1", Symbol: "BTCUSDT", Status: "FILLED",
	}))

	sigs := store.Signals()
	require.Len(t, sigs, 1)
	assert.Equal(t, "FILLED", sigs[0].Status)
	assert.Len(t, mirror.signals, 2, "every signal event is mirrored")
}

func TestDispatchHeartbeat(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	cpu := 0.42
	d.Dispatch(context.Background(), envelope(t, domain.EventSystemHeartbeat, domain.HeartbeatEvent{
		CPULoad: &cpu,
	}))

	status := store.Status()
	require.NotNil(t, status.CPULoad)
	assert.Equal(t, 0.42, *status.CPULoad)
}

func TestDispatchThought(t *testing.T) {
	d, store, mirror := newTestDispatcher(t)

	d.Dispatch(context.Background(), envelope(t, domain.EventThought, domain.Thought{
		ID: "th-1", Module: "scanner", Message: "scanning universe",
	}))

	thoughts := store.Thoughts(0)
	require.Len(t, thoughts, 1)
	assert.Equal(t, "th-1", thoughts[0].ID)
	assert.Len(t, mirror.thoughts, 1)
}

func TestDispatchIgnoresUnknownKind(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	d.Dispatch(context.Background(), envelope(t, "portfolio-rebalance", map[string]any{"weight": 1}))

	assert.Empty(t, store.Signals())
	assert.Empty(t, store.Thoughts(0))
}

func TestDispatchDropsMalformedPayload(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	d.Dispatch(context.Background(), domain.Envelope{
		Type:    domain.EventSignalNew,
		Payload: json.RawMessage(`"not an object"`),
	})

	assert.Empty(t, store.Signals())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan domain.Envelope)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, in) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dispatch loop did not stop")
	}
}

func TestRunStopsOnClosedChannel(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	in := make(chan domain.Envelope, 1)
	in <- envelope(t, domain.EventThought, domain.Thought{ID: "th-last"})
	close(in)

	require.NoError(t, d.Run(context.Background(), in))
	assert.Len(t, store.Thoughts(0), 1, "buffered envelope is drained before exit")
}

func TestNilMirrorIsAllowed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := state.New(logger)
	d := NewDispatcher(store, nil, logger)

	d.Dispatch(context.Background(), envelope(t, domain.EventSignalNew, domain.Signal{ID: "sig-9"}))
	assert.Len(t, store.Signals(), 1)
}
