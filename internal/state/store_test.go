package state

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfenwick/tradedesk/internal/domain"
)

func newTestStore() *Store {
	return New(slog.Default())
}

func TestUpsertSignalIdempotent(t *testing.T) {
	s := newTestStore()

	s.UpsertSignal(domain.Signal{ID: "sig-1", Symbol: "BTC-USD", Status: "NEW", Price: 100})
	s.UpsertSignal(domain.Signal{ID: "sig-1", Symbol: "BTC-USD", Status: "FILLED", Price: 101})

	signals := s.Signals()
	require.Len(t, signals, 1)
	assert.Equal(t, "FILLED", signals[0].Status)
	assert.Equal(t, 101.0, signals[0].Price)
}

func TestUpsertSignalNewestFirst(t *testing.T) {
	s := newTestStore()

	s.UpsertSignal(domain.Signal{ID: "a"})
	s.UpsertSignal(domain.Signal{ID: "b"})
	s.UpsertSignal(domain.Signal{ID: "c"})

	signals := s.Signals()
	require.Len(t, signals, 3)
	assert.Equal(t, "c", signals[0].ID)
	assert.Equal(t, "a", signals[2].ID)
}

func TestSignalCap(t *testing.T) {
	s := newTestStore()

	for i := 0; i < MaxSignals*2; i++ {
		s.UpsertSignal(domain.Signal{ID: fmt.Sprintf("sig-%d", i)})
	}

	signals := s.Signals()
	require.Len(t, signals, MaxSignals)
	// Newest survives, oldest evicted.
	assert.Equal(t, fmt.Sprintf("sig-%d", MaxSignals*2-1), signals[0].ID)
	assert.Equal(t, fmt.Sprintf("sig-%d", MaxSignals), signals[MaxSignals-1].ID)
}

func TestSignalWithoutIDIgnored(t *testing.T) {
	s := newTestStore()
	s.UpsertSignal(domain.Signal{Symbol: "ETH-USD"})
	assert.Empty(t, s.Signals())
}

func TestThoughtCapEvictsOldestFirst(t *testing.T) {
	s := newTestStore()

	for i := 0; i < MaxThoughts+10; i++ {
		s.AppendThought(domain.Thought{ID: fmt.Sprintf("t-%d", i)})
	}

	thoughts := s.Thoughts(0)
	require.Len(t, thoughts, MaxThoughts)
	assert.Equal(t, fmt.Sprintf("t-%d", MaxThoughts+9), thoughts[0].ID)
	// t-0 .. t-9 were evicted, strictly oldest first.
	assert.Equal(t, "t-10", thoughts[MaxThoughts-1].ID)
}

func TestThoughtsLimit(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 20; i++ {
		s.AppendThought(domain.Thought{ID: fmt.Sprintf("t-%d", i)})
	}
	assert.Len(t, s.Thoughts(5), 5)
	assert.Len(t, s.Thoughts(0), 20)
}

func TestHeartbeatOverlayKeepsSatellites(t *testing.T) {
	s := newTestStore()

	s.ApplyHeartbeat(domain.HeartbeatEvent{
		Satellites: map[string]domain.SatelliteStatus{
			"alpaca": {Status: domain.SatelliteOnline, LatencyMs: 12},
		},
	})

	load := 0.42
	s.ApplyHeartbeat(domain.HeartbeatEvent{CPULoad: &load})

	status := s.Status()
	require.NotNil(t, status.CPULoad)
	assert.Equal(t, 0.42, *status.CPULoad)
	require.Contains(t, status.Satellites, "alpaca")
	assert.Equal(t, domain.SatelliteOnline, status.Satellites["alpaca"].Status)
}

func TestHeartbeatMergesModuleEntries(t *testing.T) {
	s := newTestStore()
	now := time.Now()

	s.ApplyHeartbeat(domain.HeartbeatEvent{
		Heartbeats: map[string]time.Time{"risk": now.Add(-time.Minute)},
	})
	s.ApplyHeartbeat(domain.HeartbeatEvent{
		Heartbeats: map[string]time.Time{"exec": now},
	})

	status := s.Status()
	assert.Len(t, status.Heartbeats, 2)
}

func TestRegimeMetricsOverlay(t *testing.T) {
	s := newTestStore()

	s.ApplyRegime(domain.RegimeUpdate{
		Regime:  "trending",
		Metrics: map[string]float64{"volatility": 0.3, "spread": 1.2},
	})
	s.ApplyRegime(domain.RegimeUpdate{
		Regime:  "choppy",
		Metrics: map[string]float64{"volatility": 0.9},
	})

	regime, metrics := s.Regime()
	assert.Equal(t, "choppy", regime)
	assert.Equal(t, 0.9, metrics["volatility"])
	assert.Equal(t, 1.2, metrics["spread"], "unmentioned metrics survive")
}

func TestThoughtObserver(t *testing.T) {
	s := newTestStore()

	var seen []string
	s.OnThought(func(th domain.Thought) {
		seen = append(seen, th.ID)
	})

	s.AppendThought(domain.Thought{ID: "one"})
	s.AppendThought(domain.Thought{ID: "two"})

	assert.Equal(t, []string{"one", "two"}, seen)
}

func TestSetConnected(t *testing.T) {
	s := newTestStore()
	s.SetConnected(true)
	assert.True(t, s.Status().Connected)
	s.SetConnected(false)
	assert.False(t, s.Status().Connected)
}
