// Package state holds the client's latest known view of the engine: regime,
// metrics, the signal list, system health, and the thought log. Reducers are
// only ever invoked from the single dispatch loop, so writes are sequential;
// the RWMutex exists for concurrent readers (HTTP handlers, metrics).
package state

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rfenwick/tradedesk/internal/domain"
)

const (
	// MaxSignals caps the signal list. Insertion is newest-first; the
	// oldest entry falls off when a new id arrives at capacity.
	MaxSignals = 50

	// MaxThoughts caps the thought ring buffer. Eviction is strictly FIFO
	// by arrival.
	MaxThoughts = 100
)

// ThoughtFunc observes every thought appended to the store. Observers run
// synchronously on the dispatch loop, after the store mutation.
type ThoughtFunc func(domain.Thought)

// Store is the domain state store. Construct with New; one instance per
// session, disposed with its owning context.
type Store struct {
	mu     sync.RWMutex
	logger *slog.Logger

	regime  string
	metrics map[string]float64

	signals  []domain.Signal // newest-first
	status   domain.SystemStatus
	thoughts []domain.Thought // newest-first ring

	thoughtSubs []ThoughtFunc
}

// New creates an empty Store.
func New(logger *slog.Logger) *Store {
	return &Store{
		logger:  logger.With(slog.String("component", "state")),
		metrics: make(map[string]float64),
		status: domain.SystemStatus{
			Heartbeats: make(map[string]time.Time),
			Satellites: make(map[string]domain.SatelliteStatus),
		},
	}
}

// OnThought registers an observer for appended thoughts. Registration is not
// safe concurrently with dispatch; wire observers before the loop starts.
func (s *Store) OnThought(fn ThoughtFunc) {
	s.mu.Lock()
	s.thoughtSubs = append(s.thoughtSubs, fn)
	s.mu.Unlock()
}

// SetConnected records the stream connection state.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	s.status.Connected = connected
	s.status.LastUpdate = time.Now()
	s.mu.Unlock()
}

// ApplyRegime replaces the current regime and overlays any accompanying
// metrics onto the existing metric set.
func (s *Store) ApplyRegime(upd domain.RegimeUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upd.Regime != "" {
		s.regime = upd.Regime
	}
	for k, v := range upd.Metrics {
		s.metrics[k] = v
	}
	s.status.LastUpdate = time.Now()
}

// UpsertSignal inserts or updates a signal by id. New ids are prepended;
// existing ids are updated in place, keeping their position. The list never
// exceeds MaxSignals.
func (s *Store) UpsertSignal(sig domain.Signal) {
	if sig.ID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.signals {
		if s.signals[i].ID == sig.ID {
			s.signals[i] = sig
			s.status.LastUpdate = time.Now()
			return
		}
	}

	s.signals = append([]domain.Signal{sig}, s.signals...)
	if len(s.signals) > MaxSignals {
		s.signals = s.signals[:MaxSignals]
	}
	s.status.LastUpdate = time.Now()
}

// ApplyHeartbeat overlays a heartbeat event onto the system status. Fields
// absent from the event are left untouched; heartbeat and satellite maps are
// merged entry by entry, never replaced.
func (s *Store) ApplyHeartbeat(hb domain.HeartbeatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for module, seen := range hb.Heartbeats {
		s.status.Heartbeats[module] = seen
	}
	if hb.CPULoad != nil {
		v := *hb.CPULoad
		s.status.CPULoad = &v
	}
	for id, sat := range hb.Satellites {
		s.status.Satellites[id] = sat
	}
	s.status.LastUpdate = time.Now()
}

// AppendThought appends to the head of the thought ring, evicting the oldest
// entry beyond MaxThoughts, then notifies observers.
func (s *Store) AppendThought(t domain.Thought) {
	s.mu.Lock()
	s.thoughts = append([]domain.Thought{t}, s.thoughts...)
	if len(s.thoughts) > MaxThoughts {
		s.thoughts = s.thoughts[:MaxThoughts]
	}
	s.status.LastUpdate = time.Now()
	subs := s.thoughtSubs
	s.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// Regime returns the current regime and a copy of the metric set.
func (s *Store) Regime() (string, map[string]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make(map[string]float64, len(s.metrics))
	for k, v := range s.metrics {
		metrics[k] = v
	}
	return s.regime, metrics
}

// Signals returns a copy of the signal list, newest-first.
func (s *Store) Signals() []domain.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Thoughts returns up to limit thoughts, newest-first. limit <= 0 returns
// the full window.
func (s *Store) Thoughts(limit int) []domain.Thought {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.thoughts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Thought, n)
	copy(out, s.thoughts[:n])
	return out
}

// Status returns a deep copy of the system status.
func (s *Store) Status() domain.SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := domain.SystemStatus{
		Connected:  s.status.Connected,
		LastUpdate: s.status.LastUpdate,
		Heartbeats: make(map[string]time.Time, len(s.status.Heartbeats)),
		Satellites: make(map[string]domain.SatelliteStatus, len(s.status.Satellites)),
	}
	if s.status.CPULoad != nil {
		v := *s.status.CPULoad
		out.CPULoad = &v
	}
	for k, v := range s.status.Heartbeats {
		out.Heartbeats[k] = v
	}
	for k, v := range s.status.Satellites {
		out.Satellites[k] = v
	}
	return out
}
