package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rfenwick/tradedesk/internal/domain"
	"github.com/rfenwick/tradedesk/internal/metrics"
	"github.com/rfenwick/tradedesk/internal/state"
)

// Dispatcher routes decoded envelopes to the store reducers. It is the
// single consumer of the inbound channel, so every reducer runs on one
// goroutine and mutations are sequential.
type Dispatcher struct {
	store  *state.Store
	mirror domain.Mirror // optional, best-effort
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. mirror may be nil.
func NewDispatcher(store *state.Store, mirror domain.Mirror, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		mirror: mirror,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
}

// Run consumes envelopes until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, in <-chan domain.Envelope) error {
	d.logger.Info("dispatch loop started")
	defer d.logger.Info("dispatch loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			d.Dispatch(ctx, env)
		}
	}
}

// Dispatch routes one envelope to exactly one reducer by kind. Unknown kinds
// and malformed payloads are dropped without error; the loop always
// survives.
func (d *Dispatcher) Dispatch(ctx context.Context, env domain.Envelope) {
	switch env.Type {
	case domain.EventRegimeUpdate:
		var upd domain.RegimeUpdate
		if !d.decode(env, &upd) {
			return
		}
		d.store.ApplyRegime(upd)

	case domain.EventSignalNew, domain.EventSignalUpdate:
		var sig domain.Signal
		if !d.decode(env, &sig) {
			return
		}
		d.store.UpsertSignal(sig)
		if d.mirror != nil {
			if err := d.mirror.PublishSignal(ctx, sig); err != nil {
				d.logger.Debug("signal mirror publish failed",
					slog.String("error", err.Error()),
				)
			}
		}

	case domain.EventSystemHeartbeat:
		var hb domain.HeartbeatEvent
		if !d.decode(env, &hb) {
			return
		}
		d.store.ApplyHeartbeat(hb)

	case domain.EventThought:
		var t domain.Thought
		if !d.decode(env, &t) {
			return
		}
		d.store.AppendThought(t)
		if d.mirror != nil {
			if err := d.mirror.PublishThought(ctx, t); err != nil {
				d.logger.Debug("thought mirror publish failed",
					slog.String("error", err.Error()),
				)
			}
		}

	default:
		metrics.EventsTotal.WithLabelValues("unknown").Inc()
		d.logger.Debug("ignoring unknown event kind",
			slog.String("kind", env.Type),
		)
		return
	}

	metrics.EventsTotal.WithLabelValues(env.Type).Inc()
}

// decode unmarshals the payload, logging and counting failures. A malformed
// payload never takes down the loop or the connection.
func (d *Dispatcher) decode(env domain.Envelope, v any) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		metrics.EventsTotal.WithLabelValues("malformed").Inc()
		d.logger.Warn("discarding malformed payload",
			slog.String("kind", env.Type),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
