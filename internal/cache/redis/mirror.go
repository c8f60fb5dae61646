package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// Channel and stream names for mirrored events.
const (
	signalChannel = "desk:signals"
	thoughtStream = "desk:thoughts"

	// streamMaxLen trims the thought stream with XADD MAXLEN ~.
	streamMaxLen int64 = 10000
)

// Mirror implements domain.Mirror on Redis: signals go out over Pub/Sub for
// ephemeral fan-out, thoughts are appended to a capped Stream so late
// joiners can catch up on recent reasoning.
type Mirror struct {
	rdb *redis.Client
}

// NewMirror creates a Mirror backed by the given Client.
func NewMirror(c *Client) *Mirror {
	return &Mirror{rdb: c.Underlying()}
}

// PublishSignal publishes the signal as JSON on the signals channel.
func (m *Mirror) PublishSignal(ctx context.Context, sig domain.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}
	if err := m.rdb.Publish(ctx, signalChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", signalChannel, err)
	}
	return nil
}

// PublishThought appends the thought to the capped thought stream.
func (m *Mirror) PublishThought(ctx context.Context, t domain.Thought) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: marshal thought: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: thoughtStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := m.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", thoughtStream, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Mirror = (*Mirror)(nil)
