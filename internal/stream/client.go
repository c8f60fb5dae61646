// Package stream owns the persistent connection to the engine's event
// stream: dialing, keep-alive, the fixed-delay reconnect policy, outbound
// command framing, and the bounded inbound channel consumed by the
// dispatcher.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfenwick/tradedesk/internal/domain"
	"github.com/rfenwick/tradedesk/internal/metrics"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultReconnectDelay is the fixed interval between reconnect
	// attempts. There is deliberately no backoff and no retry ceiling;
	// the engine is expected to come back, and the worst case is staying
	// disconnected until it does.
	DefaultReconnectDelay = 5 * time.Second

	// defaultInboundBuffer bounds the envelope channel. When full, the
	// read loop blocks, which is the backpressure mechanism.
	defaultInboundBuffer = 256
)

// ConnState is the lifecycle state of the stream connection.
type ConnState string

const (
	StateConnecting         ConnState = "CONNECTING"
	StateOpen               ConnState = "OPEN"
	StateClosed             ConnState = "CLOSED"
	StateReconnectScheduled ConnState = "RECONNECT_SCHEDULED"
)

// Config holds the stream client configuration.
type Config struct {
	// URL is the websocket endpoint, e.g. "wss://engine.example.com/stream".
	URL string

	// Token is the bearer token attached to the dial target as a query
	// parameter. Connect refuses to dial without one.
	Token string

	// ReconnectDelay overrides the fixed reconnect interval. Zero means
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// InboundBuffer overrides the inbound channel capacity.
	InboundBuffer int

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
}

// ConnFunc observes connection state flips (true on open, false on close).
type ConnFunc func(connected bool)

// Client is the connection manager. One instance per session; the websocket
// connection itself is recreated, never mutated, on each attempt.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     ConnState
	conn      *websocket.Conn
	gen       int // connection generation, guards stale loop callbacks
	lastOpen  time.Time
	reconnect *time.Timer // at most one pending
	closed    bool

	connSubs []ConnFunc
	inbound  chan domain.Envelope
	done     chan struct{}
}

// NewClient creates a stream client. Connect must be called to dial.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = defaultInboundBuffer
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "stream")),
		state:   StateClosed,
		inbound: make(chan domain.Envelope, cfg.InboundBuffer),
		done:    make(chan struct{}),
	}
}

// OnConnectionChange registers an observer for open/close flips. Wire
// observers before Connect.
func (c *Client) OnConnectionChange(fn ConnFunc) {
	c.mu.Lock()
	c.connSubs = append(c.connSubs, fn)
	c.mu.Unlock()
}

// Inbound returns the bounded channel of decoded envelopes.
func (c *Client) Inbound() <-chan domain.Envelope {
	return c.inbound
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOpen returns the timestamp of the most recent successful open.
func (c *Client) LastOpen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOpen
}

// Connect dials the stream endpoint. It is a no-op when a connection is
// already open or in progress, and refuses to dial without a token. On dial
// failure a reconnect is scheduled and the error is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("stream: connect: %w", domain.ErrStreamClosed)
	}
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.cfg.Token == "" {
		c.mu.Unlock()
		return fmt.Errorf("stream: connect: %w", domain.ErrMissingToken)
	}

	c.state = StateConnecting
	target, err := c.dialTarget()
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		return fmt.Errorf("stream: connect: %w", err)
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("stream: connect: %w", domain.ErrStreamClosed)
	}
	if err != nil {
		c.state = StateClosed
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.logger.Warn("dial failed, reconnect scheduled",
			slog.String("error", err.Error()),
			slog.Duration("delay", c.cfg.ReconnectDelay),
		)
		return fmt.Errorf("stream: dial: %w", err)
	}

	c.conn = conn
	c.gen++
	gen := c.gen
	c.state = StateOpen
	c.lastOpen = time.Now()
	subs := c.connSubs
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readLoop(conn, gen)
	go c.pingLoop(conn, gen)

	metrics.StreamConnected.Set(1)
	for _, fn := range subs {
		fn(true)
	}
	c.logger.Info("stream connected")
	return nil
}

// Send serializes a fire-and-forget command onto the open connection.
// Commands are silently dropped, never queued, while the connection is not
// open.
func (c *Client) Send(cmd domain.Command) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		metrics.CommandsDroppedTotal.Inc()
		c.logger.Debug("command dropped while disconnected",
			slog.String("action", cmd.Action),
		)
		return nil
	}
	conn := c.conn
	gen := c.gen
	c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("stream: marshal command: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.handleDisconnect(gen, err)
		return fmt.Errorf("stream: write command: %w", err)
	}
	return nil
}

// Close tears the client down: the connection is released, the pending
// reconnect timer (if any) is cancelled, and no further dial is attempted.
// Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	conn := c.conn
	c.conn = nil
	subs := c.connSubs
	c.mu.Unlock()

	close(c.done)
	metrics.StreamConnected.Set(0)
	for _, fn := range subs {
		fn(false)
	}

	if conn != nil {
		_ = conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

// dialTarget builds the websocket URL with the bearer token as a query
// parameter. Caller must hold c.mu.
func (c *Client) dialTarget() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readLoop reads messages for one connection generation, decodes the outer
// envelope, and feeds the inbound channel. A decode failure is logged and
// the message discarded; the connection stays up.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			metrics.EventsTotal.WithLabelValues("malformed").Inc()
			c.logger.Warn("discarding malformed message",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(raw)),
			)
			continue
		}

		select {
		case c.inbound <- env:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic pings for one connection generation.
func (c *Client) pingLoop(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := c.gen != gen || c.state != StateOpen
			c.mu.Unlock()
			if stale {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleDisconnect reacts to a local error or remote close on the given
// connection generation: state goes CLOSED, observers are notified, and a
// single reconnect is scheduled after the fixed delay.
func (c *Client) handleDisconnect(gen int, cause error) {
	c.mu.Lock()
	if c.closed || c.gen != gen || c.state != StateOpen {
		c.mu.Unlock()
		return
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	c.scheduleReconnectLocked()
	subs := c.connSubs
	c.mu.Unlock()

	metrics.StreamConnected.Set(0)
	for _, fn := range subs {
		fn(false)
	}
	c.logger.Warn("stream disconnected, reconnect scheduled",
		slog.String("error", cause.Error()),
		slog.Duration("delay", c.cfg.ReconnectDelay),
	)
}

// scheduleReconnectLocked arms the reconnect timer unless one is already
// pending or the client is closed. Caller must hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.reconnect != nil {
		return
	}

	c.state = StateReconnectScheduled
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = StateClosed
		c.mu.Unlock()

		metrics.ReconnectsTotal.Inc()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			c.logger.Debug("reconnect attempt failed",
				slog.String("error", err.Error()),
			)
		}
	})
}
