// Package channel owns the realtime chat transport: one logical WebSocket
// per conversation, authenticated on open, automatically reconnected with
// exponential back-off after unexpected closure.
//
// The client exposes a minimal send/state/event contract. Payloads pass
// through as opaque bytes in both directions; interpreting frame types is the
// session layer's job.
package channel

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/corpusai/corpus-cli/internal/auth"
	"github.com/corpusai/corpus-cli/internal/wire"
	"github.com/corpusai/corpus-cli/pkg/logger"
)

// State is the lifecycle state of a channel.
type State string

const (
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

const defaultHandshakeTimeout = 10 * time.Second

// Client maintains at most one physical WebSocket for a logical endpoint.
type Client struct {
	creds  auth.Provider
	dialer *websocket.Dialer

	mu             sync.Mutex
	url            string
	state          State
	conn           *websocket.Conn
	policy         ReconnectPolicy
	reconnectTimer *time.Timer
	// gen increments on every Connect/Disconnect so callbacks from a
	// superseded physical connection are ignored.
	gen int64

	// writeMu serializes writers; gorilla permits one concurrent writer.
	writeMu sync.Mutex

	onPayload func([]byte)
	onState   func(State)
}

// Option configures a Client.
type Option func(*Client)

// WithReconnectPolicy overrides the reconnect schedule.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a channel client. No connection is made until Connect.
func NewClient(creds auth.Provider, opts ...Option) *Client {
	c := &Client{
		creds:  creds,
		dialer: &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		state:  StateClosed,
		policy: DefaultReconnectPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnPayload registers the handler for inbound frames. Frames are delivered
// raw; the handler must not block. Register before Connect.
func (c *Client) OnPayload(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPayload = fn
}

// OnStateChange registers a lifecycle callback. Register before Connect.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

// State returns the current channel state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the channel to url and sends the auth frame as the first
// payload. It is a no-op while a channel is already OPEN or CONNECTING.
// With an empty url the previous endpoint is reused (reconnects).
func (c *Client) Connect(url string) error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if url != "" {
		c.url = url
	}
	if c.url == "" {
		c.mu.Unlock()
		return fmt.Errorf("no channel endpoint configured")
	}
	target := c.url
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	logger.Debugf("channel connecting: %s", target)
	conn, _, err := c.dialer.Dial(target, nil)
	if err != nil {
		logger.Warnf("channel dial failed: %v", err)
		c.handleClosed(gen, err)
		return fmt.Errorf("channel dial failed: %w", err)
	}

	token, err := c.creds.Token()
	if err == nil {
		var frame []byte
		frame, err = json.Marshal(wire.AuthFrame{Type: wire.FrameAuth, Token: token})
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, frame)
		}
	}
	if err != nil {
		logger.Warnf("channel auth failed: %v", err)
		_ = conn.Close()
		c.handleClosed(gen, err)
		return fmt.Errorf("channel auth failed: %w", err)
	}

	c.mu.Lock()
	if gen != c.gen {
		// Disconnected while the dial was in flight.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.policy = c.policy.Reset()
	c.state = StateOpen
	c.mu.Unlock()
	c.notifyState(StateOpen)

	go c.readLoop(conn, gen)
	logger.Debugf("channel open: %s", target)
	return nil
}

// Send dispatches a payload over the channel. It is valid only while the
// channel is OPEN; otherwise the payload is dropped with a logged warning and
// Send reports false. Dropped sends are never queued or retried.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		logger.Warnf("channel not open; dropping outbound message")
		return false
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		// Write faults precede the close event; the read loop handles the
		// reconnect uniformly.
		logger.Warnf("channel write failed: %v", err)
		return false
	}
	return true
}

// Disconnect closes the channel and cancels any pending reconnect. This is
// the only path that suppresses automatic reconnection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.gen++
	conn := c.conn
	c.conn = nil
	c.policy = c.policy.Reset()
	c.state = StateClosing
	c.mu.Unlock()
	c.notifyState(StateClosing)

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.notifyState(StateClosed)
}

func (c *Client) readLoop(conn *websocket.Conn, gen int64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}

		c.mu.Lock()
		stale := gen != c.gen
		handler := c.onPayload
		c.mu.Unlock()
		if stale {
			return
		}
		if handler != nil {
			handler(data)
		}
	}
}

// handleClosed processes an unexpected closure (read/dial/auth fault) and
// schedules the next reconnect attempt per the policy.
func (c *Client) handleClosed(gen int64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// A Disconnect or newer Connect already superseded this connection.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed

	var delay time.Duration
	scheduled := false
	if c.policy.Exhausted() {
		logger.Warnf("channel closed (%v); reconnect attempts exhausted after %d", cause, c.policy.Attempt)
	} else {
		delay = c.policy.NextDelay()
		c.policy = c.policy.Advance()
		c.reconnectTimer = time.AfterFunc(delay, func() { _ = c.Connect("") })
		scheduled = true
	}
	c.mu.Unlock()
	c.notifyState(StateClosed)

	if scheduled {
		logger.Infof("channel closed (%v); reconnecting in %s", cause, delay)
	}
}

func (c *Client) notifyState(s State) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
