package live

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nikolepapaioannou-stack/u-schedule-sub001/internal/log"
)

// DefaultReconnectDelay is the pause between a connection failure and the next
// dial attempt.
const DefaultReconnectDelay = 3 * time.Second

// ConnectionState tracks where the channel is in its lifecycle.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handler receives parsed booking events in wire arrival order.
type Handler func(BookingEvent)

// Handle is returned by Open. Closing it permanently shuts the channel down.
type Handle struct {
	c *Channel
}

// Close releases the channel. See Channel.Close.
func (h *Handle) Close() { h.c.Close() }

// Channel maintains one logical live connection to the booking server,
// redialing after failures until closed. At most one handler is current;
// a later Open swaps the handler for future deliveries.
type Channel struct {
	apiOrigin  string
	pageOrigin string
	delay      time.Duration
	dialer     *websocket.Dialer
	log        zerolog.Logger

	mu      sync.Mutex
	state   ConnectionState
	handler Handler
	conn    *websocket.Conn
	retry   *time.Timer
	closed  bool
}

// Option customises a Channel.
type Option func(*Channel)

// WithReconnectDelay overrides the pause between reconnection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.delay = d }
}

// WithLogger replaces the channel's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// NewChannel creates a channel targeting the given API origin. pageOrigin may
// be empty when the serving origin is unknown; see ResolveEndpoint for how the
// two interact.
func NewChannel(apiOrigin, pageOrigin string, opts ...Option) *Channel {
	c := &Channel{
		apiOrigin:  apiOrigin,
		pageOrigin: pageOrigin,
		delay:      DefaultReconnectDelay,
		dialer:     websocket.DefaultDialer,
		log:        log.WithComponent("live"),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open installs h as the current handler and starts connecting if the channel
// is idle. Calling Open again replaces the handler for future deliveries
// without reconnecting. The returned handle's Close shuts the channel down for
// good.
func (c *Channel) Open(h Handler) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &Handle{c: c}
	}
	c.handler = h
	if c.state == StateIdle {
		c.state = StateConnecting
		go c.connect()
	}
	return &Handle{c: c}
}

// State reports the current connection state.
func (c *Channel) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close permanently disables the channel: it cancels any pending reconnect,
// closes the live connection, and suppresses every delivery that has not yet
// reached the handler. Safe to call repeatedly and from inside a handler.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.log.Info().Msg("live channel closed")
}

// connect resolves the endpoint fresh (topology may have changed since the
// last attempt) and dials it. Runs on its own goroutine.
func (c *Channel) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	endpoint, err := ResolveEndpoint(c.apiOrigin, c.pageOrigin)
	if err != nil {
		c.log.Error().Err(err).Msg("live endpoint resolution failed")
		c.mu.Lock()
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	connID := uuid.NewString()
	c.log.Debug().Str("conn_id", connID).Str("endpoint", endpoint).Msg("dialing live channel")

	conn, _, err := c.dialer.Dial(endpoint, nil)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.log.Warn().Str("conn_id", connID).Err(err).
			Dur("retry_in", c.delay).Msg("live channel dial failed")
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.log.Info().Str("conn_id", connID).Str("endpoint", endpoint).Msg("live channel open")
	go c.readLoop(conn, connID)
}

// readLoop reads frames off one connection until it dies. Exactly one loop
// runs per connection, which is what keeps deliveries in arrival order.
func (c *Channel) readLoop(conn *websocket.Conn, connID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			if c.closed {
				c.mu.Unlock()
				return
			}
			c.scheduleReconnectLocked()
			c.mu.Unlock()
			c.log.Warn().Str("conn_id", connID).Err(err).
				Dur("retry_in", c.delay).Msg("live channel dropped")
			return
		}

		ev, perr := ParseEvent(data)
		if perr != nil {
			c.log.Warn().Str("conn_id", connID).Err(perr).Msg("discarding malformed frame")
			continue
		}

		c.mu.Lock()
		// A frame can arrive between Close and the connection actually
		// shutting down; it must not reach the handler.
		if c.closed || c.conn != conn {
			c.mu.Unlock()
			return
		}
		h := c.handler
		c.mu.Unlock()

		if h != nil {
			h(ev)
		}
	}
}

// scheduleReconnectLocked arms the retry timer. Caller holds c.mu. At most one
// timer is pending at a time.
func (c *Channel) scheduleReconnectLocked() {
	if c.closed || c.retry != nil {
		return
	}
	c.state = StateConnecting
	c.retry = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.retry = nil
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.connect()
	})
}
