// Package transport owns the push connection to the orchestration
// server: one websocket per session, with heartbeat and fixed-interval
// reconnect. A Session is explicitly constructed and explicitly torn
// down by whichever scope needs live data; there is no module-level
// connection singleton.
package transport

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/errors"
	"github.com/swarmdeck/swarmdeck/internal/logging"
)

// State is the session's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable name for a connection state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Config holds session parameters.
type Config struct {
	// URL is the full push-connection URL, typically from BuildURL.
	URL string
	// HeartbeatInterval is the ping period while connected. Negative
	// disables the heartbeat; line streams have no ping contract.
	HeartbeatInterval time.Duration
	// ReconnectDelay is the fixed interval between an unexpected close
	// and the single scheduled reconnect attempt. Reconnection repeats
	// indefinitely while the session is open; the dashboard is
	// long-lived and there is no retry cap.
	ReconnectDelay time.Duration
	// ReconnectJitter, when positive, adds up to this much random delay
	// to each reconnect to avoid thundering herds.
	ReconnectJitter time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 3 * time.Second
	}
}

// Option customizes a Session.
type Option func(*Session)

// WithDialer injects a Dialer, used by tests.
func WithDialer(d Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

// WithClock injects a Clock, used by tests to drive timers virtually.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// pingFrame is the outbound heartbeat.
type pingFrame struct {
	Type string `json:"type"`
}

// Session owns one push connection. Safe for concurrent use. Messages
// are delivered to OnMessage strictly in arrival order from a single
// read loop.
type Session struct {
	cfg    Config
	dialer Dialer
	clock  Clock
	logger *logging.Logger

	mu        sync.Mutex
	wmu       sync.Mutex // serializes socket writes
	state     State
	conn      Conn
	closed    bool
	gen       int // connection generation; stale read loops detect replacement
	reconnect Timer
	heartbeat Timer
	lastPong  time.Time

	onMessage func([]byte)
	onOpen    func()
	onClose   func(error)
}

// NewSession creates a Session. It does not connect; call Connect.
func NewSession(cfg Config, logger *logging.Logger, opts ...Option) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Session{
		cfg:    cfg,
		dialer: NewDialer(),
		clock:  NewClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnMessage sets the raw inbound frame hook. Set before Connect.
func (s *Session) OnMessage(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessage = fn
}

// OnOpen sets the hook called after each successful connect.
func (s *Session) OnOpen(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = fn
}

// OnClose sets the hook called after each unexpected disconnect. It is
// not called on Close.
func (s *Session) OnClose(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

// Connect establishes the connection. On dial failure it schedules the
// reconnect attempt and returns the error; the session keeps retrying
// on its own until Close.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	url := s.cfg.URL
	s.mu.Unlock()

	conn, err := s.dialer.Dial(url)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return errors.ErrSessionClosed
	}
	if err != nil {
		s.state = StateDisconnected
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		s.logger.Warn("connect failed", "url", url, "error", err)
		return err
	}

	s.conn = conn
	s.state = StateConnected
	s.gen++
	gen := s.gen
	s.scheduleHeartbeatLocked()
	onOpen := s.onOpen
	s.mu.Unlock()

	s.logger.Info("connected", "url", url)
	if onOpen != nil {
		onOpen()
	}
	go s.readLoop(conn, gen)
	return nil
}

// readLoop delivers inbound frames until the connection breaks.
func (s *Session) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.dropConnection(conn, gen, err)
			return
		}
		s.mu.Lock()
		fn := s.onMessage
		s.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

// dropConnection handles an unexpected close: tears the socket down,
// schedules exactly one reconnect, and notifies OnClose.
func (s *Session) dropConnection(conn Conn, gen int, cause error) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.conn != conn {
		s.mu.Unlock()
		return
	}
	conn.Close()
	s.conn = nil
	s.state = StateDisconnected
	s.stopHeartbeatLocked()
	s.scheduleReconnectLocked()
	onClose := s.onClose
	s.mu.Unlock()

	s.logger.Warn("connection lost", "error", cause)
	if onClose != nil {
		onClose(cause)
	}
}

// scheduleReconnectLocked arms the reconnect timer if none is pending.
// Caller holds s.mu.
func (s *Session) scheduleReconnectLocked() {
	if s.closed || s.reconnect != nil {
		return
	}
	delay := s.cfg.ReconnectDelay
	if s.cfg.ReconnectJitter > 0 {
		delay += rand.N(s.cfg.ReconnectJitter)
	}
	s.reconnect = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		s.reconnect = nil
		if s.closed || s.state != StateDisconnected {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		_ = s.Connect()
	})
}

// scheduleHeartbeatLocked arms the heartbeat timer. Caller holds s.mu.
func (s *Session) scheduleHeartbeatLocked() {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	s.heartbeat = s.clock.AfterFunc(s.cfg.HeartbeatInterval, s.heartbeatTick)
}

func (s *Session) heartbeatTick() {
	s.mu.Lock()
	if s.closed || s.state != StateConnected {
		s.heartbeat = nil
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.mu.Unlock()

	s.wmu.Lock()
	err := conn.WriteJSON(pingFrame{Type: "ping"})
	s.wmu.Unlock()
	if err != nil {
		// The read loop observes the broken socket and handles it.
		s.logger.Debug("heartbeat write failed", "error", err)
	}

	s.mu.Lock()
	if !s.closed && s.state == StateConnected {
		s.heartbeat = s.clock.AfterFunc(s.cfg.HeartbeatInterval, s.heartbeatTick)
	} else {
		s.heartbeat = nil
	}
	s.mu.Unlock()
}

// stopHeartbeatLocked cancels the heartbeat timer. Caller holds s.mu.
func (s *Session) stopHeartbeatLocked() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
}

// Send writes a value object to the socket if and only if the session
// is connected; otherwise the value is silently dropped. There is no
// client-side durable queue: this is a presentation layer, not a
// message bus. Reports whether the write was attempted and succeeded.
func (s *Session) Send(v any) bool {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return false
	}
	conn := s.conn
	s.mu.Unlock()

	s.wmu.Lock()
	err := conn.WriteJSON(v)
	s.wmu.Unlock()
	if err != nil {
		s.logger.Debug("send failed", "error", err)
		return false
	}
	return true
}

// NotePong records a heartbeat response, wired from the event router.
func (s *Session) NotePong() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPong = s.clock.Now()
}

// LastPong returns when the most recent heartbeat response arrived.
func (s *Session) LastPong() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPong
}

// Connected reports whether the session currently holds an open
// connection. Purely informational; store correctness never depends on
// this flag.
func (s *Session) Connected() bool {
	return s.State() == StateConnected
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears the session down: it synchronously cancels any pending
// reconnect and heartbeat timers and closes the socket. No timer fires
// after Close returns. The session cannot be reused.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.stopHeartbeatLocked()
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.gen++
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.logger.Info("session closed")
}
