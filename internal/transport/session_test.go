package transport

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Virtual clock
// -----------------------------------------------------------------------------

type virtualTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func (t *virtualTimer) Stop() bool {
	t.stopped = true
	return !t.fired
}

// virtualClock drives AfterFunc timers manually so reconnect and
// heartbeat behavior is tested without real sleeps.
type virtualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*virtualTimer
}

func newVirtualClock() *virtualClock {
	return &virtualClock{now: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *virtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *virtualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &virtualTimer{deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
func (c *virtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*virtualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *virtualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------------------------
// Fake connection and dialer
// -----------------------------------------------------------------------------

type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection reset")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w)
	}
	return out
}

type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	failNext int
	dials    int
}

func (d *fakeDialer) Dial(rawURL string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// -----------------------------------------------------------------------------
// Test helpers
// -----------------------------------------------------------------------------

func newTestSession(t *testing.T) (*Session, *fakeDialer, *virtualClock) {
	t.Helper()
	dialer := &fakeDialer{}
	clock := newVirtualClock()
	session := NewSession(Config{
		URL:               "ws://localhost/ws",
		HeartbeatInterval: 30 * time.Second,
		ReconnectDelay:    3 * time.Second,
	}, nil, WithDialer(dialer), WithClock(clock))
	t.Cleanup(session.Close)
	return session, dialer, clock
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestSession_Connect(t *testing.T) {
	session, dialer, _ := newTestSession(t)

	opened := false
	session.OnOpen(func() { opened = true })

	if err := session.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !opened {
		t.Error("OnOpen should be called after connect")
	}
	if !session.Connected() {
		t.Error("Session should report connected")
	}
	if dialer.dialCount() != 1 {
		t.Errorf("Expected 1 dial, got %d", dialer.dialCount())
	}
}

func TestSession_ConnectIdempotentWhileConnected(t *testing.T) {
	session, dialer, _ := newTestSession(t)

	session.Connect()
	if err := session.Connect(); err != nil {
		t.Fatalf("Second Connect should be a no-op, got %v", err)
	}
	if dialer.dialCount() != 1 {
		t.Errorf("Expected 1 dial, got %d", dialer.dialCount())
	}
}

func TestSession_MessagesDeliveredInOrder(t *testing.T) {
	session, dialer, _ := newTestSession(t)

	var mu sync.Mutex
	var received []string
	session.OnMessage(func(data []byte) {
		mu.Lock()
		received = append(received, string(data))
		mu.Unlock()
	})

	session.Connect()
	conn := dialer.lastConn()
	conn.inbound <- []byte("one")
	conn.inbound <- []byte("two")
	conn.inbound <- []byte("three")

	waitFor(t, "3 messages", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	})

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []string{"one", "two", "three"} {
		if received[i] != want {
			t.Errorf("Message %d: expected %q, got %q", i, want, received[i])
		}
	}
}

func TestSession_SendWhileConnected(t *testing.T) {
	session, dialer, _ := newTestSession(t)
	session.Connect()

	if !session.Send(map[string]string{"type": "subscribe"}) {
		t.Fatal("Send should succeed while connected")
	}

	frames := dialer.lastConn().sentFrames()
	if len(frames) != 1 || frames[0] != `{"type":"subscribe"}` {
		t.Errorf("Unexpected frames: %v", frames)
	}
}

func TestSession_SendWhileDisconnectedDropped(t *testing.T) {
	session, _, _ := newTestSession(t)

	if session.Send(map[string]string{"type": "subscribe"}) {
		t.Error("Send before connect should be dropped")
	}
}

func TestSession_ReconnectAfterDrop(t *testing.T) {
	session, dialer, clock := newTestSession(t)

	closedCh := make(chan error, 1)
	session.OnClose(func(err error) { closedCh <- err })

	session.Connect()
	dialer.lastConn().Close()

	select {
	case err := <-closedCh:
		if err == nil {
			t.Error("OnClose should carry the close cause")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called after drop")
	}

	if session.Connected() {
		t.Error("Session should report disconnected after drop")
	}
	// Heartbeat timer was stopped; only the reconnect timer remains.
	if got := clock.pending(); got != 1 {
		t.Fatalf("Expected exactly 1 pending timer after drop, got %d", got)
	}

	clock.Advance(3 * time.Second)

	waitFor(t, "reconnect", session.Connected)
	if dialer.dialCount() != 2 {
		t.Errorf("Expected 2 dials, got %d", dialer.dialCount())
	}
}

func TestSession_NoEarlyReconnect(t *testing.T) {
	session, dialer, clock := newTestSession(t)
	session.Connect()
	dialer.lastConn().Close()

	waitFor(t, "disconnect", func() bool { return !session.Connected() })

	clock.Advance(time.Second)
	if dialer.dialCount() != 1 {
		t.Errorf("Reconnect should not fire before the delay, got %d dials", dialer.dialCount())
	}
}

func TestSession_DialFailureKeepsRetrying(t *testing.T) {
	session, dialer, clock := newTestSession(t)
	dialer.failNext = 3

	if err := session.Connect(); err == nil {
		t.Fatal("Connect should surface the dial error")
	}

	// Unbounded fixed-interval retry: each failure schedules the next.
	clock.Advance(3 * time.Second)
	clock.Advance(3 * time.Second)
	if dialer.dialCount() != 3 {
		t.Fatalf("Expected 3 dials after 2 retries, got %d", dialer.dialCount())
	}

	clock.Advance(3 * time.Second)
	waitFor(t, "eventual connect", session.Connected)
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	session, dialer, clock := newTestSession(t)
	session.Connect()
	dialer.lastConn().Close()

	waitFor(t, "pending reconnect", func() bool { return clock.pending() == 1 })

	session.Close()

	if clock.pending() != 0 {
		t.Fatal("Close should cancel the pending reconnect timer")
	}
	clock.Advance(time.Minute)
	if dialer.dialCount() != 1 {
		t.Errorf("No reconnect should fire after Close, got %d dials", dialer.dialCount())
	}
}

func TestSession_ConnectAfterCloseRejected(t *testing.T) {
	session, _, _ := newTestSession(t)
	session.Close()

	if err := session.Connect(); err == nil {
		t.Error("Connect after Close should fail")
	}
}

func TestSession_Heartbeat(t *testing.T) {
	session, dialer, clock := newTestSession(t)
	session.Connect()

	clock.Advance(30 * time.Second)
	clock.Advance(30 * time.Second)

	frames := dialer.lastConn().sentFrames()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 heartbeats, got %d: %v", len(frames), frames)
	}
	for _, frame := range frames {
		if frame != `{"type":"ping"}` {
			t.Errorf("Unexpected heartbeat frame: %s", frame)
		}
	}
}

func TestSession_HeartbeatStopsAfterClose(t *testing.T) {
	session, dialer, clock := newTestSession(t)
	session.Connect()
	session.Close()

	clock.Advance(5 * time.Minute)

	if frames := dialer.conns[0].sentFrames(); len(frames) != 0 {
		t.Errorf("No heartbeat should fire after Close, got %v", frames)
	}
}

func TestSession_NotePong(t *testing.T) {
	session, _, clock := newTestSession(t)
	session.Connect()

	if !session.LastPong().IsZero() {
		t.Error("LastPong should start zero")
	}
	session.NotePong()
	if !session.LastPong().Equal(clock.Now()) {
		t.Errorf("LastPong should record the clock time, got %v", session.LastPong())
	}
}

func TestSession_StateTransitions(t *testing.T) {
	session, dialer, clock := newTestSession(t)

	if session.State() != StateDisconnected {
		t.Errorf("Initial state should be disconnected, got %s", session.State())
	}
	session.Connect()
	if session.State() != StateConnected {
		t.Errorf("State after connect should be connected, got %s", session.State())
	}
	dialer.lastConn().Close()
	waitFor(t, "disconnected state", func() bool { return session.State() == StateDisconnected })

	clock.Advance(3 * time.Second)
	waitFor(t, "reconnected state", func() bool { return session.State() == StateConnected })
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		origin  string
		project string
		want    string
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/ws"},
		{"https://deck.example.com", "", "wss://deck.example.com/ws"},
		{"http://localhost:8080/", "p1", "ws://localhost:8080/ws?project=p1"},
		{"ws://localhost:9000", "", "ws://localhost:9000/ws"},
	}

	for _, tt := range tests {
		got, err := BuildURL(tt.origin, tt.project)
		if err != nil {
			t.Errorf("BuildURL(%q, %q) failed: %v", tt.origin, tt.project, err)
			continue
		}
		if got != tt.want {
			t.Errorf("BuildURL(%q, %q) = %q, want %q", tt.origin, tt.project, got, tt.want)
		}
	}
}
