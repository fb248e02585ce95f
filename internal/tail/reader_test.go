package tail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/transport"
)

// virtualClock drives reopen timers manually so stream recovery is
// tested without real sleeps.
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

func (c *virtualClock) AfterFunc(d time.Duration, fn func()) transport.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &virtualTimer{deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

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

// stubLoader serves a fixed backlog.
type stubLoader struct {
	lines []domain.OutputLine
	err   error
	calls int
	limit int
}

func (s *stubLoader) WorkerOutput(ctx context.Context, workerID string, limit int) ([]domain.OutputLine, error) {
	s.calls++
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.lines, nil
}

func backlog(n int) []domain.OutputLine {
	lines := make([]domain.OutputLine, n)
	for i := range lines {
		lines[i] = domain.OutputLine{LineNumber: int64(i + 1), Line: fmt.Sprintf("line %d", i+1)}
	}
	return lines
}

// fakeConn / fakeDialer stand in for the websocket live stream.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 64), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errors.New("stream reset")
	}
}

func (c *fakeConn) WriteJSON(v any) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(rawURL string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func pushLine(conn *fakeConn, number int64, text string) {
	data, _ := json.Marshal(domain.OutputLine{LineNumber: number, Line: text})
	conn.inbound <- data
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

func TestReader_LoadBacklog(t *testing.T) {
	loader := &stubLoader{lines: backlog(10)}
	reader := NewReader("w1", loader, Config{ServerOrigin: "http://localhost"}, nil)
	defer reader.Close()

	if err := reader.LoadBacklog(context.Background(), 500); err != nil {
		t.Fatalf("LoadBacklog failed: %v", err)
	}

	if reader.Len() != 10 {
		t.Errorf("Expected 10 lines, got %d", reader.Len())
	}
	if loader.limit != 500 {
		t.Errorf("Expected limit 500 passed through, got %d", loader.limit)
	}
	if reader.Highest() != 10 {
		t.Errorf("Expected highest line 10, got %d", reader.Highest())
	}
}

func TestReader_LoadBacklogError(t *testing.T) {
	loader := &stubLoader{err: errors.New("server down")}
	reader := NewReader("w1", loader, Config{ServerOrigin: "http://localhost"}, nil)
	defer reader.Close()

	if err := reader.LoadBacklog(context.Background(), 100); err == nil {
		t.Error("LoadBacklog should surface loader errors")
	}
	if reader.Len() != 0 {
		t.Errorf("No lines should be retained on error, got %d", reader.Len())
	}
}

func TestReader_DuplicateLineIsNoOp(t *testing.T) {
	loader := &stubLoader{lines: backlog(500)}
	dialer := &fakeDialer{}
	reader := NewReader("w1", loader, Config{ServerOrigin: "http://localhost"}, nil,
		WithSessionOptions(transport.WithDialer(dialer)))
	defer reader.Close()

	reader.LoadBacklog(context.Background(), 500)
	if err := reader.OpenLive(); err != nil {
		t.Fatalf("OpenLive failed: %v", err)
	}

	// Re-delivery of line 500 is dropped; line 501 is accepted.
	pushLine(dialer.lastConn(), 500, "line 500")
	pushLine(dialer.lastConn(), 501, "line 501")

	waitFor(t, "line 501", func() bool { return reader.Highest() == 501 })
	if reader.Len() != 501 {
		t.Errorf("Expected 501 lines after duplicate drop, got %d", reader.Len())
	}
}

func TestReader_MonotonicAcceptance(t *testing.T) {
	reader := NewReader("w1", &stubLoader{}, Config{ServerOrigin: "http://localhost"}, nil)
	defer reader.Close()

	deliveries := []struct {
		number int64
		accept bool
	}{
		{1, true},
		{2, true},
		{2, false}, // duplicate
		{1, false}, // regression
		{5, true},  // gap tolerated
		{4, false}, // late line behind the gap
		{6, true},
	}

	for _, d := range deliveries {
		got := reader.append(domain.OutputLine{LineNumber: d.number, Line: "x"})
		if got != d.accept {
			t.Errorf("Line %d: accepted=%v, want %v", d.number, got, d.accept)
		}
	}

	var numbers []int64
	for _, line := range reader.Lines() {
		numbers = append(numbers, line.LineNumber)
	}
	want := []int64{1, 2, 5, 6}
	if len(numbers) != len(want) {
		t.Fatalf("Expected %v, got %v", want, numbers)
	}
	for i := range want {
		if numbers[i] != want[i] {
			t.Errorf("Accepted sequence mismatch: expected %v, got %v", want, numbers)
			break
		}
	}
}

func TestReader_WindowEviction(t *testing.T) {
	reader := NewReader("w1", &stubLoader{}, Config{ServerOrigin: "http://localhost", Window: 100}, nil)
	defer reader.Close()

	for i := int64(1); i <= 250; i++ {
		reader.append(domain.OutputLine{LineNumber: i, Line: "x"})
	}

	if reader.Len() != 100 {
		t.Fatalf("Expected window of 100 lines, got %d", reader.Len())
	}
	lines := reader.Lines()
	if lines[0].LineNumber != 151 {
		t.Errorf("Oldest retained line should be 151, got %d", lines[0].LineNumber)
	}
	if reader.Highest() != 250 {
		t.Errorf("Highest should remain 250, got %d", reader.Highest())
	}
}

func TestReader_MalformedFrameDropped(t *testing.T) {
	dialer := &fakeDialer{}
	reader := NewReader("w1", &stubLoader{}, Config{ServerOrigin: "http://localhost"}, nil,
		WithSessionOptions(transport.WithDialer(dialer)))
	defer reader.Close()

	reader.OpenLive()
	dialer.lastConn().inbound <- []byte(`{broken`)
	dialer.lastConn().inbound <- []byte(`{"line": "no number"}`)
	pushLine(dialer.lastConn(), 1, "good")

	waitFor(t, "good line", func() bool { return reader.Len() == 1 })
}

func TestReader_ReopenAfterStreamError(t *testing.T) {
	dialer := &fakeDialer{}
	clock := newVirtualClock()
	reader := NewReader("w1", &stubLoader{}, Config{
		ServerOrigin: "http://localhost",
		ReopenDelay:  2 * time.Second,
	}, nil, WithSessionOptions(transport.WithDialer(dialer), transport.WithClock(clock)))
	defer reader.Close()

	reader.OpenLive()
	pushLine(dialer.lastConn(), 1, "before drop")
	waitFor(t, "first line", func() bool { return reader.Len() == 1 })

	dialer.lastConn().Close()
	waitFor(t, "reopen scheduled", func() bool { return clock.pending() == 1 })

	clock.Advance(2 * time.Second)
	waitFor(t, "second dial", func() bool { return dialer.dialCount() == 2 })

	pushLine(dialer.lastConn(), 2, "after reopen")
	waitFor(t, "line after reopen", func() bool { return reader.Len() == 2 })
}

func TestReader_CloseStopsReopen(t *testing.T) {
	dialer := &fakeDialer{}
	clock := newVirtualClock()
	reader := NewReader("w1", &stubLoader{}, Config{
		ServerOrigin: "http://localhost",
		ReopenDelay:  2 * time.Second,
	}, nil, WithSessionOptions(transport.WithDialer(dialer), transport.WithClock(clock)))

	reader.OpenLive()
	dialer.lastConn().Close()
	waitFor(t, "reopen scheduled", func() bool { return clock.pending() == 1 })

	reader.Close()

	if clock.pending() != 0 {
		t.Error("Close should cancel the pending reopen timer")
	}
	clock.Advance(time.Minute)
	if dialer.dialCount() != 1 {
		t.Errorf("No reopen should fire after Close, got %d dials", dialer.dialCount())
	}
}

func TestReader_NoLinesAcceptedAfterClose(t *testing.T) {
	reader := NewReader("w1", &stubLoader{}, Config{ServerOrigin: "http://localhost"}, nil)
	reader.append(domain.OutputLine{LineNumber: 1, Line: "x"})

	reader.Close()

	if reader.append(domain.OutputLine{LineNumber: 2, Line: "y"}) {
		t.Error("Closed reader should accept no lines")
	}
	if reader.Len() != 1 {
		t.Errorf("Expected 1 retained line, got %d", reader.Len())
	}
}

func TestReader_Watch(t *testing.T) {
	reader := NewReader("w1", &stubLoader{}, Config{ServerOrigin: "http://localhost"}, nil)
	defer reader.Close()

	var notifications int
	reader.Watch(func() { notifications++ })

	reader.append(domain.OutputLine{LineNumber: 1, Line: "x"})
	reader.append(domain.OutputLine{LineNumber: 1, Line: "dup"})
	reader.append(domain.OutputLine{LineNumber: 2, Line: "y"})

	if notifications != 2 {
		t.Errorf("Expected 2 notifications (duplicates are silent), got %d", notifications)
	}
}
