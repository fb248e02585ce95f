// Package tail reads a worker's append-only output stream: a cold
// backlog load plus a live per-worker push subscription, de-duplicated
// by monotonic line number. One Reader exists per open output panel
// and is torn down when the panel closes; hidden panels accumulate
// nothing in the background.
package tail

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/logging"
	"github.com/swarmdeck/swarmdeck/internal/transport"
)

// BacklogLoader is the cold path for recent lines, implemented by the
// REST client.
type BacklogLoader interface {
	WorkerOutput(ctx context.Context, workerID string, limit int) ([]domain.OutputLine, error)
}

// Config holds reader parameters.
type Config struct {
	// ServerOrigin is the base URL the stream endpoint derives from.
	ServerOrigin string
	// ReopenDelay is the fixed delay before reopening a broken stream.
	ReopenDelay time.Duration
	// Window caps retained lines; older lines are evicted. Zero means
	// a default of 2000.
	Window int
}

func (c *Config) applyDefaults() {
	if c.ReopenDelay == 0 {
		c.ReopenDelay = 2 * time.Second
	}
	if c.Window == 0 {
		c.Window = 2000
	}
}

// Reader holds the client-side line sequence for one worker.
type Reader struct {
	workerID    string
	cfg         Config
	loader      BacklogLoader
	logger      *logging.Logger
	sessionOpts []transport.Option

	mu       sync.Mutex
	session  *transport.Session
	lines    []domain.OutputLine
	highest  int64
	closed   bool
	watchers []func()
}

// Option customizes a Reader.
type Option func(*Reader)

// WithSessionOptions forwards options to the live-stream session,
// used by tests to inject a fake dialer and clock.
func WithSessionOptions(opts ...transport.Option) Option {
	return func(r *Reader) { r.sessionOpts = opts }
}

// NewReader creates a Reader for one worker.
func NewReader(workerID string, loader BacklogLoader, cfg Config, logger *logging.Logger, opts ...Option) *Reader {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Reader{
		workerID: workerID,
		cfg:      cfg,
		loader:   loader,
		logger:   logger.WithWorker(workerID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadBacklog pulls up to limit most recent lines through the cold
// path. Backlog lines pass through the same monotonic acceptance rule
// as live lines, so a backlog load racing a live stream cannot
// duplicate or regress.
func (r *Reader) LoadBacklog(ctx context.Context, limit int) error {
	lines, err := r.loader.WorkerOutput(ctx, r.workerID, limit)
	if err != nil {
		return err
	}
	for _, line := range lines {
		r.append(line)
	}
	return nil
}

// OpenLive opens the per-worker line subscription. The underlying
// session reopens itself after ReopenDelay on stream errors for as
// long as the reader stays open.
func (r *Reader) OpenLive() error {
	streamURL, err := transport.BuildStreamURL(r.cfg.ServerOrigin, r.workerID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if r.session != nil {
		r.mu.Unlock()
		return nil
	}
	session := transport.NewSession(transport.Config{
		URL:               streamURL,
		HeartbeatInterval: -1,
		ReconnectDelay:    r.cfg.ReopenDelay,
	}, r.logger, r.sessionOpts...)
	r.session = session
	r.mu.Unlock()

	session.OnMessage(r.handleFrame)
	return session.Connect()
}

// handleFrame decodes one live line event. Undecodable frames are
// dropped; a corrupt frame must not break the stream.
func (r *Reader) handleFrame(raw []byte) {
	var line domain.OutputLine
	if err := json.Unmarshal(raw, &line); err != nil {
		r.logger.Debug("dropping malformed line frame", "error", err)
		return
	}
	if line.LineNumber <= 0 {
		r.logger.Debug("dropping line frame without line number")
		return
	}
	line.WorkerID = r.workerID
	r.append(line)
}

// append accepts the line only if its number is strictly greater than
// the highest accepted so far. Duplicates and regressions are dropped;
// gaps from network loss are tolerated.
func (r *Reader) append(line domain.OutputLine) bool {
	r.mu.Lock()
	if r.closed || line.LineNumber <= r.highest {
		r.mu.Unlock()
		return false
	}
	r.highest = line.LineNumber
	r.lines = append(r.lines, line)
	if len(r.lines) > r.cfg.Window {
		r.lines = r.lines[len(r.lines)-r.cfg.Window:]
	}
	watchers := make([]func(), len(r.watchers))
	copy(watchers, r.watchers)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
	return true
}

// Lines returns a copy of the retained window.
func (r *Reader) Lines() []domain.OutputLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OutputLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of retained lines.
func (r *Reader) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// Highest returns the highest accepted line number.
func (r *Reader) Highest() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highest
}

// Watch registers a callback invoked after each accepted line.
func (r *Reader) Watch(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

// Close tears down the live subscription synchronously, including any
// pending reopen timer. The reader accepts no lines afterwards.
func (r *Reader) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	session := r.session
	r.session = nil
	r.mu.Unlock()

	if session != nil {
		session.Close()
	}
}
