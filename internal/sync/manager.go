// Package sync composes the push session, the event router, and the
// entity stores into the live read model the dashboard binds to. One
// Manager exists per running dashboard; it owns the connection
// lifecycle end to end.
package sync

import (
	"context"
	"time"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/errors"
	"github.com/swarmdeck/swarmdeck/internal/event"
	"github.com/swarmdeck/swarmdeck/internal/logging"
	"github.com/swarmdeck/swarmdeck/internal/store"
	"github.com/swarmdeck/swarmdeck/internal/transport"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

// Backend is the REST surface the manager needs for cold loads and
// operator commands. Implemented by the api client.
type Backend interface {
	ListCards(ctx context.Context, projectID string) ([]domain.Card, error)
	ListWorkers(ctx context.Context) ([]domain.Worker, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ListLoops(ctx context.Context) ([]domain.Loop, error)
	ApplyTrigger(ctx context.Context, cardID string, trigger workflow.Trigger) (domain.Card, error)
}

// Config holds manager parameters.
type Config struct {
	// ServerOrigin is the http(s) base URL of the orchestration server.
	ServerOrigin string
	// ProjectID optionally scopes the push subscription and cold loads
	// to one project.
	ProjectID string
	// HeartbeatInterval and ReconnectDelay are forwarded to the session;
	// zero means the session defaults.
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	// RefreshTimeout bounds each cold load. Zero means 15 seconds.
	RefreshTimeout time.Duration
}

// Manager wires the push connection into the entity stores. Events
// apply to the stores in arrival order; the staleness guard inside each
// store makes replays and reconnect races harmless.
type Manager struct {
	cfg     Config
	backend Backend
	state   *store.State
	session *transport.Session
	router  *event.Router
	logger  *logging.Logger

	onConnChange func(bool)
}

// Option customizes a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	sessionOpts []transport.Option
}

// WithSessionOptions forwards options to the push session, used by
// tests to inject a fake dialer and clock.
func WithSessionOptions(opts ...transport.Option) Option {
	return func(c *managerConfig) { c.sessionOpts = opts }
}

// NewManager creates a Manager. It does not connect; call Start.
func NewManager(cfg Config, backend Backend, state *store.State, logger *logging.Logger, opts ...Option) (*Manager, error) {
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	var mc managerConfig
	for _, opt := range opts {
		opt(&mc)
	}

	pushURL, err := transport.BuildURL(cfg.ServerOrigin, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	session := transport.NewSession(transport.Config{
		URL:               pushURL,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, logger, mc.sessionOpts...)

	m := &Manager{
		cfg:     cfg,
		backend: backend,
		state:   state,
		session: session,
		router:  event.NewRouter(session, logger),
		logger:  logger,
	}

	session.OnMessage(m.router.HandleRaw)
	session.OnOpen(m.handleOpen)
	session.OnClose(m.handleClose)
	m.router.SetPongHandler(session.NotePong)
	m.registerHandlers()
	return m, nil
}

// Start opens the push connection. On dial failure the session keeps
// retrying in the background, so a start against a down server is not
// fatal; the dashboard comes up empty and fills in on connect.
func (m *Manager) Start() error {
	err := m.session.Connect()
	if err != nil && !errors.Is(err, errors.ErrSessionClosed) {
		m.logger.Warn("initial connect failed, retrying in background", "error", err)
		return nil
	}
	return err
}

// Close tears down the push connection. The stores keep their last
// known contents for a final render.
func (m *Manager) Close() {
	m.session.Close()
	m.state.SetConnected(false)
}

// OnConnectionChange installs a callback invoked after every connect
// and unexpected disconnect. Set before Start.
func (m *Manager) OnConnectionChange(fn func(connected bool)) {
	m.onConnChange = fn
}

// Bus exposes the router's dispatcher so the UI can observe events
// beyond store mutations (decisions, questions, queue changes).
func (m *Manager) Bus() *event.Bus { return m.router.Bus() }

// Session exposes connection state for status indicators.
func (m *Manager) Session() *transport.Session { return m.session }

// SubscribeTopics narrows the server push scope to the given cards and
// projects.
func (m *Manager) SubscribeTopics(cardIDs, projectIDs []string) bool {
	return m.router.SubscribeTopics(cardIDs, projectIDs)
}

// UnsubscribeTopics reverses a previous SubscribeTopics.
func (m *Manager) UnsubscribeTopics(cardIDs, projectIDs []string) bool {
	return m.router.UnsubscribeTopics(cardIDs, projectIDs)
}

// handleOpen runs after every successful connect, including reconnects.
// The cold load closes the gap of events missed while disconnected; any
// push events that raced the load are reconciled by the stores'
// staleness guard.
func (m *Manager) handleOpen() {
	m.state.SetConnected(true)
	if m.onConnChange != nil {
		m.onConnChange(true)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
		defer cancel()
		if err := m.Refresh(ctx); err != nil {
			m.logger.Warn("post-connect refresh failed", "error", err)
		}
	}()
}

func (m *Manager) handleClose(cause error) {
	m.state.SetConnected(false)
	if m.onConnChange != nil {
		m.onConnChange(false)
	}
}

// Refresh replaces store contents from a REST cold load. Fetch errors
// for one family do not abort the others; the joined error reports
// everything that failed.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error

	cards, err := m.backend.ListCards(ctx, m.cfg.ProjectID)
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, card := range cards {
			m.state.Cards.Upsert(card)
		}
	}

	workers, err := m.backend.ListWorkers(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, worker := range workers {
			m.state.Workers.Upsert(worker)
		}
	}

	projects, err := m.backend.ListProjects(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, project := range projects {
			m.state.Projects.Upsert(project)
		}
	}

	loops, err := m.backend.ListLoops(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		for _, loop := range loops {
			m.state.Loops.Upsert(loop)
		}
	}

	return errors.Join(errs...)
}

// Transition moves a card to a target stage. The local transition table
// rejects illegal moves without a network round-trip; legal moves go to
// the server, and the store is updated only from the confirmed
// response.
func (m *Manager) Transition(ctx context.Context, cardID string, to workflow.CardState) (domain.Card, error) {
	card, ok := m.state.Cards.Get(cardID)
	if !ok {
		return domain.Card{}, errors.ErrNotFound
	}
	from := workflow.CardState(card.State)
	trigger, ok := workflow.TriggerFor(from, to)
	if !ok {
		return domain.Card{}, errors.NewTransitionError(cardID, string(from), string(to))
	}

	updated, err := m.backend.ApplyTrigger(ctx, cardID, trigger)
	if err != nil {
		return domain.Card{}, err
	}
	m.state.Cards.Upsert(updated)
	return updated, nil
}

// registerHandlers binds every routed event type to its store mutation.
// Deletions are explicit events, never inferred from absence.
func (m *Manager) registerHandlers() {
	bus := m.router.Bus()

	for _, tag := range []string{event.TypeCardCreated, event.TypeCardUpdated} {
		bus.Subscribe(tag, func(e event.Event) {
			if upsert, ok := e.(event.CardUpserted); ok {
				m.state.Cards.Upsert(upsert.Card)
			}
		})
	}
	bus.Subscribe(event.TypeCardDeleted, func(e event.Event) {
		if del, ok := e.(event.CardDeleted); ok {
			m.state.Cards.Remove(del.CardID)
			m.state.Loops.Remove(del.CardID)
		}
	})

	for _, tag := range []string{event.TypeWorkerCreated, event.TypeWorkerUpdated} {
		bus.Subscribe(tag, func(e event.Event) {
			if upsert, ok := e.(event.WorkerUpserted); ok {
				m.state.Workers.Upsert(upsert.Worker)
			}
		})
	}
	bus.Subscribe(event.TypeWorkerDeleted, func(e event.Event) {
		if del, ok := e.(event.WorkerDeleted); ok {
			m.state.Workers.Remove(del.WorkerID)
		}
	})

	for _, tag := range []string{event.TypeProjectCreated, event.TypeProjectUpdated} {
		bus.Subscribe(tag, func(e event.Event) {
			if upsert, ok := e.(event.ProjectUpserted); ok {
				m.state.Projects.Upsert(upsert.Project)
			}
		})
	}
	bus.Subscribe(event.TypeProjectDeleted, func(e event.Event) {
		if del, ok := e.(event.ProjectDeleted); ok {
			m.state.Projects.Remove(del.ProjectID)
		}
	})

	loopTags := []string{
		event.TypeLoopStarted,
		event.TypeLoopProgress,
		event.TypeLoopPaused,
		event.TypeLoopCompleted,
		event.TypeLoopFailed,
	}
	for _, tag := range loopTags {
		bus.Subscribe(tag, func(e event.Event) {
			if upd, ok := e.(event.LoopUpdated); ok {
				m.state.Loops.Upsert(upd.Loop)
			}
		})
	}

	bus.SubscribeAll(func(e event.Event) {
		m.state.RecordEvent(e.EventType(), e.Timestamp())
	})
}
