package dashboard

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swarmdeck/swarmdeck/internal/api"
	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/logging"
	"github.com/swarmdeck/swarmdeck/internal/store"
	"github.com/swarmdeck/swarmdeck/internal/sync"
	"github.com/swarmdeck/swarmdeck/internal/tail"
)

// App wraps the Bubbletea program and owns the sync layer lifecycle.
type App struct {
	program *tea.Program
	cfg     *config.Config
	state   *store.State
	manager *sync.Manager
	client  *api.Client
	logger  *logging.Logger
}

// New creates the dashboard application. The manager is constructed but
// not started; Run connects and blocks until the UI exits.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	client := api.New(cfg.Server.Origin)
	client.Token = cfg.Server.Token
	client.Timeout = cfg.Server.RequestTimeout()

	state := store.NewState()
	manager, err := sync.NewManager(sync.Config{
		ServerOrigin:      cfg.Server.Origin,
		ProjectID:         cfg.Server.Project,
		HeartbeatInterval: cfg.Server.Heartbeat(),
		ReconnectDelay:    cfg.Server.ReconnectDelay(),
	}, client, state, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		state:   state,
		manager: manager,
		client:  client,
		logger:  logger,
	}, nil
}

// OpenReader implements streamOpener: it builds a tail reader for one
// worker and forwards its notifications into the UI loop.
func (a *App) OpenReader(workerID string) (*tail.Reader, error) {
	reader := tail.NewReader(workerID, a.client, tail.Config{
		ServerOrigin: a.cfg.Server.Origin,
		ReopenDelay:  a.cfg.Stream.ReopenDelay(),
		Window:       a.cfg.Stream.Window,
	}, a.logger)
	reader.Watch(func() {
		if a.program != nil {
			a.program.Send(outputChangedMsg{})
		}
	})
	if err := reader.OpenLive(); err != nil {
		a.logger.Warn("live stream open failed, backlog only", "worker", workerID, "error", err)
	}
	return reader, nil
}

// Run starts the sync layer and the TUI and blocks until exit.
func (a *App) Run() error {
	model := NewModel(a.cfg, a.state, a.manager, a, a.logger)
	a.program = tea.NewProgram(model, tea.WithAltScreen())

	// Store mutations wake the UI; the model re-reads on receipt so
	// bursts coalesce into whatever the event loop keeps up with.
	notify := func() {
		if a.program != nil {
			a.program.Send(stateChangedMsg{})
		}
	}
	a.state.Cards.Watch(notify)
	a.state.Loops.Watch(notify)
	a.state.Workers.Watch(notify)
	a.state.Projects.Watch(notify)
	a.manager.OnConnectionChange(func(bool) { notify() })

	// On-disk config edits flow into the UI loop; invalid edits are
	// dropped inside Watch and the running configuration stays.
	config.Watch(func(cfg *config.Config) {
		if a.program != nil {
			a.program.Send(configReloadedMsg{cfg: cfg})
		}
	})

	if err := a.manager.Start(); err != nil {
		return err
	}
	defer a.manager.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		a.program.Quit()
	}()

	_, err := a.program.Run()
	return err
}
