// Package dashboard renders the live operator view: a kanban board of
// cards by lifecycle stage, a worker sidebar, and an on-demand output
// panel, all bound to the sync layer's read model.
package dashboard

import (
	"context"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gobwas/glob"

	"github.com/swarmdeck/swarmdeck/internal/config"
	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/logging"
	"github.com/swarmdeck/swarmdeck/internal/store"
	"github.com/swarmdeck/swarmdeck/internal/tail"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

// focusArea identifies which pane receives navigation keys.
type focusArea int

const (
	focusBoard focusArea = iota
	focusWorkers
	focusOutput
)

// mover applies card transitions. Implemented by the sync manager;
// narrowed to an interface so the model is testable without a
// connection.
type mover interface {
	Transition(ctx context.Context, cardID string, to workflow.CardState) (domain.Card, error)
}

// streamOpener builds output readers for workers. Implemented by App.
type streamOpener interface {
	OpenReader(workerID string) (*tail.Reader, error)
}

// Model holds the dashboard state.
type Model struct {
	cfg    *config.Config
	state  *store.State
	mover  mover
	opener streamOpener
	logger *logging.Logger

	// UI state
	width    int
	height   int
	ready    bool
	quitting bool
	showHelp bool
	focus    focusArea

	// Board navigation
	columnIdx int // index into workflow.AllStates
	rowIdx    int

	// Move mode: legal targets for the selected card, picked by number
	moveMode    bool
	moveTargets []workflow.CardState

	// Worker sidebar
	workerIdx int

	// Output panel
	output       *tail.Reader
	outputWorker string
	outputView   viewport.Model
	autoScroll   bool

	// Label filter compiled from config; nil shows all cards
	labelFilter glob.Glob

	errorMessage string
}

// NewModel creates the dashboard model.
func NewModel(cfg *config.Config, state *store.State, m mover, opener streamOpener, logger *logging.Logger) Model {
	if logger == nil {
		logger = logging.NopLogger()
	}
	model := Model{
		cfg:        cfg,
		state:      state,
		mover:      m,
		opener:     opener,
		logger:     logger,
		autoScroll: true,
	}
	model.labelFilter = compileLabelFilter(cfg.TUI.LabelFilter)
	return model
}

// compileLabelFilter compiles a glob pattern; empty or invalid patterns
// mean no filter. Validated at config load, so a failure here is rare.
func compileLabelFilter(pattern string) glob.Glob {
	if pattern == "" {
		return nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}
	return g
}

// applyDisplayConfig adopts the display options from a reloaded
// configuration. Connection and stream settings are fixed at startup;
// only what affects rendering changes live.
func (m *Model) applyDisplayConfig(cfg *config.Config) {
	m.cfg.TUI = cfg.TUI
	m.labelFilter = compileLabelFilter(cfg.TUI.LabelFilter)
	m.clampCursor()
	if m.output != nil {
		m.refreshOutputView()
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// selectedState returns the lifecycle stage of the focused column.
func (m Model) selectedState() workflow.CardState {
	return workflow.AllStates[m.columnIdx]
}

// visibleCards returns the cards in one column after the label filter,
// in board order.
func (m Model) visibleCards(state workflow.CardState) []domain.Card {
	column := m.state.CardsByState()[state]
	if m.labelFilter == nil {
		return column
	}
	var visible []domain.Card
	for _, card := range column {
		for _, label := range card.Labels {
			if m.labelFilter.Match(label) {
				visible = append(visible, card)
				break
			}
		}
	}
	return visible
}

// selectedCard returns the card under the cursor, if any.
func (m Model) selectedCard() (domain.Card, bool) {
	cards := m.visibleCards(m.selectedState())
	if m.rowIdx >= len(cards) {
		return domain.Card{}, false
	}
	return cards[m.rowIdx], true
}

// selectedWorker returns the worker under the sidebar cursor, if any.
func (m Model) selectedWorker() (domain.Worker, bool) {
	workers := m.state.WorkersSorted()
	if m.workerIdx >= len(workers) {
		return domain.Worker{}, false
	}
	return workers[m.workerIdx], true
}

// clampCursor keeps the cursors inside the current store contents after
// any mutation.
func (m *Model) clampCursor() {
	if cards := m.visibleCards(m.selectedState()); m.rowIdx >= len(cards) {
		m.rowIdx = max(0, len(cards)-1)
	}
	if workers := m.state.WorkersSorted(); m.workerIdx >= len(workers) {
		m.workerIdx = max(0, len(workers)-1)
	}
}

// closeOutput tears down the open output panel, if any.
func (m *Model) closeOutput() {
	if m.output != nil {
		m.output.Close()
		m.output = nil
		m.outputWorker = ""
	}
	if m.focus == focusOutput {
		m.focus = focusWorkers
	}
}
