package dashboard

import (
	"context"
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/swarmdeck/swarmdeck/internal/errors"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeOutputView()
		return m, nil

	case stateChangedMsg:
		m.clampCursor()
		return m, nil

	case outputChangedMsg:
		if m.output != nil {
			m.refreshOutputView()
		}
		return m, nil

	case backlogLoadedMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("backlog load failed: %v", msg.err)
		} else if m.output != nil && m.outputWorker == msg.workerID {
			m.refreshOutputView()
		}
		return m, nil

	case transitionDoneMsg:
		m.errorMessage = ""
		m.clampCursor()
		return m, nil

	case configReloadedMsg:
		m.applyDisplayConfig(msg.cfg)
		return m, nil

	case transitionFailedMsg:
		if errors.IsUserFacing(msg.err) {
			m.errorMessage = msg.err.Error()
		} else {
			m.errorMessage = "move failed, see log"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveMode {
		return m.handleMoveKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.closeOutput()
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "tab":
		m.focus = m.nextFocus()
		return m, nil

	case "esc":
		m.errorMessage = ""
		if m.focus == focusOutput {
			m.closeOutput()
		}
		return m, nil
	}

	switch m.focus {
	case focusBoard:
		return m.handleBoardKey(msg)
	case focusWorkers:
		return m.handleWorkerKey(msg)
	case focusOutput:
		return m.handleOutputKey(msg)
	}
	return m, nil
}

func (m Model) nextFocus() focusArea {
	switch m.focus {
	case focusBoard:
		return focusWorkers
	case focusWorkers:
		if m.output != nil {
			return focusOutput
		}
		return focusBoard
	default:
		return focusBoard
	}
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		if m.columnIdx > 0 {
			m.columnIdx--
			m.rowIdx = 0
		}
	case "right", "l":
		if m.columnIdx < len(workflow.AllStates)-1 {
			m.columnIdx++
			m.rowIdx = 0
		}
	case "up", "k":
		if m.rowIdx > 0 {
			m.rowIdx--
		}
	case "down", "j":
		if m.rowIdx < len(m.visibleCards(m.selectedState()))-1 {
			m.rowIdx++
		}
	case "m":
		card, ok := m.selectedCard()
		if !ok {
			return m, nil
		}
		targets := workflow.TargetsFrom(workflow.CardState(card.State))
		if len(targets) == 0 {
			m.errorMessage = fmt.Sprintf("no moves from %s", card.State)
			return m, nil
		}
		m.moveMode = true
		m.moveTargets = targets
	}
	return m, nil
}

// handleMoveKey picks a numbered transition target or cancels.
func (m Model) handleMoveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "esc" || key == "m" {
		m.moveMode = false
		m.moveTargets = nil
		return m, nil
	}

	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > len(m.moveTargets) {
		return m, nil
	}
	target := m.moveTargets[n-1]
	m.moveMode = false
	m.moveTargets = nil

	card, ok := m.selectedCard()
	if !ok {
		return m, nil
	}
	return m, m.transitionCmd(card.ID, target)
}

func (m Model) handleWorkerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.workerIdx > 0 {
			m.workerIdx--
		}
	case "down", "j":
		if m.workerIdx < len(m.state.WorkersSorted())-1 {
			m.workerIdx++
		}
	case "enter", "o":
		worker, ok := m.selectedWorker()
		if !ok {
			return m, nil
		}
		return m.openOutput(worker.ID)
	}
	return m, nil
}

func (m Model) handleOutputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key := msg.String(); key == "end" || key == "G" {
		m.autoScroll = true
		m.outputView.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.outputView, cmd = m.outputView.Update(msg)
	// Follow mode tracks viewport position: leaving the bottom stops
	// following, scrolling back down to it resumes.
	m.autoScroll = m.outputView.AtBottom()
	return m, cmd
}

// openOutput opens the output panel for a worker, replacing any open
// one. The replaced reader is torn down immediately so a hidden panel
// never accumulates lines.
func (m Model) openOutput(workerID string) (tea.Model, tea.Cmd) {
	if m.outputWorker == workerID && m.output != nil {
		m.focus = focusOutput
		return m, nil
	}
	m.closeOutput()

	reader, err := m.opener.OpenReader(workerID)
	if err != nil {
		m.errorMessage = fmt.Sprintf("open stream failed: %v", err)
		return m, nil
	}
	m.output = reader
	m.outputWorker = workerID
	m.focus = focusOutput
	m.autoScroll = true
	m.resizeOutputView()

	limit := m.cfg.Stream.BacklogLimit
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Server.RequestTimeout())
		defer cancel()
		err := reader.LoadBacklog(ctx, limit)
		return backlogLoadedMsg{workerID: workerID, err: err}
	}
}

// transitionCmd runs one card move against the server.
func (m Model) transitionCmd(cardID string, to workflow.CardState) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Server.RequestTimeout())
		defer cancel()
		card, err := m.mover.Transition(ctx, cardID, to)
		if err != nil {
			return transitionFailedMsg{err: err}
		}
		return transitionDoneMsg{card: card}
	}
}
