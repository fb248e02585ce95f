package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

const (
	columnWidth    = 24
	visibleColumns = 4
	outputHeight   = 12
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	board := m.renderBoard()
	sidebar := m.renderSidebar()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, board, sidebar))
	b.WriteString("\n")

	if m.output != nil {
		b.WriteString(m.renderOutput())
		b.WriteString("\n")
	}

	if m.moveMode {
		b.WriteString(m.renderMoveMenu())
		b.WriteString("\n")
	}

	if m.errorMessage != "" {
		b.WriteString(errorStyle.Render(m.errorMessage))
		b.WriteString("\n")
	}

	b.WriteString(m.renderHelpBar())
	return b.String()
}

func (m Model) renderHeader() string {
	indicator := disconnectedStyle.Render("● offline")
	if m.state.Connected() {
		indicator = connectedStyle.Render("● live")
	}

	lastEvent, at := m.state.LastEvent()
	eventNote := ""
	if lastEvent != "" {
		eventNote = mutedStyle.Render(fmt.Sprintf("  last: %s %s", lastEvent, at.Format(time.Kitchen)))
	}

	cost := mutedStyle.Render(fmt.Sprintf("  cost: $%.2f", m.state.TotalCost()))
	title := titleStyle.Render("swarmdeck")
	return fmt.Sprintf("%s  %s%s%s", title, indicator, cost, eventNote)
}

// renderBoard renders a sliding window of stage columns centered on the
// selection; sixteen stages never fit a terminal at once.
func (m Model) renderBoard() string {
	start := m.columnIdx - visibleColumns/2
	if start < 0 {
		start = 0
	}
	if start > len(workflow.AllStates)-visibleColumns {
		start = max(0, len(workflow.AllStates)-visibleColumns)
	}
	end := min(start+visibleColumns, len(workflow.AllStates))

	columns := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		columns = append(columns, m.renderColumn(workflow.AllStates[i], i == m.columnIdx))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func (m Model) renderColumn(state workflow.CardState, focused bool) string {
	cards := m.visibleCards(state)

	header := columnHeaderStyle.
		Foreground(stageColors[state]).
		Render(fmt.Sprintf("%s (%d)", state, len(cards)))

	lines := []string{header}
	maxRows := m.boardHeight()
	for i, card := range cards {
		if i >= maxRows {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("+%d more", len(cards)-maxRows)))
			break
		}
		lines = append(lines, m.renderCard(card, focused && m.focus == focusBoard && i == m.rowIdx))
	}

	style := columnStyle
	if focused {
		style = columnFocusedStyle
	}
	return style.Width(columnWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderCard(card domain.Card, selected bool) string {
	title := truncate(card.Title, columnWidth-4)

	line := title
	if loop, ok := m.state.LoopFor(card.ID); ok && loop.Active() {
		line = fmt.Sprintf("%s ⟳%d", title, loop.Iteration)
	}

	switch {
	case selected:
		return cardSelectedStyle.Render(line)
	case card.Overdue(time.Now()):
		return cardOverdueStyle.Render(line)
	default:
		return cardStyle.Render(line)
	}
}

func (m Model) renderSidebar() string {
	workers := m.state.WorkersSorted()

	lines := []string{columnHeaderStyle.Render(fmt.Sprintf("workers (%d)", len(workers)))}
	for i, worker := range workers {
		badge := workerStatusStyle(string(worker.Status)).Render(string(worker.Status))
		line := fmt.Sprintf("%s %s", badge, worker.Name)
		if worker.CardID != "" {
			if card, ok := m.state.Cards.Get(worker.CardID); ok {
				line += mutedStyle.Render(" · " + card.Title)
			}
		}
		if m.focus == focusWorkers && i == m.workerIdx {
			line = cardSelectedStyle.Render(fmt.Sprintf("%s %s", string(worker.Status), worker.Name))
		}
		lines = append(lines, line)
	}

	style := sidebarStyle
	if m.focus == focusWorkers {
		style = sidebarFocusedStyle
	}
	return style.Width(m.cfg.TUI.SidebarWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderOutput() string {
	header := columnHeaderStyle.Render(fmt.Sprintf("output: %s", m.outputWorker))
	if !m.autoScroll {
		header += mutedStyle.Render("  (scrolling, G to follow)")
	}
	return outputStyle.Width(max(m.width-2, 20)).Render(header + "\n" + m.outputView.View())
}

func (m Model) renderMoveMenu() string {
	card, ok := m.selectedCard()
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(m.moveTargets))
	for i, target := range m.moveTargets {
		parts = append(parts, fmt.Sprintf("%s %s",
			helpKeyStyle.Render(fmt.Sprintf("[%d]", i+1)), target))
	}
	return fmt.Sprintf("move %q → %s  %s",
		card.Title, strings.Join(parts, "  "), mutedStyle.Render("esc cancels"))
}

func (m Model) renderHelpBar() string {
	if m.showHelp {
		entries := []string{
			"tab focus", "←/→ stage", "↑/↓ select", "m move card",
			"enter output", "G follow", "esc close", "q quit",
		}
		return helpBarStyle.Render(strings.Join(entries, " · "))
	}
	return helpBarStyle.Render("? help · q quit")
}

// truncate shortens a string to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// boardHeight returns how many card rows fit in a column.
func (m Model) boardHeight() int {
	h := m.height - 8
	if m.output != nil {
		h -= outputHeight + 2
	}
	return max(h, 3)
}

// resizeOutputView fits the viewport to the current terminal size.
func (m *Model) resizeOutputView() {
	m.outputView.Width = max(m.width-4, 20)
	m.outputView.Height = outputHeight
	if m.output != nil {
		m.refreshOutputView()
	}
}

// refreshOutputView rebuilds the viewport content from the reader's
// window, keeping the view bottom-anchored while following.
func (m *Model) refreshOutputView() {
	lines := m.output.Lines()
	limit := m.cfg.TUI.MaxOutputLines
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line.Line)
		b.WriteString("\n")
	}
	m.outputView.SetContent(b.String())
	if m.autoScroll {
		m.outputView.GotoBottom()
	}
}
