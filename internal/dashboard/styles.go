package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark surfaces
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	greenColor   = lipgloss.Color("#10B981") // Green
	amberColor   = lipgloss.Color("#F59E0B") // Amber
	redColor     = lipgloss.Color("#F87171") // Red
	blueColor    = lipgloss.Color("#60A5FA") // Blue
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	textColor    = lipgloss.Color("#F9FAFB") // Light text
	borderColor  = lipgloss.Color("#6B7280") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(redColor)

	connectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(greenColor)

	disconnectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(redColor)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	columnFocusedStyle = columnStyle.
				BorderForeground(primaryColor)

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(textColor)

	cardStyle = lipgloss.NewStyle().
			Foreground(textColor)

	cardSelectedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(textColor).
				Background(primaryColor)

	cardOverdueStyle = lipgloss.NewStyle().
				Foreground(redColor)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	sidebarFocusedStyle = sidebarStyle.
				BorderForeground(primaryColor)

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	helpBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	helpKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(greenColor)
)

// stageColors maps lifecycle stages to accent colors for column headers.
var stageColors = map[workflow.CardState]lipgloss.Color{
	workflow.StateDraft:        mutedColor,
	workflow.StatePlanning:     blueColor,
	workflow.StateCoding:       greenColor,
	workflow.StateCodeReview:   primaryColor,
	workflow.StateTesting:      amberColor,
	workflow.StateErrorFixing:  redColor,
	workflow.StateBuildQueue:   mutedColor,
	workflow.StateBuilding:     amberColor,
	workflow.StateBuildSuccess: greenColor,
	workflow.StateBuildFailed:  redColor,
	workflow.StateDeployQueue:  mutedColor,
	workflow.StateDeploying:    amberColor,
	workflow.StateVerifying:    blueColor,
	workflow.StateCompleted:    greenColor,
	workflow.StateFailed:       redColor,
	workflow.StateArchived:     mutedColor,
}

// workerStatusStyle returns the style for a worker status badge.
func workerStatusStyle(status string) lipgloss.Style {
	switch status {
	case "busy":
		return lipgloss.NewStyle().Foreground(greenColor)
	case "idle":
		return lipgloss.NewStyle().Foreground(blueColor)
	default:
		return mutedStyle
	}
}
