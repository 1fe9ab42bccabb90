package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000"))

	gaugeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 3).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#A40000"))

	disabledButtonStyle = lipgloss.NewStyle().
				Padding(0, 3).
				Foreground(lipgloss.Color("#888888")).
				Background(lipgloss.Color("#444444"))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFA500")).
			Padding(0, 1)
)

// formatPercent renders a gauge value as e.g. " 42%".
func formatPercent(v int) string {
	return fmt.Sprintf("%3d%%", v)
}
