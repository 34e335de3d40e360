package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// columnHeader lines up with the rows drawn by Delegate.Render.
func columnHeader() string {
	return fmt.Sprintf("• │ Sev  │ %-*s │ %-*s │ Message", typeColumnWidth, "Type", timeColumnWidth, "Time")
}

// renderListPanel draws the column header above the bordered event list.
// The list itself is sized in resizeComponents.
func (m MainModel) renderListPanel(width, height int) string {
	inner := width - 2
	border := m.styles.BorderColor
	if !m.detailFocused {
		border = m.styles.PrimaryBlue
	}

	head := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(inner).
		Padding(0, 1).
		Render(Truncate(columnHeader(), inner-2, true))

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(inner).
		Height(height).
		Render(m.listView.Render())

	return lipgloss.JoinVertical(lipgloss.Left, head, body)
}
