package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Rows used outside the two panels: the help line, the column header row
// above each panel and the panel's top and bottom border.
const chromeRows = 1 + 1 + 2

type panelDimensions struct {
	availableHeight int
	leftPanelWidth  int
	rightPanelWidth int
}

// calculateDimensions splits the screen evenly between list and detail.
func (m MainModel) calculateDimensions() panelDimensions {
	height := m.height - lipgloss.Height(m.header.Render(m.width)) - chromeRows
	left := m.width / 2
	return panelDimensions{
		availableHeight: max(height, 1),
		leftPanelWidth:  left,
		rightPanelWidth: m.width - left,
	}
}

func (m MainModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var body string
	if len(m.items) == 0 {
		body = lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			PaddingTop(2).
			Render(m.progress.View())
	} else {
		dims := m.calculateDimensions()
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderListPanel(dims.leftPanelWidth, dims.availableHeight),
			m.renderDetailPanel(dims.rightPanelWidth, dims.availableHeight))
	}

	screen := lipgloss.JoinVertical(lipgloss.Left, m.header.Render(m.width), body, m.renderHelpText())
	return ClampLines(screen, m.width)
}

// renderHelpText shows the bindings for the current mode followed by the
// last action message, if any.
func (m MainModel) renderHelpText() string {
	line := m.help.ShortHelpView(m.bindings())
	if m.flash != "" {
		line += "  " + lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Render(m.flash)
	}
	return m.styles.HelpStyle().Render(line)
}

func (m *MainModel) resizeComponents() {
	dims := m.calculateDimensions()
	m.help.Width = m.width
	m.listView.SetSize(dims.leftPanelWidth-2, dims.availableHeight)
	m.detailViewport.Width = dims.rightPanelWidth - 2
	m.detailViewport.Height = dims.availableHeight

	if selected, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selected)
	}
}
