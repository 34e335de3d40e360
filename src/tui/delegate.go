package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"errlens-agent/src/contracts"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	// Breakdown: panel border (2) + list internal padding/margins (8) = 10 chars total.
	listRenderingOverhead = 10

	typeColumnWidth = 19
	timeColumnWidth = 8
)

var severityLabels = map[contracts.Severity]string{
	contracts.SeverityCritical: "CRIT",
	contracts.SeverityHigh:     "HIGH",
	contracts.SeverityMedium:   "MED",
	contracts.SeverityLow:      "LOW",
}

// Delegate renders events as table rows.
type Delegate struct {
	styles *StyleConfig
	frame  int
}

// SetSpinnerFrame sets the frame shown for events under analysis.
func (d *Delegate) SetSpinnerFrame(frame int) {
	d.frame = frame % len(spinnerFrames)
}

// Height returns the height of a list item
func (d *Delegate) Height() int {
	return 1
}

// Spacing returns spacing between items
func (d *Delegate) Spacing() int {
	return 0
}

// Update handles item updates
func (d *Delegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

// statusGlyph returns the one-column marker for an event's status.
func (d *Delegate) statusGlyph(status contracts.Status) string {
	switch status {
	case contracts.StatusAnalyzing:
		return spinnerFrames[d.frame]
	case contracts.StatusCompleted:
		return "●"
	case contracts.StatusFailed:
		return "✗"
	default:
		return "○"
	}
}

// Render renders a list item
func (d *Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(Item)
	if !ok {
		return
	}
	ev := entry.Event

	sev := entry.Severity()
	sevLabel, ok := severityLabels[sev]
	if !ok {
		sevLabel = "-"
	}

	glyph := lipgloss.NewStyle().Foreground(d.styles.StatusColor(ev.Status)).Render(d.statusGlyph(ev.Status))
	sevCol := lipgloss.NewStyle().Foreground(d.styles.SeverityColor(sev)).Render(fmt.Sprintf("%-4s", sevLabel))
	typeCol := TruncateAndPad(string(ev.Type), typeColumnWidth, false)
	timeCol := ev.Timestamp.Local().Format("15:04:05")

	// Fixed columns: glyph (1) + severity (4) + type + time + separators (12)
	fixedWidth := 1 + 4 + typeColumnWidth + timeColumnWidth + 12
	availableWidth := m.Width() - fixedWidth - listRenderingOverhead

	var snippet string
	if availableWidth > 0 {
		snippet = TruncateAndPad(SingleLine(ev.Message), availableWidth, true)
	}

	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if index == m.Index() {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}
	rest := style.Render(fmt.Sprintf(" │ %s │ %s │ %s", typeCol, timeCol, snippet))

	fmt.Fprintf(w, "%s │ %s%s", glyph, sevCol, rest)
}
