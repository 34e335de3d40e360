package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"errlens-agent/src/contracts"
)

// renderDetail renders the detail content for one event
func (m MainModel) renderDetail(item Item, maxWidth int) string {
	ev := item.Event
	label := m.styles.LabelStyle()
	faint := lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Faint(true)
	content := strings.Builder{}

	header := lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Render(Wrap(fmt.Sprintf("%s | %s | %s", ev.Type, ev.Category, ev.ID), maxWidth))
	fmt.Fprintf(&content, "%s\n\n", header)

	fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.ErrorRed).Bold(true).Render("MESSAGE:"))
	fmt.Fprintln(&content, lipgloss.NewStyle().Foreground(m.styles.ErrorRed).Render(Wrap(SingleLine(ev.Message), maxWidth)))
	fmt.Fprintln(&content)

	field := func(name, value string) {
		if value == "" {
			return
		}
		fmt.Fprintln(&content, label.Render(name+":"))
		fmt.Fprintln(&content, Wrap(value, maxWidth))
	}
	field("Location", item.Location())
	field("Page", ev.OriginURL)
	field("Tab", ev.TabID)
	field("Source", ev.Source)
	if !ev.Timestamp.IsZero() {
		field("Captured", ev.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(&content)

	if stack := strings.TrimSpace(ev.Stack); stack != "" {
		fmt.Fprintln(&content, label.Render("Stack:"))
		fmt.Fprintln(&content, faint.Render(Wrap(stack, maxWidth)))
		fmt.Fprintln(&content)
	}

	m.renderAnalysis(&content, ev, maxWidth)
	return content.String()
}

func (m MainModel) renderAnalysis(w *strings.Builder, ev contracts.Event, maxWidth int) {
	label := m.styles.LabelStyle()
	statusStyle := lipgloss.NewStyle().Foreground(m.styles.StatusColor(ev.Status)).Bold(true)

	switch {
	case ev.Status == contracts.StatusFailed && ev.Analysis != nil:
		fmt.Fprintln(w, statusStyle.Render("ANALYSIS FAILED:"))
		fmt.Fprintln(w, Wrap(ev.Analysis.Error, maxWidth))
		fmt.Fprintln(w, lipgloss.NewStyle().Foreground(m.styles.TextSecondary).Render("Press r to retry"))
	case ev.Status == contracts.StatusCompleted && ev.Analysis != nil:
		a := ev.Analysis
		sev := lipgloss.NewStyle().Foreground(m.styles.SeverityColor(a.Severity)).Bold(true).Render(strings.ToUpper(string(a.Severity)))
		fmt.Fprintf(w, "%s %s\n\n", statusStyle.Render("ANALYSIS:"), sev)
		for _, part := range []struct{ name, text string }{
			{"Explanation", a.Explanation},
			{"Cause", a.Cause},
			{"Fix", a.Fix},
			{"Prevention", a.Prevention},
		} {
			if part.text == "" {
				continue
			}
			fmt.Fprintln(w, label.Render(part.name+":"))
			fmt.Fprintln(w, Wrap(part.text, maxWidth))
			fmt.Fprintln(w)
		}
	default:
		fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf("Analysis %s...", ev.Status)))
	}
}

// updateDetailContent updates the viewport with content from the selected item
func (m *MainModel) updateDetailContent(item Item) {
	maxWidth := m.detailViewport.Width - 2 // 1 char padding on each side
	if maxWidth < 1 {
		maxWidth = 1
	}
	m.detailViewport.SetContent(ClampLines(m.renderDetail(item, maxWidth), maxWidth))
}

// renderDetailPanel renders the right panel with detail viewport
func (m MainModel) renderDetailPanel(width, height int) string {
	borderColor := m.styles.BorderColor
	if m.detailFocused {
		borderColor = m.styles.AccentBlue
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width - 2).
		Height(height)

	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		headerRow := lipgloss.NewStyle().
			Foreground(m.styles.PrimaryBlue).
			Bold(true).
			Padding(0, 1).
			Render(Truncate("Page: "+selectedItem.Event.OriginURL, width-4, true))

		return lipgloss.JoinVertical(lipgloss.Left, headerRow, box.Render(m.detailViewport.View()))
	}

	placeholderRow := lipgloss.NewStyle().
		Foreground(m.styles.TextSecondary).
		Padding(0, 1).
		Render(" ")

	empty := box.
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render("← Navigate list to view details")

	return lipgloss.JoinVertical(lipgloss.Left, placeholderRow, empty)
}
