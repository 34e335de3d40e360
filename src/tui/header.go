package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/lipgloss"

	"errlens-agent/src/contracts"
)

// filterAll shows every category.
const filterAll = "ALL"

var categoryFilters = []string{
	filterAll,
	string(contracts.CategoryJavaScript),
	string(contracts.CategoryNetwork),
	string(contracts.CategoryDOM),
	string(contracts.CategoryPerformance),
	string(contracts.CategoryCSP),
	string(contracts.CategoryDeprecation),
	string(contracts.CategoryIntervention),
}

// Header represents the top status bar component.
type Header struct {
	counts         map[contracts.Status]int
	total          int
	selectedFilter string
	searchQuery    string
	searchMode     bool
	styles         *StyleConfig
}

// NewHeader creates a new header with the given styles
func NewHeader(styles *StyleConfig) Header {
	return Header{
		counts:         make(map[contracts.Status]int),
		selectedFilter: filterAll,
		styles:         styles,
	}
}

// SetCounts recomputes the per-status totals from items.
func (h *Header) SetCounts(items []Item) {
	h.counts = make(map[contracts.Status]int)
	for _, item := range items {
		h.counts[item.Event.Status]++
	}
	h.total = len(items)
}

// GetFilter returns the current category filter
func (h Header) GetFilter() string {
	return h.selectedFilter
}

// CycleFilter moves to the next category, wrapping back to ALL.
func (h *Header) CycleFilter() {
	next := 0
	if i := slices.Index(categoryFilters, h.selectedFilter); i >= 0 {
		next = (i + 1) % len(categoryFilters)
	}
	h.selectedFilter = categoryFilters[next]
}

// SetSearch updates the search state
func (h *Header) SetSearch(query string, mode bool) {
	h.searchQuery = query
	h.searchMode = mode
}

func (h Header) searchSegment() string {
	style := lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 2)
	switch {
	case h.searchMode:
		return style.Foreground(h.styles.PrimaryBlue).Render("🔍 Search: " + h.searchQuery + "█")
	case h.searchQuery != "":
		return style.Render("🔍 Search: " + h.searchQuery)
	default:
		return style.Render("🔍 [/] to search")
	}
}

// Render draws the status bar: totals per status, the category filter and
// the search box, clamped to width.
func (h Header) Render(width int) string {
	bold := lipgloss.NewStyle().Foreground(h.styles.PrimaryBlue).Bold(true).Padding(0, 2)
	totals := fmt.Sprintf("🐞 %d errors · %d pending · %d analyzing · %d failed",
		h.total,
		h.counts[contracts.StatusPending],
		h.counts[contracts.StatusAnalyzing],
		h.counts[contracts.StatusFailed])

	bar := lipgloss.NewStyle().
		Background(h.styles.DarkBackground).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left,
			bold.Render(totals),
			bold.Render("Category: "+h.selectedFilter),
			h.searchSegment()))

	return ClampLines(bar, width)
}
