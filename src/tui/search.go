package tui

import (
	"strings"
)

// matches reports whether the event contains query in any of its
// searchable text fields. query must be lower case.
func (i Item) matches(query string) bool {
	ev := i.Event
	fields := []string{ev.Message, string(ev.Type), ev.Filename, ev.OriginURL, ev.Stack, ev.ID}
	if ev.Analysis != nil {
		fields = append(fields, ev.Analysis.Explanation, ev.Analysis.Error)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// applyFilter filters items by category and search query
func (m *MainModel) applyFilter() {
	filter := m.header.GetFilter()
	query := strings.ToLower(strings.TrimSpace(m.searchQuery))

	filtered := make([]Item, 0, len(m.items))
	for _, item := range m.items {
		if filter != filterAll && string(item.Event.Category) != filter {
			continue
		}
		if query != "" && !item.matches(query) {
			continue
		}
		filtered = append(filtered, item)
	}

	m.header.SetCounts(m.items)
	m.listView.SetItems(filtered)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	} else {
		m.detailViewport.SetContent("")
	}
}
