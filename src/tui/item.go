package tui

import (
	"fmt"

	"errlens-agent/src/contracts"
)

// Item wraps a captured event and implements bubbles/list.Item.
type Item struct {
	Event contracts.Event
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Event.Message }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return SingleLine(i.Event.Message) }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return string(i.Event.Type) }

// Location returns file:line:col, or the page URL when the event has no
// source position.
func (i Item) Location() string {
	ev := i.Event
	if ev.Filename == "" {
		return ev.OriginURL
	}
	if ev.Lineno > 0 {
		return fmt.Sprintf("%s:%d:%d", ev.Filename, ev.Lineno, ev.Colno)
	}
	return ev.Filename
}

// Severity returns the analysed severity, empty until analysis completes.
func (i Item) Severity() contracts.Severity {
	if i.Event.Status != contracts.StatusCompleted || i.Event.Analysis == nil {
		return ""
	}
	return i.Event.Analysis.Severity
}

func itemsFromEvents(events []contracts.Event) []Item {
	items := make([]Item, len(events))
	for i, ev := range events {
		items[i] = Item{Event: ev}
	}
	return items
}
