package tui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// View manages the list of captured events.
type View struct {
	list     list.Model
	items    []Item
	delegate *Delegate
}

// NewView creates a new event list view
func NewView(styles *StyleConfig) View {
	delegate := &Delegate{styles: styles}
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return View{
		list:     l,
		items:    []Item{},
		delegate: delegate,
	}
}

// Update handles list navigation
func (v View) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// SetSize sets the list dimensions
func (v *View) SetSize(width, height int) {
	v.list.SetSize(width, height)
}

// SetItems replaces the list items, keeping the selection on the same
// event when it is still present.
func (v *View) SetItems(items []Item) {
	selected, hadSelection := v.GetSelectedItem()
	v.items = items

	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}
	v.list.SetItems(listItems)

	if !hadSelection {
		return
	}
	for i, item := range items {
		if item.Event.ID == selected.Event.ID {
			v.list.Select(i)
			return
		}
	}
}

// Len returns the number of visible items.
func (v View) Len() int {
	return len(v.items)
}

// GetSelectedItem returns the currently selected event
func (v View) GetSelectedItem() (Item, bool) {
	if len(v.list.Items()) == 0 {
		return Item{}, false
	}
	item, ok := v.list.SelectedItem().(Item)
	return item, ok
}

// SetSpinnerFrame advances the analyzing marker.
func (v *View) SetSpinnerFrame(frame int) {
	v.delegate.SetSpinnerFrame(frame)
}

// Render returns the string representation of the view
func (v View) Render() string {
	return v.list.View()
}
