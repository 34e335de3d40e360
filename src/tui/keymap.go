package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Back     key.Binding
	Category key.Binding
	Search   key.Binding
	Retry    key.Binding
	Clear    key.Binding
	Quit     key.Binding

	Apply  key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "nav")),
	Down:     key.NewBinding(key.WithKeys("j", "down")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "view")),
	Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Category: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "category")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	Apply:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

// bindings returns the help line for the current mode.
func (m MainModel) bindings() []key.Binding {
	switch {
	case m.searchMode:
		return []key.Binding{keys.Apply, keys.Cancel}
	case m.detailFocused:
		scroll := key.NewBinding(key.WithKeys("j", "k"), key.WithHelp("j/k", "scroll"))
		return []key.Binding{scroll, keys.Retry, keys.Back, keys.Quit}
	default:
		return []key.Binding{keys.Up, keys.Open, keys.Category, keys.Retry, keys.Clear, keys.Search, keys.Quit}
	}
}

func newHelp(styles *StyleConfig) help.Model {
	h := help.New()
	keyStyle := lipgloss.NewStyle().Foreground(styles.PrimaryBlue).Bold(true)
	dim := lipgloss.NewStyle().Foreground(styles.TextSecondary)
	h.Styles.ShortKey = keyStyle
	h.Styles.ShortDesc = dim
	h.Styles.ShortSeparator = dim
	h.ShortSeparator = " • "
	return h
}
