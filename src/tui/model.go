// Package tui is the terminal error console: a live list of captured events
// with their analysis, fed by ingestion notifications.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"errlens-agent/src/api"
	"errlens-agent/src/contracts"
	"errlens-agent/src/store"
)

// pollInterval is how often the list is reloaded when no notification
// stream is available.
const pollInterval = 2 * time.Second

// LoadStatus tracks whether the initial log has arrived.
type LoadStatus int

const (
	StatusLoading LoadStatus = iota
	StatusReady
)

// NotificationMsg carries one ingestion notification into the program.
type NotificationMsg contracts.Notification

type notificationsClosedMsg struct{}

type errorsLoadedMsg struct {
	events []contracts.Event
	err    error
}

type pollMsg struct{}

type actionResultMsg struct {
	action string
	id     string
	err    error
}

// MainModel is the root bubbletea model.
type MainModel struct {
	ctx     context.Context
	backend api.Backend
	notes   <-chan contracts.Notification
	limit   int

	header         Header
	width          int
	height         int
	ready          bool
	status         LoadStatus
	items          []Item
	progress       ProgressModel
	styles         *StyleConfig
	detailFocused  bool
	listView       View
	detailViewport viewport.Model
	help           help.Model
	searchQuery    string
	searchMode     bool
	flash          string
}

// NewModel creates the console model. notes may be nil, in which case the
// list is polled from backend.
func NewModel(ctx context.Context, backend api.Backend, notes <-chan contracts.Notification) MainModel {
	styles := DefaultStyles()
	return MainModel{
		ctx:            ctx,
		backend:        backend,
		notes:          notes,
		limit:          store.DefaultLimit,
		header:         NewHeader(styles),
		progress:       NewProgressModel(),
		styles:         styles,
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		help:           newHelp(styles),
	}
}

// Start runs the console until the user quits or ctx is cancelled.
func Start(ctx context.Context, backend api.Backend, notes <-chan contracts.Notification) error {
	p := tea.NewProgram(NewModel(ctx, backend, notes), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run console: %w", err)
	}
	return nil
}

func (m MainModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadErrors(), SpinnerTick()}
	if m.notes != nil {
		cmds = append(cmds, waitForNotification(m.notes))
	}
	return tea.Batch(cmds...)
}

func (m MainModel) loadErrors() tea.Cmd {
	return func() tea.Msg {
		events, err := m.backend.Errors(m.ctx)
		return errorsLoadedMsg{events: events, err: err}
	}
}

func waitForNotification(ch <-chan contracts.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notificationsClosedMsg{}
		}
		return NotificationMsg(n)
	}
}

func schedulePoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m MainModel) clearErrors() tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{action: "clear", err: m.backend.Clear(m.ctx)}
	}
}

func (m MainModel) requeue(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.backend.Requeue(m.ctx, id)
		return actionResultMsg{action: "requeue", id: id, err: err}
	}
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case errorsLoadedMsg:
		var cmd tea.Cmd
		if m.notes == nil {
			cmd = schedulePoll()
		}
		if msg.err != nil {
			m.flash = fmt.Sprintf("Failed to load errors: %v", msg.err)
			return m, cmd
		}
		m.status = StatusReady
		m.progress, _ = m.progress.Update(ProgressMsg{Stage: "Waiting for errors"})
		m.items = itemsFromEvents(msg.events)
		m.applyFilter()
		return m, cmd

	case pollMsg:
		return m, m.loadErrors()

	case NotificationMsg:
		m.apply(contracts.Notification(msg))
		return m, waitForNotification(m.notes)

	case notificationsClosedMsg:
		m.flash = "Notification stream closed"
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			return m, nil
		}
		switch msg.action {
		case "clear":
			m.flash = "Cleared all errors"
		case "requeue":
			m.flash = fmt.Sprintf("Requeued %s", msg.id)
		}
		if m.notes == nil {
			return m, m.loadErrors()
		}
		return m, nil

	case SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		m.listView.SetSpinnerFrame(m.progress.Frame())
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// apply folds one notification into the item list.
func (m *MainModel) apply(n contracts.Notification) {
	switch n.Kind {
	case contracts.NotifyNewEvent:
		if n.Event == nil || m.indexOf(n.Event.ID) >= 0 {
			return
		}
		m.items = append([]Item{{Event: *n.Event}}, m.items...)
		if len(m.items) > m.limit {
			m.items = m.items[:m.limit]
		}
	case contracts.NotifyStatusUpdated:
		i := m.indexOf(n.ID)
		if i < 0 {
			return
		}
		m.items[i].Event.Status = n.Status
		if n.Status == contracts.StatusPending {
			m.items[i].Event.Analysis = nil
		}
	case contracts.NotifyAnalysisCompleted:
		if n.Event == nil {
			return
		}
		if i := m.indexOf(n.Event.ID); i >= 0 {
			m.items[i].Event = *n.Event
		}
	case contracts.NotifyAnalysisFailed:
		if i := m.indexOf(n.ID); i >= 0 {
			m.items[i].Event.Status = contracts.StatusFailed
			m.items[i].Event.Analysis = &contracts.Analysis{Error: n.Error}
		}
	case contracts.NotifyErrorsCleared:
		m.items = nil
		m.detailFocused = false
	default:
		return
	}
	m.applyFilter()
}

func (m MainModel) indexOf(id string) int {
	for i, item := range m.items {
		if item.Event.ID == id {
			return i
		}
	}
	return -1
}

func (m MainModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searchMode {
		switch msg.Type {
		case tea.KeyEsc:
			m.searchQuery = ""
			m.searchMode = false
		case tea.KeyEnter:
			m.searchMode = false
		case tea.KeyBackspace:
			if r := []rune(m.searchQuery); len(r) > 0 {
				m.searchQuery = string(r[:len(r)-1])
			}
		case tea.KeyRunes, tea.KeySpace:
			m.searchQuery += string(msg.Runes)
		default:
			return m, nil
		}
		m.header.SetSearch(m.searchQuery, m.searchMode)
		m.applyFilter()
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Search):
		m.searchMode = true
		m.detailFocused = false
		m.header.SetSearch(m.searchQuery, true)
		return m, nil
	case key.Matches(msg, keys.Category):
		m.header.CycleFilter()
		m.applyFilter()
		return m, nil
	case key.Matches(msg, keys.Open):
		if m.listView.Len() > 0 {
			m.detailFocused = true
		}
		return m, nil
	case key.Matches(msg, keys.Back):
		if m.detailFocused {
			m.detailFocused = false
		} else if m.searchQuery != "" {
			m.searchQuery = ""
			m.header.SetSearch("", false)
			m.applyFilter()
		}
		return m, nil
	case key.Matches(msg, keys.Clear):
		m.flash = "Clearing..."
		return m, m.clearErrors()
	case key.Matches(msg, keys.Retry):
		item, ok := m.listView.GetSelectedItem()
		if !ok {
			return m, nil
		}
		if item.Event.Status != contracts.StatusFailed {
			m.flash = "Only failed analyses can be retried"
			return m, nil
		}
		return m, m.requeue(item.Event.ID)
	}

	var cmd tea.Cmd
	if m.detailFocused {
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}
	m.listView, cmd = m.listView.Update(msg)
	if selectedItem, ok := m.listView.GetSelectedItem(); ok {
		m.updateDetailContent(selectedItem)
	}
	return m, cmd
}
