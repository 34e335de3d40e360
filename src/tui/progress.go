package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ASCII art logo lines for the idle screen
var errlensLogo = []string{
	" ███████ ██████  ██████  ██      ███████ ███    ██ ███████",
	" ██      ██   ██ ██   ██ ██      ██      ████   ██ ██",
	" █████   ██████  ██████  ██      █████   ██ ██  ██ ███████",
	" ██      ██   ██ ██   ██ ██      ██      ██  ██ ██      ██",
	" ███████ ██   ██ ██   ██ ███████ ███████ ██   ████ ███████",
}

// Gradient colors from light (top) to dark (bottom)
var logoGradientColors = []string{
	"#F28B82",
	"#EE675C",
	"#EA4335",
	"#D33B2C",
	"#B31412",
}

// Spinner frames for the loading animation and analyzing rows
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// ProgressMsg updates the idle screen status line.
type ProgressMsg struct {
	Stage string
}

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

// ProgressModel is the idle screen shown while the log is empty.
type ProgressModel struct {
	stage        string
	spinnerFrame int
}

func NewProgressModel() ProgressModel {
	return ProgressModel{stage: "Loading"}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

// Frame returns the current spinner frame index.
func (m ProgressModel) Frame() int {
	return m.spinnerFrame
}

// Update advances the spinner. The spinner keeps ticking for the life of
// the program because analyzing rows reuse it.
func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.stage = msg.Stage
	case SpinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, SpinnerTick()
	}
	return m, nil
}

// View draws the logo in its red gradient with the spinner and stage below.
func (m ProgressModel) View() string {
	lines := make([]string, 0, len(errlensLogo)+3)
	for i, line := range errlensLogo {
		shade := lipgloss.Color(logoGradientColors[i%len(logoGradientColors)])
		lines = append(lines, lipgloss.NewStyle().Foreground(shade).Bold(true).Render(line))
	}

	spin := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Render(spinnerFrames[m.spinnerFrame])
	lines = append(lines, "", fmt.Sprintf("%s %s...", spin, m.stage))
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}
