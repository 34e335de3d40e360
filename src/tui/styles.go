package tui

import (
	"github.com/charmbracelet/lipgloss"

	"errlens-agent/src/contracts"
)

// StyleConfig holds all customizable style colors for the error console.
type StyleConfig struct {
	// Primary colors
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color
	ErrorRed       lipgloss.Color

	Severity map[contracts.Severity]lipgloss.Color
	Status   map[contracts.Status]lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		ErrorRed:       lipgloss.Color("#F28B82"),
		Severity: map[contracts.Severity]lipgloss.Color{
			contracts.SeverityCritical: lipgloss.Color("#EA4335"),
			contracts.SeverityHigh:     lipgloss.Color("#FA7B17"),
			contracts.SeverityMedium:   lipgloss.Color("#FBBC04"),
			contracts.SeverityLow:      lipgloss.Color("#34A853"),
		},
		Status: map[contracts.Status]lipgloss.Color{
			contracts.StatusPending:   lipgloss.Color("#9AA0A6"),
			contracts.StatusAnalyzing: lipgloss.Color("#FFD700"),
			contracts.StatusCompleted: lipgloss.Color("#34A853"),
			contracts.StatusFailed:    lipgloss.Color("#EA4335"),
		},
	}
}

// SeverityColor returns the color for sev, or the secondary text color.
func (s *StyleConfig) SeverityColor(sev contracts.Severity) lipgloss.Color {
	if c, ok := s.Severity[sev]; ok {
		return c
	}
	return s.TextSecondary
}

// StatusColor returns the color for status, or the secondary text color.
func (s *StyleConfig) StatusColor(status contracts.Status) lipgloss.Color {
	if c, ok := s.Status[status]; ok {
		return c
	}
	return s.TextSecondary
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// LabelStyle returns the style for detail section labels.
func (s *StyleConfig) LabelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Bold(true)
}
