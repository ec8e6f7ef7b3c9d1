// Package styles holds the palette and lipgloss styles of the chat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette. Each colour carries a light and a dark variant and
// lipgloss picks one from the terminal background.
type Theme struct {
	User       lipgloss.AdaptiveColor
	Agent      lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Citation   lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
	Bar        lipgloss.AdaptiveColor
}

// DefaultTheme is amber for the user and cyan for quarry's answers.
func DefaultTheme() *Theme {
	return &Theme{
		User:       lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#D97706"},
		Agent:      lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#06B6D4"},
		Foreground: lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"},
		Muted:      lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6C7086"},
		Citation:   lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#A6E3A1"},
		Error:      lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F38BA8"},
		Border:     lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#45475A"},
		Bar:        lipgloss.AdaptiveColor{Light: "#F3F4F6", Dark: "#181825"},
	}
}

// Styles are the rendered styles the components draw with.
type Styles struct {
	theme *Theme

	Title  lipgloss.Style
	Normal lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style

	// Question and Answer label the two sides of a turn.
	Question lipgloss.Style
	Answer   lipgloss.Style

	Citation   lipgloss.Style
	Trace      lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
}

// NewStyles builds Styles from theme, or from DefaultTheme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.TerminalColor) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c)
	}

	return &Styles{
		theme:    theme,
		Title:    fg(theme.User).Bold(true),
		Normal:   fg(theme.Foreground),
		Muted:    fg(theme.Muted),
		Error:    fg(theme.Error),
		Question: fg(theme.User).Bold(true),
		Answer:   fg(theme.Agent).Bold(true),
		Citation: fg(theme.Citation),
		Trace:    fg(theme.Muted).Italic(true),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
		StatusBar: fg(theme.Muted).Background(theme.Bar).Padding(0, 1),
	}
}

// DefaultStyles is NewStyles(DefaultTheme()).
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

func (s *Styles) Theme() *Theme {
	return s.theme
}
