// Package styles holds the TUI palette and the lipgloss styles built on it.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme is the colour palette.
type Theme struct {
	Accent  lipgloss.Color // titles, assistant turns, selection
	Accent2 lipgloss.Color // subtitles, user turns
	Text    lipgloss.Color
	Dim     lipgloss.Color
	Good    lipgloss.Color
	Caution lipgloss.Color // tool progress
	Bad     lipgloss.Color
	Frame   lipgloss.Color
	Bar     lipgloss.Color // status bar background
}

// DefaultTheme is teal on a dark background.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:  "#14B8A6",
		Accent2: "#A78BFA",
		Text:    "#CDD6F4",
		Dim:     "#6C7086",
		Good:    "#A6E3A1",
		Caution: "#F9E2AF",
		Bad:     "#F38BA8",
		Frame:   "#45475A",
		Bar:     "#181825",
	}
}

// Styles are the rendering styles shared by every view.
type Styles struct {
	theme *Theme

	Title, Subtitle lipgloss.Style
	Normal, Muted   lipgloss.Style
	Selected        lipgloss.Style
	Error, Success  lipgloss.Style

	InputField, StatusBar, Help, Border lipgloss.Style

	// Conversation.
	User, Assistant, Citation, Tool lipgloss.Style
}

// NewStyles derives styles from theme; nil means DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	framed := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Frame)

	return &Styles{
		theme: theme,

		Title:    fg(theme.Accent).Bold(true),
		Subtitle: fg(theme.Accent2).Bold(true),
		Normal:   fg(theme.Text),
		Muted:    fg(theme.Dim),
		Selected: fg(theme.Text).Background(theme.Accent).Bold(true),
		Error:    fg(theme.Bad),
		Success:  fg(theme.Good),

		InputField: framed.Padding(0, 1),
		StatusBar:  fg(theme.Dim).Background(theme.Bar).Padding(0, 1),
		Help:       fg(theme.Dim),
		Border:     framed,

		User:      fg(theme.Accent2).Bold(true),
		Assistant: fg(theme.Accent).Bold(true),
		Citation:  fg(theme.Dim).Italic(true),
		Tool:      fg(theme.Caution),
	}
}

// DefaultStyles is NewStyles(DefaultTheme()).
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
