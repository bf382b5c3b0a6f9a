// Package input is the labelled one-line prompt used by the chat and
// search views.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
)

const (
	// charLimit leaves room for pasted sequences.
	charLimit    = 4096
	defaultWidth = 50
	minWidth     = 20
)

// Field is a bubbles textinput with a label in front. The embedded model
// provides Value, SetValue, Focus, Blur, Focused and Reset.
type Field struct {
	textinput.Model
	styles *styles.Styles
	label  string
}

// New returns a focused field.
func New(s *styles.Styles, label, placeholder string) *Field {
	if s == nil {
		s = styles.DefaultStyles()
	}
	m := textinput.New()
	m.Placeholder = placeholder
	m.CharLimit = charLimit
	m.Width = defaultWidth
	m.Focus()
	return &Field{Model: m, styles: s, label: label}
}

func NewSearchInput(s *styles.Styles) *Field {
	return New(s, "Search", "Enter search query...")
}

func NewChatInput(s *styles.Styles) *Field {
	return New(s, "Ask", "Ask about RNA design...")
}

func (f *Field) Label() string { return f.label }

// Init starts the cursor blinking.
func (f *Field) Init() tea.Cmd { return textinput.Blink }

func (f *Field) Update(msg tea.Msg) (*Field, tea.Cmd) {
	var cmd tea.Cmd
	f.Model, cmd = f.Model.Update(msg)
	return f, cmd
}

func (f *Field) View() string {
	//nolint:misspell
	return lipgloss.JoinHorizontal(lipgloss.Center,
		f.renderLabel(), f.styles.InputField.Render(f.Model.View()))
}

// SetWidth fits label, frame and text into width columns, keeping at least
// minWidth for the text.
func (f *Field) SetWidth(width int) {
	inner := width - lipgloss.Width(f.renderLabel()) - f.styles.InputField.GetHorizontalFrameSize() - 1
	f.Model.Width = max(inner, minWidth)
}

func (f *Field) renderLabel() string {
	return f.styles.Title.Render(f.label + ": ")
}
