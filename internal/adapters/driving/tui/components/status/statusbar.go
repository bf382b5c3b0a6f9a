// Package status renders the one-line bar at the bottom of each view.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
)

// State is what the view is doing.
type State string

const (
	StateReady     State = "ready"
	StateThinking  State = "thinking"
	StateStreaming State = "streaming"
	StateSearching State = "searching"
	StateResults   State = "results"
	StateError     State = "error"
)

// busyLabels are shown while a state is in progress and no message is set.
var busyLabels = map[State]string{
	StateThinking:  "Thinking...",
	StateStreaming: "Answering...",
	StateSearching: "Searching...",
}

// Bar shows the state on the left and key hints on the right.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	results int
	hints   []key.Binding
	width   int
}

// NewBar returns a ready bar. Nil styles or keymap use the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

// View renders the bar across the full width.
func (b *Bar) View() string {
	left, right := b.status(), b.keyHints()
	inner := b.width - b.styles.StatusBar.GetHorizontalFrameSize()
	gap := max(inner-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) status() string {
	switch b.state {
	case StateError:
		if b.message == "" {
			return b.styles.Error.Render("Error")
		}
		return b.styles.Error.Render("Error: " + b.message)
	case StateStreaming:
		// Tool progress replaces the generic label.
		if b.message != "" {
			return b.styles.Tool.Render(b.message)
		}
	case StateReady, StateResults:
		switch {
		case b.results > 0:
			return b.styles.Normal.Render(fmt.Sprintf("%d results", b.results))
		case b.message != "":
			return b.styles.Success.Render(b.message)
		}
		return b.styles.Muted.Render("Ready")
	}
	if label, ok := busyLabels[b.state]; ok {
		return b.styles.Muted.Render(label)
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) keyHints() string {
	bindings := b.hints
	if len(bindings) == 0 {
		bindings = b.keymap.ShortHelp()
		if b.state == StateResults && b.results > 0 {
			bindings = b.keymap.ResultsHelp()
		}
	}

	parts := make([]string, len(bindings))
	for i, kb := range bindings {
		parts[i] = kb.Help().Key + ": " + kb.Help().Desc
	}
	return b.styles.Muted.Render(strings.Join(parts, " | "))
}

// SetState changes the state.
func (b *Bar) SetState(s State) { b.state = s }

// State returns the state.
func (b *Bar) State() State { return b.state }

// SetMessage sets the text shown with the state.
func (b *Bar) SetMessage(m string) { b.message = m }

// Message returns the text shown with the state.
func (b *Bar) Message() string { return b.message }

// SetResultCount sets the hit count shown after a search.
func (b *Bar) SetResultCount(n int) { b.results = n }

// ResultCount returns the hit count.
func (b *Bar) ResultCount() int { return b.results }

// SetHints pins the key hints. Nil restores the per-state defaults.
func (b *Bar) SetHints(bindings []key.Binding) { b.hints = bindings }

// SetWidth sets the width the bar fills.
func (b *Bar) SetWidth(w int) { b.width = w }

// Width returns the width the bar fills.
func (b *Bar) Width() int { return b.width }

// Clear returns the bar to ready with no message or count.
func (b *Bar) Clear() {
	b.state, b.message, b.results = StateReady, "", 0
}
