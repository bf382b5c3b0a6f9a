// Package menu is the start screen.
package menu

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
)

// Item is one entry of the menu. Quit entries end the program instead of
// switching view.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

// DefaultItems is the menu shown at start-up.
func DefaultItems() []Item {
	return []Item{
		{Label: "Chat", Hint: "ask about RNA design; answers cite your papers", View: messages.ViewChat},
		{Label: "Search literature", Hint: "rank passages and page images", View: messages.ViewSearch},
		{Label: "Documents", Hint: "indexed papers, ingestion and memory", View: messages.ViewDocuments},
		{Label: "Help", Hint: "key bindings", View: messages.ViewHelp},
		{Label: "Quit", Quit: true},
	}
}

// View is the menu screen.
type View struct {
	styles        *styles.Styles
	items         []Item
	cursor        int
	width, height int
	ready         bool
}

// NewView creates the menu with DefaultItems. Nil styles use the defaults.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{styles: s, items: DefaultItems(), width: 80, height: 24}
}

// Init does nothing; the menu has no background work.
func (v *View) Init() tea.Cmd { return nil }

// Update moves the cursor or activates an entry. Digits activate the
// matching entry directly.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case tea.KeyMsg:
		return v, v.handleKey(msg.String())
	}
	return v, nil
}

func (v *View) handleKey(key string) tea.Cmd {
	switch key {
	case "up", "k":
		v.cursor = (v.cursor - 1 + len(v.items)) % len(v.items)
	case "down", "j", "tab":
		v.cursor = (v.cursor + 1) % len(v.items)
	case "enter":
		return v.activate(v.cursor)
	case "q":
		return tea.Quit
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(v.items) {
			v.cursor = n - 1
			return v.activate(v.cursor)
		}
	}
	return nil
}

func (v *View) activate(i int) tea.Cmd {
	item := v.items[i]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("ribo") + "\n\n")
	b.WriteString(v.styles.Muted.Render("RNA design assistant") + "\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d. %s", i+1, item.Label)
		if i == v.cursor {
			b.WriteString("> " + v.styles.Selected.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if item.Hint != "" {
			b.WriteString("  " + v.styles.Muted.Render(item.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + v.styles.Help.Render("[j/k] Navigate  [1-5] Jump  [Enter] Select  [q] Quit"))
	return b.String()
}

// SetDimensions records the terminal size.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
}

// Items returns the menu entries.
func (v *View) Items() []Item { return v.items }

// Selected returns the cursor position.
func (v *View) Selected() int { return v.cursor }
