package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/views/chat"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/views/documents"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/views/menu"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/views/search"
)

var _ tea.Model = (*App)(nil)

// App routes messages between the menu, chat, search and documents views.
//
// Stream, search and document results always reach the view that asked for
// them, so an answer keeps streaming while the user looks at another view.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	menu      *menu.View
	chat      *chat.View
	search    *search.View
	documents *documents.View

	active        messages.ViewType
	err           error
	width, height int
	ready         bool
}

// NewApp builds every view over ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:     ports,
		ctx:       context.Background(),
		styles:    s,
		keymap:    km,
		help:      help.New(),
		menu:      menu.NewView(s),
		chat:      chat.NewView(s, km, ports.Chat, ports.Memory),
		search:    search.NewView(s, km, ports.Search),
		documents: documents.NewView(s, km, ports.Ingestion, ports.DataDir),
		active:    messages.ViewMenu,
	}, nil
}

// WithContext sets the context every service call runs under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chat.WithContext(ctx)
	a.search.WithContext(ctx)
	a.documents.WithContext(ctx)
	return a
}

// Init switches to the alternate screen.
func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tea.SetWindowTitle("ribo - RNA design assistant"))
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if keymap.Matches(msg.String(), a.keymap.Quit) {
			return a, a.quit()
		}
		if a.active == messages.ViewHelp {
			if keymap.Matches(msg.String(), a.keymap.Back) {
				a.active = messages.ViewMenu
			}
			return a, nil
		}
		return a, a.forward(a.active, msg)

	case messages.ViewChanged:
		return a, a.open(msg.View)

	case messages.StreamStarted, messages.StreamEvent:
		return a, a.forward(messages.ViewChat, msg)

	case messages.SearchCompleted:
		return a, a.forward(messages.ViewSearch, msg)

	case messages.DocumentsLoaded, messages.DocumentRemoved, messages.IngestCompleted:
		return a, a.forward(messages.ViewDocuments, msg)

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.forward(a.active, msg)

	case messages.Quit:
		return a, a.quit()
	}

	// Cursor blinks and the like go to whatever is on screen.
	return a, a.forward(a.active, msg)
}

// forward delivers msg to one view.
func (a *App) forward(to messages.ViewType, msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch to {
	case messages.ViewMenu:
		a.menu, cmd = a.menu.Update(msg)
	case messages.ViewChat:
		a.chat, cmd = a.chat.Update(msg)
	case messages.ViewSearch:
		a.search, cmd = a.search.Update(msg)
		a.err = a.search.Err()
	case messages.ViewDocuments:
		a.documents, cmd = a.documents.Update(msg)
	case messages.ViewHelp:
	}
	return cmd
}

// open makes view active and starts whatever it shows on entry.
func (a *App) open(view messages.ViewType) tea.Cmd {
	a.active = view
	switch view {
	case messages.ViewChat:
		return a.chat.Init()
	case messages.ViewSearch:
		a.search.Reset()
		return a.search.Init()
	case messages.ViewDocuments:
		return a.documents.Load()
	case messages.ViewMenu, messages.ViewHelp:
	}
	return nil
}

// quit stops any answer in flight before leaving.
func (a *App) quit() tea.Cmd {
	a.chat.Stop()
	return tea.Quit
}

// View renders the active view.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.active {
	case messages.ViewChat:
		return a.chat.View()
	case messages.ViewSearch:
		return a.search.View()
	case messages.ViewDocuments:
		return a.documents.View()
	case messages.ViewHelp:
		return a.helpView()
	case messages.ViewMenu:
	}
	return a.menu.View()
}

func (a *App) helpView() string {
	a.help.Width = a.width
	out := a.styles.Title.Render("Help") + "\n\n" + a.help.FullHelpView(a.keymap.FullHelp()) + "\n\n"
	if a.ports.DataDir != "" {
		out += a.styles.Muted.Render("Documents are ingested from "+a.ports.DataDir) + "\n\n"
	}
	return out + a.styles.Help.Render("[esc] back to menu")
}

// Run blocks until the user quits or the context ends.
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx)).Run()
	return err
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType { return a.active }

// Err returns the last error seen.
func (a *App) Err() error { return a.err }

// Ready reports whether a window size has been received.
func (a *App) Ready() bool { return a.ready }

// SetDimensions resizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width, a.height = width, height
	a.ready = true
	a.menu.SetDimensions(width, height)
	a.chat.SetDimensions(width, height)
	a.search.SetDimensions(width, height)
	a.documents.SetDimensions(width, height)
}
