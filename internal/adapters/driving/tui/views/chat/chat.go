// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/components/input"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/components/status"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// ErrNoChatService indicates that no chat service was provided.
var ErrNoChatService = errors.New("chat service is required")

// Turn is one exchange shown in the transcript.
type Turn struct {
	User      string
	Assistant string
	Label     domain.Label
	Tools     []string
	Citations []domain.Citation
	Err       string
	Done      bool
}

// View is the chat view: a scrolling transcript above a prompt.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.Field
	transcript viewport.Model
	statusbar  *status.Bar

	chatService   driving.ChatService
	memoryService driving.MemoryService
	ctx           context.Context

	turns  []Turn
	handle *driving.StreamHandle
	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	chatService driving.ChatService,
	memoryService driving.MemoryService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	bar := status.NewBar(s, km)
	bar.SetHints(km.ChatHelp())

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewChatInput(s),
		transcript:    viewport.New(80, 16),
		statusbar:     bar,
		chatService:   chatService,
		memoryService: memoryService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
	}
}

// WithContext sets the context streams are started under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.StreamStarted:
		if msg.Err != nil {
			v.finish("", msg.Err.Error())
			return v, nil
		}
		v.handle = msg.Handle
		return v, next(msg.Handle)

	case messages.StreamEvent:
		return v.handleStreamEvent(msg)

	case messages.ErrorOccurred:
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	return v, nil
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	km := v.keymap
	key := msg.String()

	switch {
	case keymap.Matches(key, km.Back):
		v.Stop()
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}

	case keymap.Matches(key, km.Stop):
		v.Stop()
		return v, nil

	case keymap.Matches(key, km.ClearMemory):
		if v.Streaming() {
			return v, nil
		}
		if v.memoryService != nil {
			v.memoryService.Clear()
		}
		v.turns = nil
		v.refresh()
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Memory cleared")
		return v, nil

	case keymap.Matches(key, km.Send):
		return v, v.send()
	}

	// Arrows and page keys scroll the transcript; everything else is typed.
	//nolint:exhaustive // only scrolling keys are forwarded
	switch msg.Type {
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send starts a streaming request for the current prompt.
func (v *View) send() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" || v.Streaming() {
		return nil
	}
	v.input.Reset()
	v.turns = append(v.turns, Turn{User: text})
	v.statusbar.SetState(status.StateThinking)
	v.statusbar.SetMessage("")
	v.refresh()

	svc, ctx := v.chatService, v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.StreamStarted{Err: ErrNoChatService}
		}
		handle, err := svc.ChatStream(ctx, domain.ChatRequest{Message: text})
		return messages.StreamStarted{Handle: handle, Err: err}
	}
}

// next reads one event from the stream.
func next(h *driving.StreamHandle) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-h.Events
		if !ok {
			return messages.StreamEvent{RequestID: h.ID, Closed: true}
		}
		return messages.StreamEvent{RequestID: h.ID, Event: ev}
	}
}

func (v *View) handleStreamEvent(msg messages.StreamEvent) (*View, tea.Cmd) {
	// Events of a stream we already left behind are dropped.
	if v.handle == nil || msg.RequestID != v.handle.ID {
		return v, nil
	}
	if msg.Closed {
		v.finish("", "")
		return v, nil
	}

	turn := v.current()
	ev := msg.Event
	switch ev.Type {
	case domain.EventToken:
		turn.Assistant += ev.Content
		v.statusbar.SetState(status.StateStreaming)
		v.statusbar.SetMessage("")

	case domain.EventToolStatus:
		line := fmt.Sprintf("%s: %s", ev.Tool, ev.Status)
		if ev.Message != "" {
			line += " (" + ev.Message + ")"
		}
		turn.Tools = append(turn.Tools, line)
		v.statusbar.SetState(status.StateStreaming)
		v.statusbar.SetMessage(line)

	case domain.EventComplete:
		if resp := ev.Response; resp != nil {
			turn.Label = resp.Label
			turn.Citations = resp.Citations
			if turn.Assistant == "" {
				turn.Assistant = resp.Response
			}
		}
		v.finish("", "")
		return v, nil

	case domain.EventError:
		v.finish(ev.Content, ev.Message)
		return v, nil
	}

	v.refresh()
	return v, next(v.handle)
}

// finish closes the current turn. content replaces an empty answer.
func (v *View) finish(content, errText string) {
	if turn := v.current(); turn != nil {
		if turn.Assistant == "" {
			turn.Assistant = content
		}
		turn.Err = errText
		turn.Done = true
	}
	v.handle = nil
	if errText != "" {
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(errText)
	} else {
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("")
	}
	v.refresh()
}

// Stop cancels the in-flight request. The stream still delivers its terminal event.
func (v *View) Stop() {
	if v.handle != nil && v.handle.Cancel != nil {
		v.handle.Cancel()
	}
}

func (v *View) current() *Turn {
	if len(v.turns) == 0 {
		return nil
	}
	return &v.turns[len(v.turns)-1]
}

// refresh re-renders the transcript and keeps the newest text in view.
func (v *View) refresh() {
	v.transcript.SetContent(v.renderTranscript())
	v.transcript.GotoBottom()
}

func (v *View) renderTranscript() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("Ask about RNA design, structure prediction or the indexed literature.")
	}

	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	var b strings.Builder
	for i, turn := range v.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(v.styles.User.Render("You: "))
		b.WriteString(wrap.Render(turn.User))
		b.WriteString("\n")

		for _, t := range turn.Tools {
			b.WriteString(v.styles.Tool.Render("  ⚙ " + t))
			b.WriteString("\n")
		}

		b.WriteString(v.styles.Assistant.Render("ribo: "))
		switch {
		case turn.Assistant != "":
			b.WriteString(wrap.Render(turn.Assistant))
		case !turn.Done:
			b.WriteString(v.styles.Muted.Render("..."))
		}
		b.WriteString("\n")

		if turn.Err != "" {
			b.WriteString(v.styles.Error.Render("  " + turn.Err))
			b.WriteString("\n")
		}
		for _, c := range turn.Citations {
			b.WriteString(v.styles.Citation.Render("  " + c.Reference))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("Chat"),
		"",
		v.transcript.View(),
		"",
		v.input.View(),
		"",
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Reserve lines for title, prompt and status bar.
	v.transcript.Width = width
	v.transcript.Height = max(height-8, 3)
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// Turns returns the transcript.
func (v *View) Turns() []Turn {
	return v.turns
}

// Streaming reports whether a request is in flight.
func (v *View) Streaming() bool {
	return v.handle != nil
}

// SetPrompt sets the prompt text.
func (v *View) SetPrompt(text string) {
	v.input.SetValue(text)
}

// Prompt returns the prompt text.
func (v *View) Prompt() string {
	return v.input.Value()
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
