package chat

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// mockChatService replays a fixed list of events on every stream.
type mockChatService struct {
	events    []domain.StreamEvent
	err       error
	lastReq   domain.ChatRequest
	cancelled bool
}

func (m *mockChatService) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (m *mockChatService) ChatStream(_ context.Context, req domain.ChatRequest) (*driving.StreamHandle, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	ch := make(chan domain.StreamEvent, len(m.events))
	for _, ev := range m.events {
		ch <- ev
	}
	close(ch)
	return &driving.StreamHandle{
		ID:     "req-1",
		Events: ch,
		Cancel: func() { m.cancelled = true },
	}, nil
}

func (m *mockChatService) Cancel(string) bool { return false }

type mockMemory struct {
	cleared bool
}

func (m *mockMemory) Entries() []domain.MemoryEntry { return nil }
func (m *mockMemory) Clear()                        { m.cleared = true }

func newView(svc driving.ChatService, mem driving.MemoryService) *View {
	v := NewView(nil, nil, svc, mem)
	v.SetDimensions(100, 40)
	return v
}

// drive sends the prompt and pumps the stream until it stops producing commands.
func drive(t *testing.T, v *View, prompt string) {
	t.Helper()
	v.SetPrompt(prompt)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	for i := 0; cmd != nil; i++ {
		require.Less(t, i, 100, "stream did not terminate")
		_, cmd = v.Update(cmd())
	}
}

func completeEvent(text string) domain.StreamEvent {
	return domain.StreamEvent{
		Type: domain.EventComplete,
		Response: &domain.ChatResponse{
			Response: text,
			Label:    domain.LabelRNADesign,
			Citations: []domain.Citation{
				{Rank: 1, Reference: "[1] Doe J (2021). Hairpin design. DOI: 10.1000/xyz"},
			},
		},
	}
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil, nil)

	require.NotNil(t, v)
	assert.False(t, v.Ready())
	assert.False(t, v.Streaming())
	assert.Empty(t, v.Turns())
	assert.NotNil(t, v.Init())
	assert.Contains(t, v.View(), "Initialising")
}

func TestView_StreamsTokens(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{
		{Type: domain.EventToken, Content: "Use a "},
		{Type: domain.EventToken, Content: "GC-rich stem."},
		completeEvent("Use a GC-rich stem."),
	}}
	v := newView(svc, nil)

	drive(t, v, "  How do I stabilise a hairpin?  ")

	assert.Equal(t, "How do I stabilise a hairpin?", svc.lastReq.Message)
	require.Len(t, v.Turns(), 1)
	turn := v.Turns()[0]
	assert.Equal(t, "Use a GC-rich stem.", turn.Assistant)
	assert.Equal(t, domain.LabelRNADesign, turn.Label)
	assert.True(t, turn.Done)
	assert.False(t, v.Streaming())
	assert.Equal(t, "", v.Prompt())

	view := v.View()
	assert.Contains(t, view, "How do I stabilise a hairpin?")
	assert.Contains(t, view, "GC-rich stem")
	assert.Contains(t, view, "Hairpin design")
}

func TestView_CompleteWithoutTokensUsesResponse(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{completeEvent("Templated answer")}}
	v := newView(svc, nil)

	drive(t, v, "hello")

	assert.Equal(t, "Templated answer", v.Turns()[0].Assistant)
}

func TestView_ToolStatus(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{
		{Type: domain.EventToolStatus, Tool: domain.ToolBPFold, Status: domain.ToolStarted},
		{Type: domain.EventToolStatus, Tool: domain.ToolBPFold, Status: domain.ToolFailed, Message: "timeout"},
		completeEvent("done"),
	}}
	v := newView(svc, nil)

	drive(t, v, "fold GGGAAACCC")

	tools := v.Turns()[0].Tools
	require.Len(t, tools, 2)
	assert.Contains(t, tools[0], "started")
	assert.Contains(t, tools[1], "failed (timeout)")
}

func TestView_ErrorEvent(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{
		{Type: domain.EventToken, Content: "partial"},
		{Type: domain.EventError, Message: "Sorry, something went wrong."},
	}}
	v := newView(svc, nil)

	drive(t, v, "question")

	turn := v.Turns()[0]
	assert.Equal(t, "partial", turn.Assistant)
	assert.Equal(t, "Sorry, something went wrong.", turn.Err)
	assert.Contains(t, v.View(), "Sorry, something went wrong.")
}

func TestView_StartError(t *testing.T) {
	v := newView(&mockChatService{err: errors.New("no model")}, nil)

	drive(t, v, "question")

	assert.Equal(t, "no model", v.Turns()[0].Err)
	assert.False(t, v.Streaming())
}

func TestView_NoChatService(t *testing.T) {
	v := newView(nil, nil)

	drive(t, v, "question")

	assert.Equal(t, ErrNoChatService.Error(), v.Turns()[0].Err)
}

func TestView_ClosedWithoutTerminal(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{{Type: domain.EventToken, Content: "a"}}}
	v := newView(svc, nil)

	drive(t, v, "q")

	assert.True(t, v.Turns()[0].Done)
	assert.False(t, v.Streaming())
}

func TestView_EmptyPromptIgnored(t *testing.T) {
	v := newView(&mockChatService{}, nil)
	v.SetPrompt("   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, v.Turns())
}

func TestView_SendWhileStreamingIgnored(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{completeEvent("ok")}}
	v := newView(svc, nil)
	v.SetPrompt("first")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v.Update(cmd())
	require.True(t, v.Streaming())

	v.SetPrompt("second")
	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Len(t, v.Turns(), 1)
}

func TestView_StopCancelsStream(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{
		{Type: domain.EventError, Message: domain.ErrCancelled.Error()},
	}}
	v := newView(svc, nil)
	v.SetPrompt("long question")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, cmd = v.Update(cmd())
	require.True(t, v.Streaming())

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.True(t, svc.cancelled)

	v.Update(cmd())
	assert.False(t, v.Streaming())
	assert.Equal(t, "cancelled", v.Turns()[0].Err)
}

func TestView_StaleEventsDropped(t *testing.T) {
	v := newView(&mockChatService{}, nil)

	_, cmd := v.Update(messages.StreamEvent{RequestID: "old", Event: domain.StreamEvent{Type: domain.EventToken}})

	assert.Nil(t, cmd)
	assert.Empty(t, v.Turns())
}

func TestView_ClearMemory(t *testing.T) {
	mem := &mockMemory{}
	svc := &mockChatService{events: []domain.StreamEvent{completeEvent("ok")}}
	v := newView(svc, mem)
	drive(t, v, "q")

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.True(t, mem.cleared)
	assert.Empty(t, v.Turns())
	assert.Contains(t, v.View(), "Memory cleared")
}

func TestView_EscGoesBackAndCancels(t *testing.T) {
	svc := &mockChatService{events: []domain.StreamEvent{completeEvent("ok")}}
	v := newView(svc, nil)
	v.SetPrompt("q")
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v.Update(cmd())

	_, back := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, back)

	changed, ok := back().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewMenu, changed.View)
	assert.True(t, svc.cancelled)
}

func TestView_TypingGoesToPrompt(t *testing.T) {
	v := newView(nil, nil)

	for _, r := range "kjq" {
		v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	assert.Equal(t, "kjq", v.Prompt())
}

func TestView_EmptyTranscriptHint(t *testing.T) {
	v := newView(nil, nil)

	assert.Contains(t, v.View(), "Ask about RNA design")
}
