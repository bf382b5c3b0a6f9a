package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/stream"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewLLMService(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	return s
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestChat_LiftsSystemMessages(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "be precise", req.System)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		_, _ = fmt.Fprint(w, `{"content":[{"type":"text","text":"A "},{"type":"text","text":"pseudoknot"}]}`)
	})

	out, err := s.Chat(t.Context(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "be precise"},
		{Role: driven.RoleUser, Content: "define"},
	}, driven.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "A pseudoknot", out)
}

func TestChat_ErrorBody(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)
	})

	_, err := s.Chat(t.Context(), nil, driven.ChatOptions{})
	assert.ErrorContains(t, err, "bad model")
}

func TestStream_TextDeltas(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		_, _ = fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		_, _ = fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"tRNA\"}}\n\n")
		_, _ = fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		_, _ = fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\" fold\"}}\n\n")
		_, _ = fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	})

	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	text, err := stream.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "tRNA fold", text)
}

func TestStream_ErrorEvent(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"message\":\"overloaded\"}}\n\n")
	})

	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	_, err = stream.Collect(ch)
	assert.ErrorContains(t, err, "overloaded")
}

func TestPing(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, "nope")
	})
	assert.ErrorContains(t, s.Ping(t.Context()), "status 401")
}
