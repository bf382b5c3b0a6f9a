package ollama

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/stream"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLLMService(LLMConfig{BaseURL: srv.URL})
}

func TestNewLLMService_Defaults(t *testing.T) {
	s := NewLLMService(LLMConfig{})
	assert.Equal(t, DefaultLLMModel, s.ModelName())
	assert.Equal(t, DefaultBaseURL, s.api.BaseURL())
}

func TestChat(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		require.NotNil(t, req.Options)
		assert.Equal(t, 50, req.Options.NumPredict)
		_, _ = fmt.Fprint(w, `{"message":{"role":"assistant","content":"G-quadruplex"},"done":true}`)
	})

	out, err := s.Chat(t.Context(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}},
		driven.ChatOptions{MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, "G-quadruplex", out)
}

func TestGenerate_OmitsEmptyOptions(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.Options)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		_, _ = fmt.Fprint(w, `{"message":{"content":"ok"},"done":true}`)
	})

	out, err := s.Generate(t.Context(), "prompt", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestChat_ModelError(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"error":"model not found"}`)
	})

	_, err := s.Chat(t.Context(), nil, driven.ChatOptions{})
	assert.ErrorContains(t, err, "status 404")
}

func TestStream_ReadsNDJSONUntilDone(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		_, _ = fmt.Fprintln(w, `{"message":{"content":"Riboswitch"},"done":false}`)
		_, _ = fmt.Fprintln(w, `{"message":{"content":"es"},"done":false}`)
		_, _ = fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
		_, _ = fmt.Fprintln(w, `{"message":{"content":"after done"},"done":false}`)
	})

	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	text, err := stream.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Riboswitches", text)
}

func TestStream_ErrorLine(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, `{"error":"out of memory"}`)
	})

	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)
	_, err = stream.Collect(ch)
	assert.ErrorContains(t, err, "out of memory")
}

func TestPing(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, `{"models":[]}`)
	})
	assert.NoError(t, s.Ping(t.Context()))
}
