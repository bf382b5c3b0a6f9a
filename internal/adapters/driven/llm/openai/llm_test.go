package openai

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
	s, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "deepseek-chat", Name: "deepseek"})
	require.NoError(t, err)
	return s
}

func TestNewLLMService_RequiresKey(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestNewLLMService_Defaults(t *testing.T) {
	s, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
	assert.Equal(t, DefaultBaseURL, s.api.BaseURL())
}

func TestChat_SendsMessagesAndOptions(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, 300, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"hairpin"},"finish_reason":"stop"}]}`)
	})

	out, err := s.Chat(t.Context(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "You are an RNA expert."},
		{Role: driven.RoleUser, Content: "What is a stem loop?"},
	}, driven.ChatOptions{MaxTokens: 300, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "hairpin", out)
}

func TestGenerate_PassesStopSequences(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"\n"}, req.Stop)
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"rna_design"}}]}`)
	})

	out, err := s.Generate(t.Context(), "classify", driven.GenerateOptions{Stop: []string{"\n"}})
	require.NoError(t, err)
	assert.Equal(t, "rna_design", out)
}

func TestChat_StatusErrorUsesAPIMessage(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"invalid key","type":"auth"}}`)
	})

	_, err := s.Chat(t.Context(), nil, driven.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepseek error (status 401): invalid key")
}

func TestChat_NoChoices(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := s.Chat(t.Context(), nil, driven.ChatOptions{})
	assert.ErrorContains(t, err, "no response choices")
}

func TestStream_DeliversDeltas(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Stem", "-loop", ""} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	ch, err := s.Stream(t.Context(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}}, driven.ChatOptions{})
	require.NoError(t, err)

	text, err := stream.Collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "Stem-loop", text)
}

func TestStream_MalformedChunkEndsWithError(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: not-json\n\n")
	})

	ch, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	require.NoError(t, err)

	text, err := stream.Collect(ch)
	assert.Error(t, err)
	assert.Equal(t, "ok", text)
}

func TestStream_StatusError(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, "slow down")
	})

	_, err := s.Stream(t.Context(), nil, driven.ChatOptions{})
	assert.ErrorContains(t, err, "status 429")
}

func TestPing(t *testing.T) {
	s := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = fmt.Fprint(w, `{"data":[]}`)
	})
	assert.NoError(t, s.Ping(t.Context()))
	assert.NoError(t, s.Close())
}
