package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts listed in vectors get that vector; everything else gets embedding.
type mockEmbeddingService struct {
	embedding []float32
	vectors   map[string][]float32
	embedErr  error
	dims      int
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return len(m.embedding)
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu sync.Mutex

	generateReply string
	generateErr   error
	chatReply     string
	chatErr       error

	// chunks are streamed in order; streamErr is sent after them.
	chunks    []string
	streamErr error
	// gate, when set, is received from before each chunk is sent.
	gate chan struct{}

	generateCalls int
	chatCalls     int
	streamCalls   int
	lastMessages  []driven.ChatMessage
}

func (m *mockLLMService) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls++
	return m.generateReply, m.generateErr
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls++
	m.lastMessages = messages
	return m.chatReply, m.chatErr
}

func (m *mockLLMService) Stream(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (<-chan driven.StreamChunk, error) {
	m.mu.Lock()
	m.streamCalls++
	m.lastMessages = messages
	chunks, streamErr, gate := m.chunks, m.streamErr, m.gate
	m.mu.Unlock()

	out := make(chan driven.StreamChunk)
	go func() {
		defer close(out)
		for _, c := range chunks {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- driven.StreamChunk{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			select {
			case out <- driven.StreamChunk{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

func (m *mockLLMService) calls() (generate, chat, stream int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls, m.chatCalls, m.streamCalls
}

// mockToolInvoker implements driven.ToolInvoker for testing.
type mockToolInvoker struct {
	mu       sync.Mutex
	failures map[domain.ToolID]string
	invoked  []domain.ToolID
	payloads map[domain.ToolID]map[string]any
}

func (m *mockToolInvoker) Invoke(_ context.Context, tool domain.ToolDescriptor, payload map[string]any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoked = append(m.invoked, tool.ID)
	if m.payloads == nil {
		m.payloads = make(map[domain.ToolID]map[string]any)
	}
	m.payloads[tool.ID] = payload
	if msg, ok := m.failures[tool.ID]; ok {
		return nil, &domain.ToolError{Tool: tool.ID, Message: msg}
	}
	return json.RawMessage(`{"success":true,"tool":"` + string(tool.ID) + `"}`), nil
}

func (m *mockToolInvoker) calls() []domain.ToolID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ToolID(nil), m.invoked...)
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	templates map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if t, ok := m.templates[name]; ok {
		return t, nil
	}
	return "", errors.New("not found")
}

func (m *mockPromptStore) Reload() {}

// staticCatalog implements driven.ToolCatalogSource for testing.
type staticCatalog struct {
	descs []domain.ToolDescriptor
	err   error
}

func (c staticCatalog) Load() ([]domain.ToolDescriptor, error) {
	return c.descs, c.err
}
