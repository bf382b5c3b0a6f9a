// Package anthropic adapts the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/httpapi"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/stream"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second
	// DefaultMaxTokens is sent when the caller sets none; the API requires
	// max_tokens on every request.
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type LLMService struct {
	api   *httpapi.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stop        []string  `json:"stop_sequences,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

// event is the subset of a streaming event the adapter reads.
type event struct {
	Type  string       `json:"type"`
	Delta contentBlock `json:"delta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required: %w", domain.ErrLLMUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	header := http.Header{}
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", anthropicVersion)
	return &LLMService{
		api:   httpapi.New("anthropic", cfg.BaseURL, cfg.Timeout, header),
		model: cfg.Model,
	}, nil
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request([]driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, opts.MaxTokens, opts.Temperature)
	req.Stop = opts.Stop
	return s.send(ctx, req)
}

// Chat moves system turns into the top-level system field, which is where
// the Messages API expects them.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.send(ctx, s.request(messages, opts.MaxTokens, opts.Temperature))
}

func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamChunk, error) {
	req := s.request(messages, opts.MaxTokens, opts.Temperature)
	req.Stream = true
	body, err := s.api.Stream(ctx, "/v1/messages", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return stream.Pump(ctx, body, decodeStream), nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Do(ctx, http.MethodGet, "/v1/models", nil, nil)
}

func (s *LLMService) Close() error {
	s.api.Close()
	return nil
}

func (s *LLMService) request(turns []driven.ChatMessage, maxTokens int, temperature float64) messagesRequest {
	req := messagesRequest{
		Model:       s.model,
		MaxTokens:   maxTokens,
		Temperature: max(temperature, 0),
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	var system []string
	for _, t := range turns {
		if t.Role == driven.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		req.Messages = append(req.Messages, message{Role: t.Role, Content: t.Content})
	}
	req.System = strings.Join(system, "\n\n")
	return req
}

func (s *LLMService) send(ctx context.Context, req messagesRequest) (string, error) {
	var out messagesResponse
	if err := s.api.Do(ctx, http.MethodPost, "/v1/messages", req, &out); err != nil {
		return "", err
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", goerr.New("anthropic: no text in response", goerr.V("model", s.model), goerr.V("blocks", len(out.Content)))
	}
	return text.String(), nil
}

func decodeStream(r io.Reader, emit stream.Emit) error {
	return stream.SSE(r, func(name, data string) (bool, error) {
		var ev event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return false, goerr.Wrap(err, "decode anthropic event", goerr.V("event", name))
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && !emit(ev.Delta.Text) {
				return false, nil
			}
		case "message_stop":
			return false, nil
		case "error":
			msg := "unknown error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return false, fmt.Errorf("anthropic stream error: %s", msg)
		}
		return true, nil
	})
}
