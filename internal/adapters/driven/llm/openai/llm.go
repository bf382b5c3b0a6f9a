// Package openai adapts the chat completions API of OpenAI and the servers
// that copy it, DeepSeek among them.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/httpapi"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/stream"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second

	DeepSeekBaseURL = "https://api.deepseek.com"
)

// LLMConfig selects the server, model and key. Name labels errors and
// defaults to "openai".
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Name    string
}

type LLMService struct {
	api   *httpapi.Client
	model string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type completion struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required: %w", cfg.Name, domain.ErrLLMUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMService{
		api:   httpapi.New(cfg.Name, cfg.BaseURL, cfg.Timeout, httpapi.Bearer(cfg.APIKey)),
		model: cfg.Model,
	}, nil
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.request([]driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, opts.MaxTokens, opts.Temperature)
	req.Stop = opts.Stop
	return s.complete(ctx, req)
}

func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.request(messages, opts.MaxTokens, opts.Temperature))
}

// Stream reads server-sent deltas until the [DONE] sentinel.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamChunk, error) {
	req := s.request(messages, opts.MaxTokens, opts.Temperature)
	req.Stream = true
	body, err := s.api.Stream(ctx, "/chat/completions", req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return stream.Pump(ctx, body, s.decodeStream), nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Do(ctx, http.MethodGet, "/models", nil, nil)
}

func (s *LLMService) Close() error {
	s.api.Close()
	return nil
}

func (s *LLMService) request(turns []driven.ChatMessage, maxTokens int, temperature float64) completionRequest {
	msgs := make([]message, len(turns))
	for i, t := range turns {
		msgs[i] = message{Role: t.Role, Content: t.Content}
	}
	return completionRequest{
		Model:       s.model,
		Messages:    msgs,
		MaxTokens:   max(maxTokens, 0),
		Temperature: max(temperature, 0),
	}
}

func (s *LLMService) complete(ctx context.Context, req completionRequest) (string, error) {
	var out completion
	if err := s.api.Do(ctx, http.MethodPost, "/chat/completions", req, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", goerr.New(s.api.Provider()+": no response choices", goerr.V("model", s.model))
	}
	return out.Choices[0].Message.Content, nil
}

func (s *LLMService) decodeStream(r io.Reader, emit stream.Emit) error {
	return stream.SSE(r, func(_, data string) (bool, error) {
		if data == "[DONE]" {
			return false, nil
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return false, goerr.Wrap(err, "decode "+s.api.Provider()+" chunk", goerr.V("data", data))
		}
		if chunk.Error != nil {
			return false, fmt.Errorf("%s stream error: %s", s.api.Provider(), chunk.Error.Message)
		}
		for _, c := range chunk.Choices {
			if !emit(c.Delta.Content) {
				return false, nil
			}
		}
		return true, nil
	})
}
