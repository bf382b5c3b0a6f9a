// Package ollama talks to a local Ollama server's /api/chat endpoint.
package ollama

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
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig selects the server and model. Timeout bounds one-shot calls
// only; streams live as long as their context.
type LLMConfig struct {
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

type modelOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *modelOptions `json:"options,omitempty"`
}

// chatResponse is the whole reply, or one NDJSON line of a stream.
type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func NewLLMService(cfg LLMConfig) *LLMService {
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
		api:   httpapi.New("ollama", cfg.BaseURL, cfg.Timeout, nil),
		model: cfg.Model,
	}
}

func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	turns := []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}
	return s.complete(ctx, s.request(turns, tune(opts.MaxTokens, opts.Temperature, opts.Stop), false))
}

func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, s.request(messages, tune(opts.MaxTokens, opts.Temperature, nil), false))
}

// Stream decodes NDJSON lines until one reports done.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamChunk, error) {
	body, err := s.api.Stream(ctx, "/api/chat", s.request(messages, tune(opts.MaxTokens, opts.Temperature, nil), true), "")
	if err != nil {
		return nil, err
	}
	return stream.Pump(ctx, body, decodeStream), nil
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists local models, which needs no inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Do(ctx, http.MethodGet, "/api/tags", nil, nil); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return nil
}

func (s *LLMService) Close() error {
	s.api.Close()
	return nil
}

// tune returns nil when every knob is unset so the model's own defaults
// apply.
func tune(maxTokens int, temperature float64, stop []string) *modelOptions {
	if maxTokens <= 0 && temperature <= 0 && len(stop) == 0 {
		return nil
	}
	return &modelOptions{NumPredict: maxTokens, Temperature: temperature, Stop: stop}
}

func (s *LLMService) request(turns []driven.ChatMessage, opts *modelOptions, streaming bool) chatRequest {
	msgs := make([]message, len(turns))
	for i, t := range turns {
		msgs[i] = message{Role: t.Role, Content: t.Content}
	}
	return chatRequest{Model: s.model, Messages: msgs, Stream: streaming, Options: opts}
}

func (s *LLMService) complete(ctx context.Context, in chatRequest) (string, error) {
	var out chatResponse
	if err := s.api.Do(ctx, http.MethodPost, "/api/chat", in, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}

func decodeStream(r io.Reader, emit stream.Emit) error {
	return stream.Lines(r, func(line []byte) (bool, error) {
		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return false, goerr.Wrap(err, "decode ollama stream line", goerr.V("line", string(line)))
		}
		if chunk.Error != "" {
			return false, fmt.Errorf("ollama: %s", chunk.Error)
		}
		if !emit(chunk.Message.Content) {
			return false, nil
		}
		return !chunk.Done, nil
	})
}
