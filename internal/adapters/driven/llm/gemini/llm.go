// Package gemini provides an LLM service adapter for the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"iter"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// DefaultModel is the default Gemini generative model.
const DefaultModel = "gemini-2.0-flash"

// Generator is the subset of genai.Models used here.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// Config holds configuration for the Gemini LLM service.
type Config struct {
	APIKey string
	Model  string
}

// LLMService provides LLM operations with genai.
type LLMService struct {
	models Generator
	model  string
}

// NewLLMService creates a genai client for the Gemini API backend.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required: %w", domain.ErrLLMUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	return NewWithGenerator(client.Models, cfg.Model), nil
}

// NewWithGenerator wraps an existing generator.
func NewWithGenerator(models Generator, model string) *LLMService {
	if model == "" {
		model = DefaultModel
	}
	return &LLMService{models: models, model: model}
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	config := newConfig("", opts.MaxTokens, opts.Temperature)
	config.StopSequences = opts.Stop
	return s.generate(ctx, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	system, contents := toContents(messages)
	return s.generate(ctx, contents, newConfig(system, opts.MaxTokens, opts.Temperature))
}

func (s *LLMService) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", s.model))
	}
	return resp.Text(), nil
}

// Stream conducts a multi-turn conversation, forwarding each streamed response.
func (s *LLMService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamChunk, error) {
	system, contents := toContents(messages)
	seq := s.models.GenerateContentStream(ctx, s.model, contents, newConfig(system, opts.MaxTokens, opts.Temperature))

	out := make(chan driven.StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range seq {
			if err != nil {
				if ctx.Err() == nil {
					select {
					case out <- driven.StreamChunk{Err: goerr.Wrap(err, "gemini stream failed", goerr.V("model", s.model))}:
					case <-ctx.Done():
					}
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- driven.StreamChunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func newConfig(system string, maxTokens int, temperature float64) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, "")
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if temperature > 0 {
		config.Temperature = genai.Ptr(float32(temperature))
	}
	return config
}

// toContents maps chat messages to genai contents. System messages become
// the system instruction and assistant turns use the "model" role.
func toContents(messages []driven.ChatMessage) (string, []*genai.Content) {
	var system string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case driven.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return system, contents
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches the model metadata, which validates the key without inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.models.Get(ctx, s.model, nil); err != nil {
		return goerr.Wrap(err, "gemini: ping failed", goerr.V("model", s.model))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
