// Package gemini provides an embedding service adapter for the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the default Gemini embedding model.
const DefaultModel = "text-embedding-004"

// Embedder is the subset of genai.Models used here.
type Embedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config holds configuration for the Gemini embedding service.
type Config struct {
	APIKey string
	Model  string
}

// EmbeddingService generates embeddings with genai.
type EmbeddingService struct {
	models Embedder
	model  string

	mu   sync.RWMutex
	dims int
}

// NewEmbeddingService creates a genai client for the Gemini API backend.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required: %w", domain.ErrEmbeddingUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}
	return NewWithEmbedder(client.Models, cfg.Model), nil
}

// NewWithEmbedder wraps an existing embedder.
func NewWithEmbedder(models Embedder, model string) *EmbeddingService {
	if model == "" {
		model = DefaultModel
	}
	return &EmbeddingService{
		models: models,
		model:  model,
		dims:   domain.EmbeddingDimensions()[model],
	}
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one EmbedContent call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	resp, err := s.models.EmbedContent(ctx, s.model, contents, &genai.EmbedContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable,
			goerr.Wrap(err, "failed to embed content", goerr.V("model", s.model)))
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: expected %d embeddings: %w", len(texts), domain.ErrEmbeddingUnavailable)
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini: empty embedding at %d: %w", i, domain.ErrEmbeddingUnavailable)
		}
		out[i] = e.Values
	}

	s.mu.Lock()
	if s.dims == 0 {
		s.dims = len(out[0])
	}
	s.mu.Unlock()
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// ModelName returns the embedding model name.
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping embeds a short probe text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error { return nil }
