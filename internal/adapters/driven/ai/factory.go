// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	geminiembed "github.com/givemeone1astkiss/ribo/internal/adapters/driven/embedding/gemini"
	localembed "github.com/givemeone1astkiss/ribo/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/givemeone1astkiss/ribo/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/givemeone1astkiss/ribo/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/ollama"
	openaillm "github.com/givemeone1astkiss/ribo/internal/adapters/driven/llm/openai"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService // Nil when no usable LLM is configured.
	Warnings         []string          // Non-fatal issues that caused fallback.
	FellBack         bool              // True if the embedder fell back to the built-in one.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Initialise builds the embedding and LLM services from settings.
//
// An unreachable embedding provider falls back to the built-in hashing
// embedder. An unreachable or unconfigured LLM leaves LLMService nil: the
// assistant still routes by keyword rules and answers with templates.
func Initialise(ctx context.Context, settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embedder, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
		embedder = localembed.NewEmbeddingService()
	case embedder == nil:
		embedder = localembed.NewEmbeddingService()
	}
	result.EmbeddingService = embedder
	logger.Debug("Embedding model: %s (%d dimensions)", embedder.ModelName(), embedder.Dimensions())

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	if llm == nil && err == nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("LLM provider %s is not configured; answers use templates only", settings.LLM.Provider))
	}
	result.LLMService = llm

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'ribo config set embedding.provider ...' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Set DEEPSEEK_API_KEY or 'ribo config set llm.api_key ...' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderLocal:
		return createLocalEmbedding(settings)

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	case domain.AIProviderAnthropic, domain.AIProviderDeepSeek:
		return nil, fmt.Errorf("%s does not support embeddings, use local, ollama, openai or gemini", settings.Provider)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// createLocalEmbedding reads the dimension from a "hash-<n>" model name.
func createLocalEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings.Model == "" {
		return localembed.NewEmbeddingService(), nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(settings.Model, "hash-"))
	if err != nil || n <= 0 || !strings.HasPrefix(settings.Model, "hash-") {
		return nil, fmt.Errorf("local embedding model must look like hash-<dimensions>, got %q", settings.Model)
	}
	return localembed.NewEmbeddingService(localembed.WithDimensions(n)), nil
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderDeepSeek:
		baseURL := settings.BaseURL
		if baseURL == "" {
			baseURL = openaillm.DeepSeekBaseURL
		}
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: baseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
			Name:    "deepseek",
		})

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		}), nil

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			Timeout: settings.Timeout,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
