package ai

import (
	"context"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

var _ driven.ProviderProbe = (*Probe)(nil)

// Probe builds a throwaway client for the configured provider, pings it and
// closes it again.
type Probe struct {
	timeout time.Duration
}

// NewProbe returns a Probe bounded by timeout; zero means pingTimeout.
func NewProbe(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = pingTimeout
	}
	return &Probe{timeout: timeout}
}

// ProbeEmbedding reports whether the embedding provider is reachable.
func (p *Probe) ProbeEmbedding(ctx context.Context, cfg *domain.EmbeddingSettings) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	svc, err := CreateAndValidateEmbeddingService(ctx, cfg)
	if svc != nil {
		svc.Close()
	}
	return err
}

// ProbeLLM reports whether the chat model provider is reachable.
func (p *Probe) ProbeLLM(ctx context.Context, cfg *domain.LLMSettings) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	svc, err := CreateAndValidateLLMService(ctx, cfg)
	if svc != nil {
		svc.Close()
	}
	return err
}
