// Package openai adapts the OpenAI embeddings API and compatible servers.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/httpapi"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "text-embedding-3-small"
	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3
	DefaultBatchSize  = 64
)

// shortenable models accept a "dimensions" field that truncates vectors.
var shortenable = []string{"text-embedding-3-small", "text-embedding-3-large"}

// Config selects the server, model and key. MaxRetries bounds retries of
// 429 and 5xx replies; BatchSize caps inputs per request.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
	MaxRetries int
	BatchSize  int
}

type EmbeddingService struct {
	api        *httpapi.Client
	model      string
	maxRetries uint64
	batchSize  int
	dims       atomic.Int64

	// newBackOff paces retries. Tests swap it for a zero delay.
	newBackOff func() backoff.BackOff
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required: %w", domain.ErrEmbeddingUnavailable)
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
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}

	s := &EmbeddingService{
		api:        httpapi.New("openai", cfg.BaseURL, cfg.Timeout, httpapi.Bearer(cfg.APIKey)),
		model:      cfg.Model,
		maxRetries: uint64(cfg.MaxRetries),
		batchSize:  cfg.BatchSize,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		},
	}
	s.dims.Store(int64(cfg.Dimensions))
	return s, nil
}

func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || vecs[0] == nil {
		return nil, fmt.Errorf("openai: no embedding returned: %w", domain.ErrEmbeddingUnavailable)
	}
	return vecs[0], nil
}

// EmbedBatch sends texts in requests of at most BatchSize inputs and
// returns vectors in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, s.batchSize) {
		vecs, err := s.embedRetrying(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) embedRetrying(ctx context.Context, texts []string) ([][]float32, error) {
	pacer := &retryAfterBackOff{BackOff: s.newBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(pacer, s.maxRetries), ctx)

	var vecs [][]float32
	op := func() error {
		var err error
		vecs, err = s.embedOnce(ctx, texts)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		se, isStatus := httpapi.IsStatus(err)
		if isStatus && !se.Temporary() {
			return backoff.Permanent(err)
		}
		if isStatus {
			pacer.next = se.RetryAfter
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Debug("openai embeddings: retrying in %s after %v", wait, err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return vecs, nil
}

func (s *EmbeddingService) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Model: s.model, Input: texts}
	if slices.Contains(shortenable, s.model) {
		req.Dimensions = s.Dimensions()
	}

	var resp embeddingResponse
	if err := s.api.Do(ctx, http.MethodPost, "/embeddings", req, &resp); err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			continue
		}
		v := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			v[i] = float32(f)
		}
		vecs[d.Index] = v
		s.dims.CompareAndSwap(0, int64(len(v)))
	}
	return vecs, nil
}

// Dimensions is 0 until the first reply for models with no known size.
func (s *EmbeddingService) Dimensions() int   { return int(s.dims.Load()) }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Do(ctx, http.MethodGet, "/models", nil, nil)
}

func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}

// retryAfterBackOff honours a server's Retry-After once, then falls back to
// the wrapped policy.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	if d := b.next; d > 0 {
		b.next = 0
		return d
	}
	return b.BackOff.NextBackOff()
}
