// Package local provides an offline embedding service based on feature hashing.
//
// Each text is tokenised into lower-cased words and character trigrams.
// Every feature is hashed (FNV-1a) into one of Dimensions buckets with a
// sign taken from a second hash bit, weighted by 1+log(tf), and the vector
// is L2-normalised. The result is deterministic and needs no network, so it
// serves as the default provider and as the embedder in tests.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults.
const (
	DefaultModel      = "hash-384"
	DefaultDimensions = 384
)

// EmbeddingService is a feature-hashing embedder.
type EmbeddingService struct {
	dims  int
	model string
}

// Option configures the embedder.
type Option func(*EmbeddingService)

// WithDimensions sets the number of hash buckets.
func WithDimensions(n int) Option {
	return func(s *EmbeddingService) {
		if n > 0 {
			s.dims = n
		}
	}
}

// NewEmbeddingService creates a hashing embedder with 384 dimensions by default.
func NewEmbeddingService(opts ...Option) *EmbeddingService {
	s := &EmbeddingService{dims: DefaultDimensions}
	for _, opt := range opts {
		opt(s)
	}
	s.model = DefaultModel
	if s.dims != DefaultDimensions {
		s.model = "hash-" + strconv.Itoa(s.dims)
	}
	return s
}

// Embed returns the hashed feature vector for text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(t)
	}
	return out, nil
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int { return s.dims }

// ModelName returns "hash-<dims>".
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *EmbeddingService) Close() error { return nil }

func (s *EmbeddingService) vector(text string) []float32 {
	counts := make(map[string]int)
	for _, tok := range Tokenise(text) {
		counts["w:"+tok]++
		for _, tri := range trigrams(tok) {
			counts["c:"+tri]++
		}
	}

	acc := make([]float64, s.dims)
	for feat, tf := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feat))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dims))
		weight := 1 + math.Log(float64(tf))
		if sum&(1<<63) != 0 {
			weight = -weight
		}
		acc[bucket] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, s.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// Tokenise splits text into lower-cased runs of letters and digits.
func Tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// trigrams returns the character trigrams of a word padded with boundary markers.
func trigrams(word string) []string {
	runes := []rune("^" + word + "$")
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}
