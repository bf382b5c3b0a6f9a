package postprocessors

import (
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/postprocessors/chunker"
)

// Processor names known to the default registry.
const (
	NameChunker   = "chunker"
	NameMinLength = "min_length"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(NameChunker, buildChunker)
	r.Register(NameMinLength, buildMinLength)
}

// DefaultPipeline chunks pages with the given window and drops empty units.
func DefaultPipeline(chunkSize, overlap int) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	return r.Assemble(
		Step{Name: NameChunker, Config: map[string]any{"chunk_size": chunkSize, "overlap": overlap}},
		Step{Name: NameMinLength},
	)
}

// buildChunker reads chunk_size and overlap, both in runes.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	size, overlap := chunker.DefaultChunkSize, chunker.DefaultChunkOverlap
	if v, ok := intSetting(cfg, "chunk_size"); ok {
		size = v
	}
	if v, ok := intSetting(cfg, "overlap"); ok {
		overlap = v
	}
	return chunker.New(size, overlap), nil
}

// buildMinLength creates a length filter. Key: min (int, default 1).
func buildMinLength(cfg map[string]any) (driven.PostProcessor, error) {
	n, _ := intSetting(cfg, "min")
	return NewMinLengthFilter(n), nil
}

// intSetting reads an integer that may have been decoded from TOML (int64)
// or JSON (float64).
func intSetting(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
