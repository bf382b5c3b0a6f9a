package normalisers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches source files to the normaliser registered for their format.
// A later registration for the same format replaces the earlier one.
type Registry struct {
	mu       sync.RWMutex
	byFormat map[domain.Format]driven.Normaliser
}

// NewRegistry creates a registry holding the given normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{byFormat: make(map[domain.Format]driven.Normaliser)}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser for every format it supports.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range n.SupportedFormats() {
		r.byFormat[f] = n
	}
}

// Normalise selects the normaliser for file.Format and runs it.
func (r *Registry) Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	n, ok := r.byFormat[file.Format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s (%q): %w", file.Path, file.Format, domain.ErrUnsupportedType)
	}
	return n.Normalise(ctx, file)
}

// SupportedFormats returns all formats with a registered normaliser, sorted.
func (r *Registry) SupportedFormats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]domain.Format, 0, len(r.byFormat))
	for f := range r.byFormat {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
