package postprocessors

import (
	"fmt"
	"maps"
	"slices"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// BuilderFunc makes a processor from its settings table. cfg may be nil.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Step names one processor of a pipeline and its settings.
type Step struct {
	Name   string
	Config map[string]any
}

// Registry knows how to build each named processor.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: map[string]BuilderFunc{}}
}

// Register binds name to builder, replacing any earlier binding.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names lists registered processors alphabetically.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.builders))
}

// Build makes one processor.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	build, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q: %w", name, domain.ErrInvalidInput)
	}
	return build(cfg)
}

// Assemble builds steps in order into a pipeline.
func (r *Registry) Assemble(steps ...Step) (*Pipeline, error) {
	p := NewPipeline()
	for _, s := range steps {
		proc, err := r.Build(s.Name, s.Config)
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}
