// Package postprocessors turns normalised pages into text units.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in the order they were added.
type Pipeline struct {
	stages []driven.PostProcessor
}

func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process feeds doc through every stage. The first stage is handed nil
// units. Cancellation is checked between stages.
func (p *Pipeline) Process(ctx context.Context, doc *domain.NormalisedDocument) ([]domain.TextUnit, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document: %w", domain.ErrInvalidInput)
	}

	var units []domain.TextUnit
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := stage.Process(ctx, doc, units)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", stage.Name(), doc.Document.SourcePath, err)
		}
		units = out
	}
	return units, nil
}

func (p *Pipeline) Add(stage driven.PostProcessor) { p.stages = append(p.stages, stage) }

func (p *Pipeline) Len() int { return len(p.stages) }

// Names lists stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}
