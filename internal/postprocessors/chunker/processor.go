// Package chunker cuts page text into fixed-size overlapping windows.
package chunker

import (
	"context"
	"iter"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// Defaults, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Processor is the first stage of the ingestion pipeline: it ignores its
// input units and creates one unit per non-blank window of every page.
// A window's ordinal is its index on the page, counting skipped blank
// windows, so unit IDs do not shift when whitespace moves.
type Processor struct {
	size    int
	overlap int
}

// New returns a chunker. A non-positive size or negative overlap takes the
// default; an overlap that would stop the window advancing is cut to a
// quarter of the size.
func New(size, overlap int) *Processor {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Processor{size: size, overlap: overlap}
}

func (p *Processor) Name() string { return "chunker" }
func (p *Processor) ChunkSize() int { return p.size }
func (p *Processor) Overlap() int { return p.overlap }

func (p *Processor) Process(ctx context.Context, doc *domain.NormalisedDocument, _ []domain.TextUnit) ([]domain.TextUnit, error) {
	var units []domain.TextUnit
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for ordinal, text := range p.windows(page.Text) {
			units = append(units, domain.TextUnit{
				ID:           domain.TextUnitID(doc.Document.ID, page.Number, ordinal),
				DocumentID:   doc.Document.ID,
				Source:       doc.Document.SourcePath,
				Location:     page.Number,
				LocationKind: page.Kind,
				Ordinal:      ordinal,
				Text:         text,
			})
		}
	}
	return units, nil
}

// windows yields the trimmed, non-blank windows of text with their
// ordinals.
func (p *Processor) windows(text string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		runes := []rune(text)
		step := p.size - p.overlap
		for ordinal := 0; ordinal*step < len(runes); ordinal++ {
			start := ordinal * step
			w := strings.TrimSpace(string(runes[start:min(start+p.size, len(runes))]))
			if w == "" {
				continue
			}
			if !yield(ordinal, w) {
				return
			}
		}
	}
}
