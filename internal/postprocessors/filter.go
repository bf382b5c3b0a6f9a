package postprocessors

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure MinLengthFilter implements the interface.
var _ driven.PostProcessor = (*MinLengthFilter)(nil)

// MinLengthFilter drops units whose trimmed text is shorter than a minimum.
// With the default minimum of 1 it removes empty units only.
type MinLengthFilter struct {
	min int
}

// NewMinLengthFilter creates a filter. Values below 1 are raised to 1.
func NewMinLengthFilter(minRunes int) *MinLengthFilter {
	return &MinLengthFilter{min: max(1, minRunes)}
}

// Name returns the processor name.
func (f *MinLengthFilter) Name() string {
	return "min_length"
}

// Process keeps units with at least min runes of non-space text.
func (f *MinLengthFilter) Process(_ context.Context, _ *domain.NormalisedDocument, units []domain.TextUnit) ([]domain.TextUnit, error) {
	kept := units[:0]
	for _, u := range units {
		if utf8.RuneCountInString(strings.TrimSpace(u.Text)) >= f.min {
			kept = append(kept, u)
		}
	}
	return kept, nil
}
