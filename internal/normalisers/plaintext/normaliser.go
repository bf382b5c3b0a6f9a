// Package plaintext normalises plain text notes into a single page.
package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatText}
}

// Normalise returns the whole file as page 1. Invalid UTF-8 is replaced
// and Windows line endings are normalised.
func (n *Normaliser) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	text := string(file.Content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	title := normalisers.TitleFromText(text)
	if title == "" {
		title = normalisers.TitleFromPath(file.Path)
	}

	return &domain.NormalisedDocument{
		Document: domain.Document{
			ID:         file.Hash,
			SourcePath: file.Path,
			Format:     domain.FormatText,
			Bibliography: domain.Bibliography{
				Title: title,
				DOI:   domain.FindDOI(text),
			},
		},
		Pages: []domain.Page{{
			Number: 1,
			Kind:   domain.LocationPage,
			Text:   strings.TrimSpace(text),
		}},
	}, nil
}
