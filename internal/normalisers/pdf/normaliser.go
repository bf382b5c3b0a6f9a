// Package pdf normalises PDF papers into pages using poppler's pdftotext.
package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driven/extract"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// doiSearchPages is how many leading pages are scanned for a DOI.
const doiSearchPages = 2

// Normaliser handles PDF documents.
type Normaliser struct {
	pdf *extract.PDF
}

// New creates a PDF normaliser that runs the real poppler tools.
func New() *Normaliser {
	return NewWithRunner(extract.ExecRunner{})
}

// NewWithRunner creates a PDF normaliser with a custom command runner.
func NewWithRunner(runner extract.CommandRunner) *Normaliser {
	return &Normaliser{pdf: extract.NewPDF(runner)}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Normalise extracts one page per PDF page, numbered from 1.
// Metadata comes from pdfinfo when available, then from the text itself.
func (n *Normaliser) Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	texts, err := n.pdf.Pages(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrIngestion, file.Path, err)
	}

	pages := make([]domain.Page, 0, len(texts))
	for i, text := range texts {
		pages = append(pages, domain.Page{
			Number: i + 1,
			Kind:   domain.LocationPage,
			Text:   text,
		})
	}

	bib, err := n.pdf.Info(ctx, file.Path)
	if err != nil {
		logger.Debug("pdfinfo unavailable for %s: %v", file.Path, err)
	}
	fillFromText(&bib, texts, file.Path)

	return &domain.NormalisedDocument{
		Document: domain.Document{
			ID:           file.Hash,
			SourcePath:   file.Path,
			Format:       domain.FormatPDF,
			Bibliography: bib,
		},
		Pages: pages,
	}, nil
}

// fillFromText completes missing title and DOI from the page text.
func fillFromText(bib *domain.Bibliography, pages []string, path string) {
	if strings.TrimSpace(bib.Title) == "" {
		for _, p := range pages {
			if bib.Title = normalisers.TitleFromText(p); bib.Title != "" {
				break
			}
		}
	}
	if bib.Title == "" {
		bib.Title = normalisers.TitleFromPath(path)
	}
	if bib.DOI == "" {
		for i := 0; i < len(pages) && i < doiSearchPages; i++ {
			if bib.DOI = domain.FindDOI(pages[i]); bib.DOI != "" {
				break
			}
		}
	}
}
