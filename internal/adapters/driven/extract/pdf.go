package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// PDF reads text and metadata from PDF files.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor. A nil runner uses ExecRunner.
func NewPDF(runner CommandRunner) *PDF {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDF{runner: runner}
}

// Pages returns the layout-preserving text of each page, in order.
// pdftotext separates pages with form feeds.
func (p *PDF) Pages(ctx context.Context, path string) ([]string, error) {
	out, err := p.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	return SplitPages(string(out)), nil
}

// SplitPages splits pdftotext output on form feeds. The empty segment
// after the final form feed is dropped.
func SplitPages(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// Info returns the bibliographic fields pdfinfo reports.
func (p *PDF) Info(ctx context.Context, path string) (domain.Bibliography, error) {
	out, err := p.runner.Run(ctx, "pdfinfo", "-enc", "UTF-8", path)
	if err != nil {
		return domain.Bibliography{}, fmt.Errorf("pdfinfo failed: %w", err)
	}
	return ParseInfo(out), nil
}

// ParseInfo parses "Key: value" lines from pdfinfo.
func ParseInfo(out []byte) domain.Bibliography {
	var bib domain.Bibliography
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Title":
			bib.Title = value
		case "Author":
			bib.Authors = value
		case "CreationDate":
			if bib.Year == "" {
				bib.Year = yearPattern.FindString(value)
			}
		case "Subject":
			if doi := domain.FindDOI(value); doi != "" {
				bib.DOI = doi
			}
		}
	}
	return bib
}
