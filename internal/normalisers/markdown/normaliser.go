// Package markdown normalises Markdown notes into numbered sections.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
//
// The document is split on ATX headings (# to ######) outside fenced code.
// Each heading starts a new section; text before the first heading forms its
// own section when it is not blank. Sections are numbered from 1 in order.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedFormats returns the formats this normaliser handles.
func (n *Normaliser) SupportedFormats() []domain.Format {
	return []domain.Format{domain.FormatMarkdown}
}

// frontMatter is the optional YAML header of a note.
type frontMatter struct {
	Title    string   `yaml:"title"`
	Authors  []string `yaml:"authors"`
	Author   string   `yaml:"author"`
	Year     any      `yaml:"year"`
	DOI      string   `yaml:"doi"`
	Abstract string   `yaml:"abstract"`
}

// Normalise converts a markdown file into section pages.
func (n *Normaliser) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	body, meta, err := splitFrontMatter(file.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: front matter in %s: %w", domain.ErrIngestion, file.Path, err)
	}

	sections := splitSections(string(body))
	pages := make([]domain.Page, 0, len(sections))
	for i, s := range sections {
		pages = append(pages, domain.Page{
			Number:  i + 1,
			Kind:    domain.LocationSection,
			Heading: s.heading,
			Text:    stripMarkdown(s.text),
		})
	}

	bib := domain.Bibliography{
		Title:    meta.Title,
		Authors:  strings.Join(meta.Authors, ", "),
		DOI:      meta.DOI,
		Abstract: meta.Abstract,
	}
	if bib.Authors == "" {
		bib.Authors = meta.Author
	}
	if meta.Year != nil {
		bib.Year = fmt.Sprint(meta.Year)
	}
	if bib.Title == "" {
		bib.Title = extractTitle(sections, file.Path)
	}
	if bib.DOI == "" {
		bib.DOI = domain.FindDOI(string(body))
	}

	return &domain.NormalisedDocument{
		Document: domain.Document{
			ID:           file.Hash,
			SourcePath:   file.Path,
			Format:       domain.FormatMarkdown,
			Bibliography: bib,
		},
		Pages: pages,
	}, nil
}

var frontMatterFence = []byte("---")

// splitFrontMatter separates a leading YAML block delimited by --- lines.
func splitFrontMatter(content []byte) ([]byte, frontMatter, error) {
	var meta frontMatter
	trimmed := bytes.TrimPrefix(content, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, frontMatterFence) {
		return content, meta, nil
	}
	rest := trimmed[len(frontMatterFence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return content, meta, nil
	}
	rest = rest[nl+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return content, meta, nil
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return nil, meta, err
	}
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return body, meta, nil
}

type section struct {
	level   int
	heading string
	text    string
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// splitSections splits on ATX headings, ignoring lines inside ``` or ~~~ fences.
func splitSections(content string) []section {
	var (
		sections []section
		cur      section
		buf      strings.Builder
		fence    string
	)
	flush := func() {
		cur.text = buf.String()
		if cur.heading != "" || strings.TrimSpace(cur.text) != "" {
			sections = append(sections, cur)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if fence == "" && (strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")) {
			fence = trimmed[:3]
		} else if fence != "" && strings.HasPrefix(trimmed, fence) {
			fence = ""
		} else if fence == "" {
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				flush()
				cur = section{level: len(m[1]), heading: m[2]}
				buf.WriteString(m[2])
				buf.WriteString("\n")
				continue
			}
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()
	return sections
}

// extractTitle returns the first H1 heading, or a title derived from the filename.
func extractTitle(sections []section, path string) string {
	for _, s := range sections {
		if s.level == 1 {
			return s.heading
		}
	}
	return normalisers.TitleFromPath(path)
}

var (
	fenceLine    = regexp.MustCompile("(?m)^\\s*(```|~~~).*$")
	inlineCode   = regexp.MustCompile("`([^`]+)`")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emphasis     = regexp.MustCompile(`(\*\*|__|\*)([^*_\n]+)(\*\*|__|\*)`)
	blockquote   = regexp.MustCompile(`(?m)^>\s?`)
	rule         = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	listMarker   = regexp.MustCompile(`(?m)^(\s*)([-*+]|\d+\.)\s+`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// stripMarkdown removes formatting but keeps the text of code spans and fenced
// blocks, which often hold sequences and structures.
func stripMarkdown(content string) string {
	content = fenceLine.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = rule.ReplaceAllString(content, "")
	content = listMarker.ReplaceAllString(content, "$1")
	content = blankRuns.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
