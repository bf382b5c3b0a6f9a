package domain

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Format identifies the on-disk format of a literature file.
type Format string

// Supported literature formats.
const (
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// FormatFromPath maps a file extension to a supported format.
// The second return value is false for unsupported files.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".txt":
		return FormatText, true
	default:
		return "", false
	}
}

// Citation placeholders used when bibliographic metadata is missing.
const (
	UnknownAuthors = "Unknown Authors"
	UnknownTitle   = "Untitled"
	UnknownYear    = "Unknown Year"
	UnknownDOI     = "N/A"
)

// Bibliography holds the citation metadata of a document.
// Every field is optional.
type Bibliography struct {
	Title    string
	Authors  string
	Year     string
	DOI      string
	Abstract string
}

// DisplayTitle returns the title or the placeholder.
func (b Bibliography) DisplayTitle() string {
	return orDefault(b.Title, UnknownTitle)
}

// DisplayAuthors returns the authors or the placeholder.
func (b Bibliography) DisplayAuthors() string {
	return orDefault(b.Authors, UnknownAuthors)
}

// DisplayYear returns the year or the placeholder.
func (b Bibliography) DisplayYear() string {
	return orDefault(b.Year, UnknownYear)
}

// DisplayDOI returns the DOI or the placeholder.
func (b Bibliography) DisplayDOI() string {
	return orDefault(b.DOI, UnknownDOI)
}

var doiPattern = regexp.MustCompile(`(?i)\b10\.\d{4,9}/[^\s"<>]+`)

// FindDOI returns the first DOI-looking string in text, without trailing punctuation.
func FindDOI(text string) string {
	return strings.TrimRight(doiPattern.FindString(text), ".,;)")
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Document represents an ingested literature file.
// It is created on the first successful ingestion of a content hash and is
// immutable afterwards: re-ingesting identical bytes is a no-op.
type Document struct {
	// ID is the hex content hash of the raw file bytes.
	ID string

	// SourcePath is the file path the document was ingested from.
	SourcePath string

	// Format is the detected file format.
	Format Format

	// Bibliography holds optional citation metadata.
	Bibliography

	// TextUnits is the number of text units written to the index.
	TextUnits int

	// ImageUnits is the number of image units written to the index.
	ImageUnits int

	// IngestedAt is when the document was registered.
	IngestedAt time.Time
}

// DocumentSummary is the listing form of a registered document.
type DocumentSummary struct {
	ID         string
	SourcePath string
	Title      string
	TextUnits  int
	ImageUnits int
	IngestedAt time.Time
}

// Summary returns the listing form of the document.
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		SourcePath: d.SourcePath,
		Title:      d.DisplayTitle(),
		TextUnits:  d.TextUnits,
		ImageUnits: d.ImageUnits,
		IngestedAt: d.IngestedAt,
	}
}

// SourceFile is a literature file read from disk, before normalisation.
type SourceFile struct {
	// Path is the file path.
	Path string

	// Format is the detected file format.
	Format Format

	// Hash is the hex content hash of Content.
	Hash string

	// Content is the raw bytes.
	Content []byte
}
