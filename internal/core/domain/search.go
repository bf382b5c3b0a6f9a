package domain

import (
	"fmt"
	"unicode/utf8"
)

// UnitKind distinguishes text and image retrieval results.
type UnitKind string

// Unit kinds.
const (
	UnitText  UnitKind = "text"
	UnitImage UnitKind = "image"
)

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// K is the maximum number of results.
	K int

	// IncludeImages also queries the image collection.
	IncludeImages bool
}

// SearchResult represents a single retrieval hit.
type SearchResult struct {
	// UnitID is the matched text or image unit.
	UnitID string

	// Kind says which collection the hit came from.
	Kind UnitKind

	// DocumentID is the content hash of the owning document.
	DocumentID string

	// Source is the source path of the owning document.
	Source string

	// Location is the page or section of the hit.
	Location int

	// LocationKind says how Location should be read.
	LocationKind LocationKind

	// Content is the unit text (or image description and OCR text).
	Content string

	// ImagePath is set for image hits.
	ImagePath string

	// Score is 1 - cosine distance. Higher is better.
	Score float64

	// Bibliography is hydrated from the document registry.
	Bibliography Bibliography
}

// DedupKey identifies the (document, location) a hit belongs to.
func (r SearchResult) DedupKey() string {
	owner := r.DocumentID
	if owner == "" {
		owner = r.Source
	}
	return fmt.Sprintf("%s#%d", owner, r.Location)
}

// CitationPreviewLength is the number of characters kept in a citation preview.
const CitationPreviewLength = 200

// Citation is a ranked reference derived from a retrieval result.
type Citation struct {
	Rank         int          `json:"rank"`
	DocumentID   string       `json:"document_id"`
	Source       string       `json:"source"`
	Location     int          `json:"location"`
	LocationKind LocationKind `json:"location_kind"`
	Score        float64      `json:"score"`
	Preview      string       `json:"preview"`
	Title        string       `json:"title"`
	Authors      string       `json:"authors"`
	Year         string       `json:"year"`
	DOI          string       `json:"doi"`
	Reference    string       `json:"reference"`
}

// NewCitation builds the citation for a result at the given 1-based rank.
func NewCitation(rank int, r SearchResult) Citation {
	b := r.Bibliography
	return Citation{
		Rank:         rank,
		DocumentID:   r.DocumentID,
		Source:       r.Source,
		Location:     r.Location,
		LocationKind: r.LocationKind,
		Score:        r.Score,
		Preview:      Preview(r.Content, CitationPreviewLength),
		Title:        b.DisplayTitle(),
		Authors:      b.DisplayAuthors(),
		Year:         b.DisplayYear(),
		DOI:          b.DisplayDOI(),
		Reference: fmt.Sprintf("[%d] %s (%s). %s. DOI: %s",
			rank, b.DisplayAuthors(), b.DisplayYear(), b.DisplayTitle(), b.DisplayDOI()),
	}
}

// Preview truncates s to n runes, appending "..." when truncated.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
