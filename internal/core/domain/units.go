package domain

import "fmt"

// LocationKind says how a unit's location number should be read.
type LocationKind string

// Location kinds.
const (
	// LocationPage is a 1-based PDF page number.
	LocationPage LocationKind = "page"

	// LocationSection is a 1-based Markdown section number.
	LocationSection LocationKind = "section"
)

// Page is one addressable region of a normalised document.
// PDF pages and Markdown sections are both represented as pages.
type Page struct {
	// Number is the 1-based location marker.
	Number int

	// Kind is the location kind.
	Kind LocationKind

	// Heading is the section heading, if any.
	Heading string

	// Text is the extracted text.
	Text string
}

// NormalisedDocument is the output of a normaliser: a document with its pages.
type NormalisedDocument struct {
	Document Document
	Pages    []Page
}

// TextUnit is a retrievable chunk of a document's text.
type TextUnit struct {
	// ID is stable for a given document, location and ordinal.
	ID string

	// DocumentID is the content hash of the owning document.
	DocumentID string

	// Source is the source path of the owning document.
	Source string

	// Location is the page or section the text came from.
	Location int

	// LocationKind says whether Location is a page or a section.
	LocationKind LocationKind

	// Ordinal is the chunk position within its location.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Embedding is the vector representation.
	Embedding []float32
}

// TextUnitID builds the stable identifier of a text unit.
func TextUnitID(documentID string, location, ordinal int) string {
	return fmt.Sprintf("%s_l%d_c%d", documentID, location, ordinal)
}

// ImageUnit is a retrievable page image of a document.
type ImageUnit struct {
	// ID is stable for a given document and page.
	ID string

	// DocumentID is the content hash of the owning document.
	DocumentID string

	// Source is the source path of the owning document.
	Source string

	// Location is the page number the image was rendered from.
	Location int

	// ImagePath is where the (possibly downscaled) PNG is stored.
	ImagePath string

	// Description is a short generated caption.
	Description string

	// OCRText is text recognised in the image, if any.
	OCRText string

	// Embedding is the vector representation.
	Embedding []float32
}

// ImageSummary is the listing form of a stored image unit.
type ImageSummary struct {
	ID          string
	DocumentID  string
	Source      string
	Page        int
	Description string
	ImagePath   string
	OCRText     string
}

// ImageUnitID builds the stable identifier of an image unit.
func ImageUnitID(documentID string, page int) string {
	return fmt.Sprintf("%s_img_%d", documentID, page)
}

// Content returns the text used to embed and display the image unit.
func (u ImageUnit) Content() string {
	if u.OCRText == "" {
		return u.Description
	}
	return u.Description + "\n" + u.OCRText
}
