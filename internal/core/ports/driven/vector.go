package driven

import "context"

// VectorRecord is one unit written to a collection.
type VectorRecord struct {
	// ID is the unit identifier. Upserting an existing ID overwrites it.
	ID string

	// DocumentID groups records for deletion and consistency checks.
	DocumentID string

	// Content is the stored text (chunk text or image description).
	Content string

	// Metadata holds unit attributes such as source and location.
	Metadata map[string]string

	// Embedding is the unit vector.
	Embedding []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	ID         string
	DocumentID string
	Content    string
	Metadata   map[string]string

	// Distance is 1 - cosine similarity. Lower is closer.
	Distance float64
}

// Metadata keys written by the ingestion service.
const (
	MetaSource       = "source"
	MetaLocation     = "location"
	MetaLocationKind = "location_kind"
	MetaOrdinal      = "ordinal"
	MetaImagePath    = "image_path"
	MetaDescription  = "description"
	MetaOCRText      = "ocr_text"
)

// VectorCollection is a named set of embedded units searchable by cosine distance.
// A collection learns its dimension from the first record it stores and
// rejects vectors of any other size with domain.ErrDimensionMismatch.
type VectorCollection interface {
	// Name returns the collection name.
	Name() string

	// Upsert inserts or overwrites records by ID.
	Upsert(ctx context.Context, records []VectorRecord) error

	// Query returns the k nearest records to vector, closest first.
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)

	// DeleteDocument removes every record of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// CountByDocument returns the number of records per document.
	CountByDocument(ctx context.Context) (map[string]int, error)

	// Records returns every stored record without its embedding.
	Records(ctx context.Context) ([]VectorRecord, error)

	// Dimensions returns the learned dimension, or 0 when empty.
	Dimensions() int
}

// VectorIndex groups the text and image collections of the index store.
type VectorIndex interface {
	// Text returns the text unit collection.
	Text() VectorCollection

	// Image returns the image unit collection.
	Image() VectorCollection

	// Close releases resources.
	Close() error
}
