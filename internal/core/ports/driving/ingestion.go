package driving

import (
	"context"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// IngestionService builds and maintains the literature index.
type IngestionService interface {
	// IngestDirectory ingests every supported file under dir.
	// Returns domain.ErrIndexingInProgress if a directory run is already active.
	IngestDirectory(ctx context.Context, dir string) (*IngestReport, error)

	// IngestFile ingests one file. added is false when the content hash is
	// already registered.
	IngestFile(ctx context.Context, path string) (doc *domain.Document, added bool, err error)

	// Remove deletes the document ingested from path and all of its units.
	Remove(ctx context.Context, sourcePath string) error

	// List returns every registered document.
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// ListImages returns every stored page image with its caption and OCR text.
	ListImages(ctx context.Context) ([]domain.ImageSummary, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*IndexStats, error)

	// CheckConsistency compares the registry with the collections.
	CheckConsistency(ctx context.Context) ([]Inconsistency, error)

	// IsIndexing reports whether a directory run is active.
	IsIndexing() bool
}

// IngestReport summarises a directory run.
type IngestReport struct {
	Added    []string      `json:"added"`
	Skipped  []string      `json:"skipped"`
	Failed   []FileFailure `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// FileFailure records a file that could not be ingested.
type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IndexStats describes the current index.
type IndexStats struct {
	Documents      int    `json:"documents"`
	TextUnits      int    `json:"text_units"`
	ImageUnits     int    `json:"image_units"`
	Indexing       bool   `json:"indexing"`
	Backend        string `json:"backend"`
	EmbeddingModel string `json:"embedding_model"`
	DataDir        string `json:"data_dir"`
}

// InconsistencyKind classifies a registry/index disagreement.
type InconsistencyKind string

// Inconsistency kinds.
const (
	// MissingUnits: the registry lists a document the index has no units for.
	MissingUnits InconsistencyKind = "missing_units"

	// Unregistered: the index holds units of a document the registry does not list.
	Unregistered InconsistencyKind = "unregistered"

	// CountMismatch: registry and index disagree on a document's unit count.
	CountMismatch InconsistencyKind = "count_mismatch"
)

// Inconsistency is one registry/index disagreement.
type Inconsistency struct {
	Kind       InconsistencyKind `json:"kind"`
	DocumentID string            `json:"document_id"`
	Collection string            `json:"collection"`
	Expected   int               `json:"expected"`
	Actual     int               `json:"actual"`
}
