package driven

import (
	"context"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// NormaliserRegistry selects the appropriate normaliser for a file.
type NormaliserRegistry interface {
	// Normalise turns a source file into pages using the normaliser for its format.
	// Returns domain.ErrUnsupportedType when no normaliser handles the format.
	Normalise(ctx context.Context, file *domain.SourceFile) (*domain.NormalisedDocument, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// SupportedFormats returns all formats that can be normalised.
	SupportedFormats() []domain.Format
}

// DocumentRegistry records which content hashes have been ingested.
// It is the single source of truth for ingestion idempotence.
type DocumentRegistry interface {
	// Add registers a document. Returns false without error if the hash exists.
	Add(ctx context.Context, doc *domain.Document) (bool, error)

	// Exists reports whether a hash is registered.
	Exists(ctx context.Context, hash string) (bool, error)

	// Get returns a document by hash, or domain.ErrNotFound.
	Get(ctx context.Context, hash string) (*domain.Document, error)

	// GetBySource returns the document ingested from path, or domain.ErrNotFound.
	GetBySource(ctx context.Context, sourcePath string) (*domain.Document, error)

	// List returns every registered document, oldest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Remove unregisters the document with this hash. A replaced file
	// briefly has two entries under one path, so removal is by hash.
	Remove(ctx context.Context, hash string) (bool, error)
}
