package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// registry implements driven.DocumentRegistry.
type registry struct {
	store *Store
}

var _ driven.DocumentRegistry = (*registry)(nil)

const documentColumns = `id, source_path, format, title, authors, year, doi, abstract,
	text_units, image_units, ingested_at`

// Add registers a document. Existing hashes are left untouched.
func (r *registry) Add(ctx context.Context, doc *domain.Document) (bool, error) {
	ingestedAt := doc.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	res, err := r.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, doc.ID, doc.SourcePath, string(doc.Format), doc.Title, doc.Authors, doc.Year,
		doc.DOI, doc.Abstract, doc.TextUnits, doc.ImageUnits, ingestedAt)
	if err != nil {
		return false, fmt.Errorf("registering document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("registering document: %w", err)
	}
	return n == 1, nil
}

// Exists reports whether a hash is registered.
func (r *registry) Exists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := r.store.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking document: %w", err)
	}
	return true, nil
}

// Get returns a document by hash.
func (r *registry) Get(ctx context.Context, hash string) (*domain.Document, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", hash)
	return scanDocument(row)
}

// GetBySource returns the most recent document ingested from path.
func (r *registry) GetBySource(ctx context.Context, sourcePath string) (*domain.Document, error) {
	row := r.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE source_path = ? ORDER BY ingested_at DESC LIMIT 1",
		sourcePath)
	return scanDocument(row)
}

// List returns every registered document, oldest first.
func (r *registry) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY ingested_at, source_path")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// Remove unregisters one document by hash.
func (r *registry) Remove(ctx context.Context, hash string) (bool, error) {
	res, err := r.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", hash)
	if err != nil {
		return false, fmt.Errorf("removing document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing document: %w", err)
	}
	return n > 0, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var format string
	var ingestedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.SourcePath, &format, &doc.Title, &doc.Authors, &doc.Year,
		&doc.DOI, &doc.Abstract, &doc.TextUnits, &doc.ImageUnits, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.Format = domain.Format(format)
	if ingestedAt.Valid {
		doc.IngestedAt = ingestedAt.Time
	}
	return &doc, nil
}
