package cli

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

func TestDocumentCmd_Use(t *testing.T) {
	assert.Equal(t, "document", documentCmd.Use)
	assert.Contains(t, documentCmd.Aliases, "documents")
}

func TestDocumentCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range documentCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"list", "remove", "stats", "images", "check"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func withDocuments(docs ...domain.DocumentSummary) *mockIngestionService {
	svc := &mockIngestionService{docs: docs}
	ingestionService = svc
	return svc
}

func TestDocumentList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	withDocuments(domain.DocumentSummary{
		ID:         "0123456789abcdef0123",
		SourcePath: "data/riboswitch.pdf",
		Title:      "Riboswitch Design",
		TextUnits:  14,
		ImageUnits: 3,
		IngestedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	})

	stdout, _, err := execute(t, "documents", "list")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Riboswitch Design")
	assert.Contains(t, stdout, "ID:       0123456789ab\n")
	assert.Contains(t, stdout, "Units:    14 text, 3 image")
	assert.Contains(t, stdout, "2026-03-01 09:30:00")
	assert.Contains(t, stdout, "Total: 1 documents")
}

func TestDocumentImages(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	svc := withDocuments()
	svc.images = []domain.ImageSummary{{
		ID:          "0123456789abcdef0123_img_2",
		DocumentID:  "0123456789abcdef0123",
		Source:      "data/riboswitch.pdf",
		Page:        2,
		Description: "Page 2 of Riboswitch Design",
		ImagePath:   "/images/0123456789abcdef0123/page-2.png",
		OCRText:     "Fig. 2 aptamer domain",
	}}

	stdout, _, err := execute(t, "document", "images")

	require.NoError(t, err)
	assert.Contains(t, stdout, "data/riboswitch.pdf, page 2")
	assert.Contains(t, stdout, "Document: 0123456789ab\n")
	assert.Contains(t, stdout, "Image:    /images/0123456789abcdef0123/page-2.png")
	assert.Contains(t, stdout, "OCR:      Fig. 2 aptamer domain")
	assert.Contains(t, stdout, "Total: 1 images")
}

func TestDocumentImages_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	withDocuments()

	stdout, _, err := execute(t, "document", "images")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No page images stored.")
}

func TestDocumentList_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	withDocuments()

	stdout, _, err := execute(t, "document", "list")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No documents indexed")
}

func TestDocumentList_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	defer func() { documentJSON = false }()
	withDocuments(domain.DocumentSummary{ID: "abc", Title: "Riboswitch Design"})

	stdout, _, err := execute(t, "document", "list", "--json")

	require.NoError(t, err)
	var docs []domain.DocumentSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "abc", docs[0].ID)
}

func TestDocumentRemove(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	svc := withDocuments()

	stdout, _, err := execute(t, "document", "remove", "data/riboswitch.pdf")

	require.NoError(t, err)
	assert.Equal(t, "data/riboswitch.pdf", svc.removed)
	assert.Contains(t, stdout, "Removed: data/riboswitch.pdf")
}

func TestDocumentRemove_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	svc := withDocuments()
	svc.err = domain.ErrNotFound

	_, _, err := execute(t, "document", "remove", "data/missing.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStats(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	withDocuments(domain.DocumentSummary{ID: "a"}, domain.DocumentSummary{ID: "b"})

	stdout, _, err := execute(t, "document", "stats")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Backend:      sqlite")
	assert.Contains(t, stdout, "Documents:    2")
	assert.Contains(t, stdout, "Text units:   40")
	assert.Contains(t, stdout, "Status:       idle")
}

func TestDocumentCheck_Consistent(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	withDocuments()

	stdout, _, err := execute(t, "document", "check")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Index is consistent.")
}

func TestDocumentCheck_ReportsIssues(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	svc := withDocuments()
	svc.issues = []driving.Inconsistency{
		{Kind: driving.CountMismatch, DocumentID: "0123456789abcdef", Collection: "text", Expected: 10, Actual: 7},
	}

	stdout, _, err := execute(t, "document", "check")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 inconsistencies found")
	assert.Contains(t, stdout, "count_mismatch")
	assert.Contains(t, stdout, "text: expected 10, found 7")
}

func TestDocumentCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	svc := withDocuments()
	svc.err = errors.New("registry closed")

	_, _, err := execute(t, "document", "stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read stats")
}

func TestDocumentCmd_ServiceNotConfigured(t *testing.T) {
	old := ingestionService
	ingestionService = nil
	defer func() { ingestionService = old }()

	_, _, err := execute(t, "document", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion service not configured")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
}
