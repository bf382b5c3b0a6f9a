package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

func doc(pages ...domain.Page) *domain.NormalisedDocument {
	return &domain.NormalisedDocument{
		Document: domain.Document{ID: "hash", SourcePath: "/lit/a.pdf"},
		Pages:    pages,
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0, -1)
	assert.Equal(t, DefaultChunkSize, p.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, p.Overlap())
	assert.Equal(t, "chunker", p.Name())
}

func TestNew_OverlapClamped(t *testing.T) {
	p := New(100, 100)
	assert.Equal(t, 25, p.Overlap())

	p = New(-1, -5)
	assert.Equal(t, DefaultChunkSize, p.ChunkSize())
	assert.Equal(t, DefaultChunkOverlap, p.Overlap())
}

func TestProcess_Windows(t *testing.T) {
	text := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 5)
	p := New(10, 2)

	units, err := p.Process(context.Background(), doc(domain.Page{Number: 3, Kind: domain.LocationPage, Text: text}), nil)

	require.NoError(t, err)
	// Starts at 0, 8, 16, 24.
	require.Len(t, units, 4)
	assert.Equal(t, "aaaaaaaaaa", units[0].Text)
	assert.Equal(t, "aabbbbbbbb", units[1].Text)
	assert.Equal(t, "bbbbccccc", units[2].Text)
	assert.Equal(t, "c", units[3].Text)

	for i, u := range units {
		assert.Equal(t, i, u.Ordinal)
		assert.Equal(t, 3, u.Location)
		assert.Equal(t, domain.LocationPage, u.LocationKind)
		assert.Equal(t, "hash", u.DocumentID)
		assert.Equal(t, "/lit/a.pdf", u.Source)
		assert.Equal(t, domain.TextUnitID("hash", 3, i), u.ID)
	}
}

func TestProcess_CountsRunesNotBytes(t *testing.T) {
	p := New(4, 0)

	units, err := p.Process(context.Background(), doc(domain.Page{Number: 1, Text: "αβγδεζ"}), nil)

	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "αβγδ", units[0].Text)
	assert.Equal(t, "εζ", units[1].Text)
}

func TestProcess_SkipsBlankPagesAndWindows(t *testing.T) {
	p := New(5, 0)

	units, err := p.Process(context.Background(), doc(
		domain.Page{Number: 1, Text: "   \n\t"},
		domain.Page{Number: 2, Text: "abcde     fghij"},
	), nil)

	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, 0, units[0].Ordinal)
	assert.Equal(t, 2, units[1].Ordinal, "ordinal keeps the window index")
	assert.Equal(t, 2, units[1].Location)
}

func TestProcess_NoPages(t *testing.T) {
	units, err := New(0, -1).Process(context.Background(), doc(), nil)

	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(0, -1).Process(ctx, doc(domain.Page{Number: 1, Text: "x"}), nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_StableIDs(t *testing.T) {
	d := doc(domain.Page{Number: 1, Text: strings.Repeat("RNA ", 600)})

	first, err := New(0, -1).Process(context.Background(), d, nil)
	require.NoError(t, err)
	second, err := New(0, -1).Process(context.Background(), d, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProcess_ZeroOverlapIsKept(t *testing.T) {
	p := New(10, 0)

	assert.Equal(t, 0, p.Overlap())
}
