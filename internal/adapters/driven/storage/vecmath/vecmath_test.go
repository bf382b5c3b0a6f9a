package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}

func TestTopK(t *testing.T) {
	hits := []driven.VectorHit{
		{ID: "c", Distance: 0.5},
		{ID: "b", Distance: 0.1},
		{ID: "a", Distance: 0.5},
	}
	got := TopK(hits, 2)
	assert.Equal(t, []string{"b", "a"}, []string{got[0].ID, got[1].ID})
}
