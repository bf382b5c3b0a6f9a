package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTheme_Distinct(t *testing.T) {
	th := DefaultTheme()
	colours := []string{
		string(th.Accent), string(th.Accent2), string(th.Text), string(th.Dim),
		string(th.Good), string(th.Caution), string(th.Bad), string(th.Frame), string(th.Bar),
	}

	seen := map[string]bool{}
	for _, c := range colours {
		require.NotEmpty(t, c)
		assert.False(t, seen[c], "duplicate colour %s", c)
		seen[c] = true
	}
}

func TestNewStyles_UsesTheme(t *testing.T) {
	th := &Theme{Accent: "#000001", Accent2: "#000002", Text: "#000003", Dim: "#000004"}

	s := NewStyles(th)

	assert.Same(t, th, s.Theme())
	assert.Equal(t, th.Accent, s.Title.GetForeground())
	assert.Equal(t, th.Accent, s.Selected.GetBackground())
	assert.Equal(t, th.Dim, s.Citation.GetForeground())
	assert.True(t, s.Title.GetBold())
	assert.True(t, s.Citation.GetItalic())
}

func TestNewStyles_NilTheme(t *testing.T) {
	s := NewStyles(nil)

	assert.Equal(t, DefaultTheme(), s.Theme())
	assert.Equal(t, DefaultStyles().Theme(), s.Theme())
}

func TestStyles_Render(t *testing.T) {
	s := DefaultStyles()

	assert.Contains(t, s.Title.Render("ribo"), "ribo")
	assert.Contains(t, s.Border.Render("[1] Doe J (2021)"), "[1] Doe J (2021)")
}
