// Package list renders ranked search hits.
package list

import (
	"fmt"
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
)

// rowsPerHit is the height of one rendered hit: heading, location, passage.
const rowsPerHit = 3

// ResultList is a scrolling list of hits numbered like citations.
type ResultList struct {
	styles *styles.Styles
	hits   []domain.SearchResult
	cursor int
	width  int
	height int
}

// NewResultList returns an empty list. Nil styles use the defaults.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 10}
}

// SetResults replaces the hits and moves the cursor to the top.
func (r *ResultList) SetResults(hits []domain.SearchResult) {
	r.hits = hits
	r.cursor = 0
}

// Results returns the hits.
func (r *ResultList) Results() []domain.SearchResult { return r.hits }

// Count returns the number of hits.
func (r *ResultList) Count() int { return len(r.hits) }

// IsEmpty reports whether there are no hits.
func (r *ResultList) IsEmpty() bool { return len(r.hits) == 0 }

// Selected returns the cursor position.
func (r *ResultList) Selected() int { return r.cursor }

// SetSelected moves the cursor; out-of-range positions are ignored.
func (r *ResultList) SetSelected(i int) {
	if i >= 0 && i < len(r.hits) {
		r.cursor = i
	}
}

// SelectedResult returns the hit under the cursor, or nil.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.cursor < 0 || r.cursor >= len(r.hits) {
		return nil
	}
	return &r.hits[r.cursor]
}

// MoveUp moves the cursor towards the best hit.
func (r *ResultList) MoveUp() {
	r.cursor = max(r.cursor-1, 0)
}

// MoveDown moves the cursor towards the worst hit.
func (r *ResultList) MoveDown() {
	if r.cursor < len(r.hits)-1 {
		r.cursor++
	}
}

// SetDimensions sets the area the list may draw in.
func (r *ResultList) SetDimensions(width, height int) {
	r.width, r.height = width, height
}

// Width returns the drawing width.
func (r *ResultList) Width() int { return r.width }

// Height returns the drawing height.
func (r *ResultList) Height() int { return r.height }

// View renders the hits that fit, keeping the cursor visible.
func (r *ResultList) View() string {
	if len(r.hits) == 0 {
		return r.styles.Muted.Render("No results")
	}

	first, last := r.window()
	out := []string{r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.hits))), ""}
	for i := first; i < last; i++ {
		out = append(out, r.renderHit(i))
	}
	return strings.Join(out, "\n")
}

// window returns the half-open range of hits to draw.
func (r *ResultList) window() (int, int) {
	fit := max((r.height-4)/rowsPerHit, 1)
	first := max(r.cursor-fit+1, 0)
	return first, min(first+fit, len(r.hits))
}

func (r *ResultList) renderHit(i int) string {
	hit := &r.hits[i]

	heading := fmt.Sprintf("[%d] %s", i+1, hit.Bibliography.DisplayTitle())
	if hit.Kind == domain.UnitImage {
		heading = fmt.Sprintf("[%d] [image] %s", i+1, hit.Bibliography.DisplayTitle())
	}
	titleWidth := max(r.width-20, 10)
	heading = fmt.Sprintf("%-*s", titleWidth, domain.Preview(heading, titleWidth-3))
	score := fmt.Sprintf("%.2f", hit.Score)

	var first string
	if i == r.cursor {
		first = r.styles.Selected.Render("> " + heading + "  " + score)
	} else {
		first = r.styles.Normal.Render("  "+heading+"  ") + r.styles.Muted.Render(score)
	}

	passage := strings.Join(strings.Fields(hit.Content), " ")
	if hit.Kind == domain.UnitImage && hit.ImagePath != "" && passage == "" {
		passage = hit.ImagePath
	}

	return strings.Join([]string{
		first,
		r.styles.Subtitle.Render("    " + location(hit)),
		r.styles.Muted.Render("    " + domain.Preview(passage, max(r.width-6, 20)-3)),
	}, "\n")
}

// location renders "source, page N" or "source, section N".
func location(hit *domain.SearchResult) string {
	if hit.Location <= 0 {
		return hit.Source
	}
	kind := hit.LocationKind
	if kind == "" {
		kind = domain.LocationPage
	}
	return fmt.Sprintf("%s, %s %d", hit.Source, kind, hit.Location)
}
