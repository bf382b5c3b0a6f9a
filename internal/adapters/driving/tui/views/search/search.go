// Package search is the literature lookup screen: a query line, ranked
// passages and page images, and a citation panel for the selected hit.
package search

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/components/input"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/components/list"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/components/status"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

// ErrNoSearchService is reported when a query is submitted without an index.
var ErrNoSearchService = errors.New("search service is required")

// mode is what the keyboard currently drives.
type mode int

const (
	modeQuery   mode = iota // typing a query
	modeResults             // moving through hits
	modeCitation            // reading one hit
)

// reservedRows is taken by the header, query line and status bar.
const reservedRows = 10

// View is the search screen.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	query     *input.Field
	hits      *list.ResultList
	statusbar *status.Bar

	index driving.SearchService
	ctx   context.Context

	mode          mode
	includeImages bool
	width, height int
	ready         bool
	err           error
}

// NewView creates the search screen. Nil styles or keymap use the defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap, index driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:        s,
		keymap:        km,
		query:         input.NewSearchInput(s),
		hits:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		index:         index,
		ctx:           context.Background(),
		includeImages: true,
		width:         80,
		height:        24,
	}
}

// WithContext sets the context searches run under.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the cursor blinking.
func (v *View) Init() tea.Cmd {
	return v.query.Init()
}

// Update handles one message.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil
	case tea.KeyMsg:
		return v, v.handleKey(msg)
	case messages.SearchCompleted:
		v.showHits(msg)
		return v, nil
	case messages.ErrorOccurred:
		v.fail(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.query, cmd = v.query.Update(msg)
	return v, cmd
}

func (v *View) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, v.keymap.Back) {
		if v.mode == modeCitation {
			v.mode = modeResults
			return nil
		}
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	}

	if v.mode == modeQuery {
		if !key.Matches(msg, v.keymap.Send) {
			v.query, _ = v.query.Update(msg)
			return nil
		}
		q := strings.TrimSpace(v.query.Value())
		if q == "" {
			return nil
		}
		v.mode = modeResults
		v.query.Blur()
		v.statusbar.SetState(status.StateSearching)
		return v.search(q)
	}

	switch {
	case key.Matches(msg, v.keymap.Cite):
		v.toggleCitation()
	case key.Matches(msg, v.keymap.Up):
		v.hits.MoveUp()
	case key.Matches(msg, v.keymap.Down):
		v.hits.MoveDown()
	case key.Matches(msg, v.keymap.Images):
		v.includeImages = !v.includeImages
	case key.Matches(msg, v.keymap.NewSearch):
		v.editQuery()
	}
	return nil
}

func (v *View) toggleCitation() {
	switch {
	case v.mode == modeCitation:
		v.mode = modeResults
	case v.hits.SelectedResult() != nil:
		v.mode = modeCitation
	}
}

func (v *View) editQuery() {
	v.mode = modeQuery
	v.query.SetValue("")
	v.query.Focus()
}

// search runs the query off the UI goroutine.
func (v *View) search(q string) tea.Cmd {
	index, ctx := v.index, v.ctx
	opts := domain.SearchOptions{IncludeImages: v.includeImages}
	return func() tea.Msg {
		if index == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		results, err := index.Search(ctx, q, opts)
		return messages.SearchCompleted{Results: results, Err: err}
	}
}

func (v *View) showHits(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.fail(msg.Err)
		return
	}
	v.err = nil
	v.mode = modeResults
	v.query.Blur()
	v.hits.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Results))
}

func (v *View) fail(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the screen.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	images := "text only"
	if v.includeImages {
		images = "text + page images"
	}
	parts := []string{
		v.styles.Title.Render("Search literature") + "  " + v.styles.Muted.Render(images),
		"",
		v.query.View(),
		"",
	}
	if v.err != nil {
		parts = append(parts, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	parts = append(parts, v.hits.View())
	if v.mode == modeCitation {
		parts = append(parts, "", v.citationPanel())
	}
	parts = append(parts, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// citationPanel shows the reference line, image path and full passage of
// the selected hit.
func (v *View) citationPanel() string {
	hit := v.hits.SelectedResult()
	if hit == nil {
		return ""
	}

	c := domain.NewCitation(v.hits.Selected()+1, *hit)
	body := []string{v.styles.Citation.Render(c.Reference)}
	if hit.ImagePath != "" {
		body = append(body, v.styles.Muted.Render("Image: "+hit.ImagePath))
	}
	body = append(body, "", v.styles.Normal.Render(strings.TrimSpace(hit.Content)))

	return v.styles.Border.
		Padding(0, 1).
		Width(max(v.width-4, 20)).
		Render(strings.Join(body, "\n"))
}

// SetDimensions resizes the screen and its components.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.ready = true
	v.query.SetWidth(width)
	v.hits.SetDimensions(width, height-reservedRows)
	v.statusbar.SetWidth(width)
}

// Width returns the current width.
func (v *View) Width() int { return v.width }

// Height returns the current height.
func (v *View) Height() int { return v.height }

// Ready reports whether a size has been received.
func (v *View) Ready() bool { return v.ready }

// Query returns the text in the query line.
func (v *View) Query() string { return v.query.Value() }

// SetQuery replaces the text in the query line.
func (v *View) SetQuery(q string) { v.query.SetValue(q) }

// Results returns the hits currently listed.
func (v *View) Results() []domain.SearchResult { return v.hits.Results() }

// SelectedIndex returns the cursor position in the hit list.
func (v *View) SelectedIndex() int { return v.hits.Selected() }

// SelectedResult returns the hit under the cursor, if any.
func (v *View) SelectedResult() *domain.SearchResult { return v.hits.SelectedResult() }

// Err returns the last search error.
func (v *View) Err() error { return v.err }

// ClearError drops the last error.
func (v *View) ClearError() {
	v.err = nil
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetMessage("")
}

// Reset clears the hits and returns to the query line.
func (v *View) Reset() {
	v.editQuery()
	v.hits.SetResults(nil)
	v.ClearError()
}

// SetIncludeImages chooses whether page images are searched.
func (v *View) SetIncludeImages(include bool) { v.includeImages = include }

// IncludeImages reports whether page images are searched.
func (v *View) IncludeImages() bool { return v.includeImages }

// DetailVisible reports whether the citation panel is open.
func (v *View) DetailVisible() bool { return v.mode == modeCitation }

// InputFocused reports whether keys go to the query line.
func (v *View) InputFocused() bool { return v.mode == modeQuery }
