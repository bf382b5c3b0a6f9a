// Package documents lists the literature index and lets the user remove
// papers or ingest the data directory.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/keymap"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/messages"
	"github.com/givemeone1astkiss/ribo/internal/adapters/driving/tui/styles"
	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/core/ports/driving"
)

var ErrNoIngestionService = errors.New("ingestion service not available")

// chromeLines is the height taken by the title, notice and footer.
const chromeLines = 8

type mode int

const (
	browsing mode = iota
	loading
	ingesting
	confirming
)

type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	help      help.Model
	ingestion driving.IngestionService
	dataDir   string
	ctx       context.Context

	docs   []domain.DocumentSummary
	cursor int
	offset int
	width  int
	height int

	mode   mode
	notice string
	err    error
}

// NewView builds the view; the ingest key walks dataDir.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingestion driving.IngestionService, dataDir string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:    s,
		keymap:    km,
		help:      help.New(),
		ingestion: ingestion,
		dataDir:   dataDir,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

func (v *View) Init() tea.Cmd { return nil }

// Load starts listing the index.
func (v *View) Load() tea.Cmd {
	v.mode = loading
	v.err = nil
	return v.list
}

func (v *View) list() tea.Msg {
	if v.ingestion == nil {
		return messages.DocumentsLoaded{Err: ErrNoIngestionService}
	}
	docs, err := v.ingestion.List(v.ctx)
	return messages.DocumentsLoaded{Documents: docs, Err: err}
}

func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		if v.mode == confirming {
			return v, v.confirm(msg)
		}
		return v, v.handleKey(msg)

	case messages.DocumentsLoaded:
		v.mode = browsing
		v.err = msg.Err
		if msg.Err == nil {
			v.docs = msg.Documents
			v.cursor = min(v.cursor, max(len(v.docs)-1, 0))
			v.follow()
		}

	case messages.DocumentRemoved:
		if v.err = msg.Err; v.err == nil {
			v.notice = "Removed " + filepath.Base(msg.SourcePath)
			return v, v.list
		}

	case messages.IngestCompleted:
		v.mode = browsing
		if v.err = msg.Err; v.err == nil {
			v.notice = describe(msg.Report)
			return v, v.list
		}

	case messages.ErrorOccurred:
		v.err = msg.Err
	}
	return v, nil
}

func (v *View) handleKey(msg tea.KeyMsg) tea.Cmd {
	km := v.keymap
	switch {
	case key.Matches(msg, km.Up):
		v.move(-1)
	case key.Matches(msg, km.Down):
		v.move(1)
	case key.Matches(msg, km.Remove):
		if len(v.docs) > 0 {
			v.mode = confirming
		}
	case key.Matches(msg, km.Ingest):
		if v.mode == ingesting {
			return nil
		}
		v.mode = ingesting
		v.notice = ""
		return v.ingest
	case key.Matches(msg, km.Reload):
		return v.Load()
	case key.Matches(msg, km.Back):
		return func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	}
	return nil
}

// confirm answers the removal prompt; anything but y declines.
func (v *View) confirm(msg tea.KeyMsg) tea.Cmd {
	v.mode = browsing
	doc := v.SelectedDocument()
	if msg.String() != "y" || doc == nil {
		return nil
	}
	path := doc.SourcePath
	return func() tea.Msg {
		if v.ingestion == nil {
			return messages.DocumentRemoved{SourcePath: path, Err: ErrNoIngestionService}
		}
		return messages.DocumentRemoved{SourcePath: path, Err: v.ingestion.Remove(v.ctx, path)}
	}
}

func (v *View) ingest() tea.Msg {
	if v.ingestion == nil {
		return messages.IngestCompleted{Err: ErrNoIngestionService}
	}
	report, err := v.ingestion.IngestDirectory(v.ctx, v.dataDir)
	return messages.IngestCompleted{Report: report, Err: err}
}

func describe(r *driving.IngestReport) string {
	if r == nil {
		return "Ingestion finished"
	}
	return fmt.Sprintf("Ingested %d, skipped %d, failed %d", len(r.Added), len(r.Skipped), len(r.Failed))
}

func (v *View) move(delta int) {
	v.cursor = max(0, min(v.cursor+delta, len(v.docs)-1))
	v.follow()
}

// follow scrolls so the cursor row stays on screen.
func (v *View) follow() {
	rows := v.rows()
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+rows {
		v.offset = v.cursor - rows + 1
	}
}

func (v *View) rows() int { return max(v.height-chromeLines, 1) }

func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.docs))))
	b.WriteString("\n\n")

	switch {
	case v.mode == loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.mode == ingesting:
		b.WriteString(v.styles.Muted.Render("Ingesting " + v.dataDir + "..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.docs) == 0:
		b.WriteString(v.styles.Muted.Render("No documents indexed. Press i to ingest " + v.dataDir + "."))
	default:
		v.writeRows(&b)
	}

	if v.notice != "" {
		b.WriteString("\n\n" + v.styles.Success.Render(v.notice))
	}
	b.WriteString("\n\n")

	if doc := v.SelectedDocument(); v.mode == confirming && doc != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Remove %s from the index? [y/N]", doc.Title)))
		return b.String()
	}
	b.WriteString(v.help.ShortHelpView(v.keymap.DocumentsHelp()))
	return b.String()
}

func (v *View) writeRows(b *strings.Builder) {
	rows := v.rows()
	end := min(v.offset+rows, len(v.docs))
	titleWidth := max(v.width/2-4, 10)
	pathWidth := max(v.width/2-14, 10)

	for i := v.offset; i < end; i++ {
		d := v.docs[i]
		title := domain.Preview(d.Title, titleWidth-3)
		path := tail(d.SourcePath, pathWidth)
		units := fmt.Sprintf("%dt/%di", d.TextUnits, d.ImageUnits)

		if i == v.cursor {
			b.WriteString(v.styles.Selected.Render(fmt.Sprintf("> %-*s  %-*s  %s", titleWidth, title, pathWidth, path, units)))
		} else {
			b.WriteString(v.styles.Normal.Render(fmt.Sprintf("  %-*s  ", titleWidth, title)))
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("%-*s  %s", pathWidth, path, units)))
		}
		b.WriteByte('\n')
	}

	if len(v.docs) > rows {
		b.WriteString("\n" + v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", v.offset+1, end, len(v.docs))))
	}
}

// tail keeps the end of long paths, where the file name is.
func tail(path string, width int) string {
	if len(path) <= width {
		return path
	}
	return "..." + path[len(path)-width+3:]
}

func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.help.Width = width
}

func (v *View) Documents() []domain.DocumentSummary { return v.docs }
func (v *View) SelectedIndex() int                  { return v.cursor }

func (v *View) SelectedDocument() *domain.DocumentSummary {
	if v.cursor < len(v.docs) {
		return &v.docs[v.cursor]
	}
	return nil
}

func (v *View) IsConfirming() bool { return v.mode == confirming }
func (v *View) IsIngesting() bool  { return v.mode == ingesting }
func (v *View) Notice() string     { return v.notice }
func (v *View) Err() error         { return v.err }
