// Package keymap holds the TUI's key bindings.
package keymap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap lists every binding. Some keys are shared between views
// (enter sends in chat and opens a citation in search results; i toggles
// images in search and ingests in documents).
type KeyMap struct {
	Quit, Help, Back key.Binding

	// Chat.
	Send, Stop, ClearMemory key.Binding

	// Lists.
	Up, Down key.Binding

	// Search results.
	NewSearch, Cite, Images key.Binding

	// Documents.
	Remove, Ingest, Reload key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// DefaultKeyMap returns the bindings ribo ships with. No global binding is
// a printable character, so text inputs receive every letter.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: bind("ctrl+c", "quit", "ctrl+c"),
		Help: bind("?", "help", "?"),
		Back: bind("esc", "back", "esc"),

		Send:        bind("enter", "send", "enter"),
		Stop:        bind("ctrl+x", "stop", "ctrl+x"),
		ClearMemory: bind("ctrl+l", "clear", "ctrl+l"),

		Up:   bind("↑/k", "up", "up", "k"),
		Down: bind("↓/j", "down", "down", "j"),

		NewSearch: bind("n", "new search", "n"),
		Cite:      bind("enter", "citation", "enter"),
		Images:    bind("i", "images", "i"),

		Remove: bind("d", "remove", "d"),
		Ingest: bind("i", "ingest", "i"),
		Reload: bind("r", "reload", "r"),
	}
}

func (k *KeyMap) ChatHelp() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.ClearMemory, k.Back}
}

func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.Cite, k.Images, k.NewSearch, k.Back}
}

func (k *KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Remove, k.Ingest, k.Reload, k.Back}
}

// ShortHelp is shown in the status bar outside the specialised views.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Back, k.Quit}
}

// FullHelp groups bindings by view for the help screen; the global ones
// come last.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Stop, k.ClearMemory},
		{k.Up, k.Down, k.Cite, k.Images, k.NewSearch},
		{k.Remove, k.Ingest, k.Reload},
		{k.Back, k.Help, k.Quit},
	}
}

// Controls renders FullHelp as indented "key  description" lines.
func (k *KeyMap) Controls() string {
	var b strings.Builder
	for _, group := range k.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-8s %s\n", h.Key, h.Desc)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Matches reports whether keyStr triggers binding.
func Matches(keyStr string, binding key.Binding) bool {
	return slices.Contains(binding.Keys(), keyStr)
}
