// Package prompts holds the built-in prompt templates.
//
// Templates are plain text with {query} and {context} slots. The file-based
// prompt store seeds ~/.ribo/prompts from these, and services fall back to
// them when no store is configured.
package prompts

import (
	"embed"
	"sort"
	"strings"
)

//go:embed defaults/*.txt
var defaultsFS embed.FS

// Slot names used in templates.
const (
	SlotQuery   = "{query}"
	SlotContext = "{context}"
)

// Default returns the built-in template for name.
func Default(name string) (string, bool) {
	data, err := defaultsFS.ReadFile("defaults/" + name + ".txt")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Names returns the names of all built-in templates, sorted.
func Names() []string {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names
}

// Slots returns the slots the built-in template for name uses. An edited
// template must keep them.
func Slots(name string) []string {
	def, ok := Default(name)
	if !ok {
		return nil
	}
	var used []string
	for _, slot := range []string{SlotQuery, SlotContext} {
		if strings.Contains(def, slot) {
			used = append(used, slot)
		}
	}
	return used
}

// Render fills the {query} and {context} slots of a template.
func Render(template, query, context string) string {
	return strings.NewReplacer(SlotQuery, query, SlotContext, context).Replace(template)
}
