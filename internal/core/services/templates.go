package services

import (
	"strings"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/prompts"
)

// loadPrompt returns the template from the store, falling back to the
// built-in default when the store is nil or fails.
func loadPrompt(store driven.PromptStore, name string) string {
	if store != nil {
		tmpl, err := store.Load(name)
		if err == nil && strings.TrimSpace(tmpl) != "" {
			return tmpl
		}
		if err != nil {
			logger.Warn("Prompt %q unavailable, using built-in default: %v", name, err)
		}
	}
	tmpl, _ := prompts.Default(name)
	return tmpl
}
