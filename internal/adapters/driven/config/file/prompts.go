package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
	"github.com/givemeone1astkiss/ribo/internal/logger"
	"github.com/givemeone1astkiss/ribo/internal/prompts"
)

var _ driven.PromptStore = (*PromptStore)(nil)

const promptExt = ".txt"

// PromptStore serves prompt templates from a directory of text files the
// user may edit, one file per template. The directory is seeded with the
// built-in templates on first use; existing files are never overwritten.
//
// A file that is missing, blank or has lost one of its slots is ignored in
// favour of the built-in template.
type PromptStore struct {
	dir string

	seed    sync.Once
	seedErr error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore returns a store over dir, or ~/.ribo/prompts when dir is
// empty. Nothing is touched on disk until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName, "prompts")
	}
	return &PromptStore{dir: dir, cache: map[string]string{}}, nil
}

// Dir returns the template directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Seed writes the built-in templates into the directory if it has not
// been done yet. Load calls it too.
func (s *PromptStore) Seed() error {
	s.seed.Do(func() { s.seedErr = s.seedDir() })
	return s.seedErr
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	_ = s.Seed()

	builtin, known := prompts.Default(name)
	if s.seedErr != nil {
		if known {
			return builtin, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.seedErr)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text, err := s.read(name)
	switch {
	case err == nil:
	case known:
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("prompt %s: %v; using the built-in template", name, err)
		}
		text = builtin
	default:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = text
	return text, nil
}

// Reload forgets cached templates so edits are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = map[string]string{}
	s.mu.Unlock()
}

// read loads and checks one template file.
func (s *PromptStore) read(name string) (string, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", errors.New("empty prompt file")
	}
	for _, slot := range prompts.Slots(name) {
		if !strings.Contains(text, slot) {
			return "", fmt.Errorf("template lost its %s slot", slot)
		}
	}
	return text, nil
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+promptExt)
}

// seedDir writes every built-in template that has no file yet, plus a
// README describing the slots.
func (s *PromptStore) seedDir() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}

	var readme strings.Builder
	readme.WriteString("# ribo prompts\n\n")
	readme.WriteString("Edit a file to change how the assistant talks; delete it to get the\n")
	readme.WriteString("built-in version back. Keep the slots each file uses:\n\n")

	for _, name := range prompts.Names() {
		text, _ := prompts.Default(name)
		if err := writeIfAbsent(s.path(name), text+"\n"); err != nil {
			return fmt.Errorf("create default prompt %q: %w", name, err)
		}
		slots := strings.Join(prompts.Slots(name), ", ")
		if slots == "" {
			slots = "none"
		}
		fmt.Fprintf(&readme, "- `%s%s`: %s\n", name, promptExt, slots)
	}

	fmt.Fprintf(&readme, "\n`%s` is the user's question. `%s` is the retrieved literature,\n", prompts.SlotQuery, prompts.SlotContext)
	readme.WriteString("tool results and recent conversation.\n")
	return writeIfAbsent(filepath.Join(s.dir, "README.md"), readme.String())
}

func writeIfAbsent(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
