package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// DefaultDirName is the directory under the user's home holding ribo state.
const DefaultDirName = ".ribo"

// configFileName is the settings file inside the config directory.
const configFileName = "config.toml"

// ConfigStore keeps settings in a TOML file.
//
// Values are addressed by dotted keys: "retrieval.k" is the k entry of the
// [retrieval] table. Every Set rewrites the file.
type ConfigStore struct {
	mu   sync.RWMutex
	path string
	flat map[string]any
}

// NewConfigStore opens (or prepares) configDir/config.toml. An empty
// configDir means ~/.ribo.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, DefaultDirName)
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		path: filepath.Join(configDir, configFileName),
		flat: map[string]any{},
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file location.
func (s *ConfigStore) Path() string {
	return s.path
}

// Get returns the raw value stored under key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flat[key]
	return v, ok
}

// GetString returns key as a string, or "" when absent or not a string.
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetBool returns key as a bool, or false.
func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt returns key as an int. TOML decodes integers as int64.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

// GetFloat returns key as a float64, widening integers.
func (s *ConfigStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// GetStringSlice returns key as a list of strings. Non-string items of a
// decoded TOML array are dropped.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Set stores value under key and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flat[key] = value
	return s.write()
}

// Save rewrites the file from memory.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// Load replaces the in-memory values with the file's. A missing file reads
// as empty.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.flat = map[string]any{}
		return nil
	}
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	s.flat = map[string]any{}
	flatten(tree, "", s.flat)
	return nil
}

// write must be called with mu held. The file may contain API keys.
func (s *ConfigStore) write() error {
	raw, err := toml.Marshal(nest(s.flat))
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// flatten copies tree into out under dotted keys.
func flatten(tree map[string]any, prefix string, out map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(sub, k, out)
			continue
		}
		out[k] = v
	}
}

// nest turns dotted keys back into TOML tables. A key whose path runs
// through a plain value is kept at the top level as a quoted key.
func nest(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// Shorter keys first so a value claims its path before deeper keys try.
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})

	root := map[string]any{}
	for _, k := range keys {
		if !place(root, strings.Split(k, "."), flat[k]) {
			root[k] = flat[k]
		}
	}
	return root
}

func place(table map[string]any, path []string, v any) bool {
	for _, part := range path[:len(path)-1] {
		next, exists := table[part]
		if !exists {
			sub := map[string]any{}
			table[part] = sub
			table = sub
			continue
		}
		sub, ok := next.(map[string]any)
		if !ok {
			return false
		}
		table = sub
	}
	last := path[len(path)-1]
	if _, taken := table[last]; taken {
		return false
	}
	table[last] = v
	return true
}
