package file

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/givemeone1astkiss/ribo/internal/core/ports/driven"
)

// Ensure EnvOverlay implements the interface.
var _ driven.ConfigStore = (*EnvOverlay)(nil)

// EnvBindings maps environment variables to config keys.
// Later entries win when several variables bind the same key.
var EnvBindings = []EnvBinding{
	{Var: "DEEPSEEK_BASE_URL", Key: "llm.base_url"},
	{Var: "DEEPSEEK_API_KEY", Key: "llm.api_key"},
	{Var: "RIBO_LLM_PROVIDER", Key: "llm.provider"},
	{Var: "RIBO_LLM_MODEL", Key: "llm.model"},
	{Var: "RIBO_LLM_BASE_URL", Key: "llm.base_url"},
	{Var: "RIBO_LLM_API_KEY", Key: "llm.api_key"},
	{Var: "RIBO_EMBEDDING_PROVIDER", Key: "embedding.provider"},
	{Var: "RIBO_EMBEDDING_API_KEY", Key: "embedding.api_key"},
	{Var: "RIBO_DATA_DIR", Key: "ingest.data_dir"},
	{Var: "RIBO_TOOLS_BASE_URL", Key: "tools.base_url"},
}

// EnvBinding binds one environment variable to one config key.
type EnvBinding struct {
	Var string
	Key string
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// EnvOverlay reads environment overrides before falling back to a base store.
// Writes always go to the base store.
type EnvOverlay struct {
	driven.ConfigStore
	lookup   func(string) (string, bool)
	bindings []EnvBinding
}

// NewEnvOverlay wraps base with the default bindings and os.LookupEnv.
func NewEnvOverlay(base driven.ConfigStore) *EnvOverlay {
	return NewEnvOverlayWithLookup(base, os.LookupEnv, EnvBindings)
}

// NewEnvOverlayWithLookup wraps base with custom bindings and lookup.
func NewEnvOverlayWithLookup(base driven.ConfigStore, lookup func(string) (string, bool), bindings []EnvBinding) *EnvOverlay {
	return &EnvOverlay{ConfigStore: base, lookup: lookup, bindings: bindings}
}

// env returns the effective override for key, if any.
func (o *EnvOverlay) env(key string) (string, bool) {
	var (
		value string
		found bool
	)
	for _, b := range o.bindings {
		if b.Key != key {
			continue
		}
		if v, ok := o.lookup(b.Var); ok && strings.TrimSpace(v) != "" {
			value, found = strings.TrimSpace(v), true
		}
	}
	return value, found
}

// Get returns the environment override or the base value.
func (o *EnvOverlay) Get(key string) (any, bool) {
	if v, ok := o.env(key); ok {
		return v, true
	}
	return o.ConfigStore.Get(key)
}

// GetString returns the environment override or the base value.
func (o *EnvOverlay) GetString(key string) string {
	if v, ok := o.env(key); ok {
		return v
	}
	return o.ConfigStore.GetString(key)
}

// GetInt parses an integer override, falling back to the base value.
func (o *EnvOverlay) GetInt(key string) int {
	if v, ok := o.env(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return o.ConfigStore.GetInt(key)
}

// GetFloat parses a float override, falling back to the base value.
func (o *EnvOverlay) GetFloat(key string) float64 {
	if v, ok := o.env(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return o.ConfigStore.GetFloat(key)
}

// GetBool parses a boolean override, falling back to the base value.
func (o *EnvOverlay) GetBool(key string) bool {
	if v, ok := o.env(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return o.ConfigStore.GetBool(key)
}
