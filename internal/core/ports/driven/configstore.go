package driven

// ConfigStore is flat key/value storage for settings, addressed by dotted
// keys ("llm.model"). Typed getters return the zero value when a key is
// missing or holds another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	// GetFloat widens stored integers.
	GetFloat(key string) float64
	GetStringSlice(key string) []string

	// Set stores value and persists it.
	Set(key string, value any) error
	Save() error
	Load() error

	// Path locates the backing file.
	Path() string
}
