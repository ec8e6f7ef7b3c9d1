package driven

// ConfigStore is a flat key/value view over the settings file. Keys use dot
// notation ("search.mode"); the typed getters return the zero value for a
// missing key or a value of another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// Set stores value. File-backed stores write it through; Save forces
	// a write of everything held.
	Set(key string, value any) error

	// Keys lists every key, sorted.
	Keys() []string

	Save() error
	Load() error

	// Path is the file backing the store.
	Path() string
}
