package memory

import (
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. It backs the service tests and is the
// in-memory half of the TOML store in config/file.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt accepts any numeric value; floats are truncated. TOML decodes
// integers as int64.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	n, _ := number(v)
	return int(n)
}

// GetFloat widens integers.
func (s *ConfigStore) GetFloat(key string) float64 {
	v, _ := s.Get(key)
	n, _ := number(v)
	return n
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot copies the current values.
func (s *ConfigStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Replace swaps in values wholesale. A nil map empties the store.
func (s *ConfigStore) Replace(values map[string]any) {
	if values == nil {
		values = make(map[string]any)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
}

// Save and Load have nothing to persist.
func (s *ConfigStore) Save() error { return nil }
func (s *ConfigStore) Load() error { return nil }

func (s *ConfigStore) Path() string {
	return ":memory:"
}
