package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigFileName is the settings file inside the config directory.
const ConfigFileName = "config.toml"

// ConfigStore persists settings as TOML. Values are held in dot notation
// ("parser.chunk_size") and written as tables ([parser] chunk_size = ...).
// Set writes through to disk.
type ConfigStore struct {
	*memory.ConfigStore

	// saveMu serialises writes to path
	saveMu sync.Mutex
	path   string
}

// DefaultConfigDir is ~/.quarry.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quarry"), nil
}

// NewConfigStore opens dir/config.toml, creating dir when needed. An empty
// dir means DefaultConfigDir. A missing file is an empty store.
func NewConfigStore(dir string) (*ConfigStore, error) {
	if dir == "" {
		d, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	s := &ConfigStore{
		ConfigStore: memory.NewConfigStore(),
		path:        filepath.Join(dir, ConfigFileName),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set stores value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.ConfigStore.Set(key, value); err != nil {
		return err
	}
	return s.write()
}

func (s *ConfigStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.write()
}

// write replaces the file via a temp file in the same directory so a crash
// never leaves half a config behind. Callers hold saveMu.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(nestMap(s.Snapshot()))
	if err != nil {
		return fmt.Errorf("encode %s: %w", ConfigFileName, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load replaces the in-memory values with the file's contents.
func (s *ConfigStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return err
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.Replace(flattenMap(tree, ""))
	return nil
}

func (s *ConfigStore) Path() string {
	return s.path
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tree map[string]any, prefix string) map[string]any {
	flat := make(map[string]any)
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		sub, ok := value.(map[string]any)
		if !ok {
			flat[key] = value
			continue
		}
		for k, v := range flattenMap(sub, key) {
			flat[k] = v
		}
	}
	return flat
}

// nestMap inverts flattenMap. When a key is both a value and a table prefix
// ("a" and "a.b"), the conflicting entries stay under their dotted names.
func nestMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tree := make(map[string]any)
	for _, key := range keys {
		if !insertPath(tree, strings.Split(key, "."), flat[key]) {
			tree[key] = flat[key]
		}
	}
	return tree
}

// insertPath places value at path, creating tables on the way. It reports
// false when a value already occupies a table position or vice versa.
func insertPath(tree map[string]any, path []string, value any) bool {
	node := tree
	for _, part := range path[:len(path)-1] {
		child, exists := node[part]
		if !exists {
			next := make(map[string]any)
			node[part] = next
			node = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return false
		}
		node = next
	}
	leaf := path[len(path)-1]
	if _, isTable := node[leaf].(map[string]any); isTable {
		return false
	}
	node[leaf] = value
	return true
}
