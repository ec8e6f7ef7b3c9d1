package file

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

var _ driven.PromptStore = (*PromptStore)(nil)

const promptExt = ".tmpl"

const promptReadme = `
## Editing

Templates use Go text/template syntax. agent_system receives the rendered
database catalogue as {{.Databases}}; table_schema receives one registry
entry as {{.Entry}}. Changes are picked up on the next question. Delete a
file to restore its default on the next run.
`

// PromptStore serves prompt templates from one .tmpl file per name. The
// directory is seeded with the defaults the first time a prompt is loaded,
// and a template whose file is missing or unreadable falls back to its
// default.
type PromptStore struct {
	dir      string
	defaults map[string]string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]cachedPrompt
}

// cachedPrompt is valid while the file's size and mtime are unchanged.
type cachedPrompt struct {
	text    string
	size    int64
	modTime time.Time
}

// NewPromptStore uses dir, or ~/.quarry/prompts when dir is empty. Nothing
// touches the disk until the first Load.
func NewPromptStore(dir string, defaults map[string]string) (*PromptStore, error) {
	if dir == "" {
		base, err := DefaultConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(base, "prompts")
	}
	return &PromptStore{
		dir:      dir,
		defaults: defaults,
		cache:    make(map[string]cachedPrompt),
	}, nil
}

func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the named template with surrounding whitespace trimmed.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(func() { s.seedErr = s.seed() })
	fallback, hasDefault := s.defaults[name]
	if s.seedErr != nil {
		if hasDefault {
			return fallback, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.seedErr)
	}

	text, err := s.read(name)
	if err != nil {
		if hasDefault {
			return fallback, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	return text, nil
}

func (s *PromptStore) read(name string) (string, error) {
	path := filepath.Join(s.dir, name+promptExt)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache[name]; ok && c.size == info.Size() && c.modTime.Equal(info.ModTime()) {
		return c.text, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	s.cache[name] = cachedPrompt{text: text, size: info.Size(), modTime: info.ModTime()}
	return text, nil
}

// Reload drops every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

// seed writes each default that has no file yet, plus a README.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	for name, content := range s.defaults {
		if err := writeIfMissing(filepath.Join(s.dir, name+promptExt), content); err != nil {
			return fmt.Errorf("create default prompt %q: %w", name, err)
		}
	}

	var b strings.Builder
	b.WriteString("# Quarry Prompts\n\nThese templates shape what the agent is told.\n\n## Files\n\n")
	for _, name := range slices.Sorted(maps.Keys(s.defaults)) {
		fmt.Fprintf(&b, "- `%s%s`\n", name, promptExt)
	}
	b.WriteString(promptReadme)
	return writeIfMissing(filepath.Join(s.dir, "README.md"), b.String())
}

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if os.IsExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
