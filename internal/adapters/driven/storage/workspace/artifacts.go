package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

// ChunkFormPrefix starts every chunk-form file name.
const ChunkFormPrefix = "c-"

// ArtifactStore reads and writes pipeline artifacts under a workspace root.
type ArtifactStore struct {
	workspace domain.WorkspaceSettings
}

// NewArtifactStore creates an artifact store for the workspace.
func NewArtifactStore(workspace domain.WorkspaceSettings) *ArtifactStore {
	return &ArtifactStore{workspace: workspace}
}

// EnsureDirs creates every workspace directory.
func (s *ArtifactStore) EnsureDirs() error {
	for _, dir := range s.workspace.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteRawForm stores the parser's response as results/raw-form/<stem>.json.
// Valid JSON is re-indented; anything else is stored as is.
func (s *ArtifactStore) WriteRawForm(_ context.Context, stem string, raw []byte) (string, error) {
	if stem == "" {
		return "", fmt.Errorf("%w: empty stem", domain.ErrInvalidInput)
	}
	data := raw
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err == nil {
		buf.WriteByte('\n')
		data = buf.Bytes()
	}

	path := filepath.Join(s.workspace.RawFormDir(), stem+".json")
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteChunkForm stores chunks as results/chunk-form/c-<stem>.json.
func (s *ArtifactStore) WriteChunkForm(_ context.Context, stem string, chunks []domain.Chunk) (string, error) {
	if stem == "" {
		return "", fmt.Errorf("%w: empty stem", domain.ErrInvalidInput)
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal chunks: %w", err)
	}

	path := s.ChunkFormPath(stem)
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// ChunkFormPath returns where the chunk form for stem lives.
func (s *ArtifactStore) ChunkFormPath(stem string) string {
	return filepath.Join(s.workspace.ChunkFormDir(), ChunkFormPrefix+stem+".json")
}

// ChunkFormOwner reads the chunk form for stem and returns the file name
// its chunks were cut from. A missing or empty form has no owner.
func (s *ArtifactStore) ChunkFormOwner(_ context.Context, stem string) (string, error) {
	path := s.ChunkFormPath(stem)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
	}
	if len(chunks) == 0 {
		return "", nil
	}
	return chunks[0].FileName, nil
}

// ReadChunkForms loads every chunk-form file, keyed by path.
// A missing directory yields no forms.
func (s *ArtifactStore) ReadChunkForms(ctx context.Context) (map[string][]domain.Chunk, error) {
	dir := s.workspace.ChunkFormDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string][]domain.Chunk{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	forms := make(map[string][]domain.Chunk)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ChunkFormPrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var chunks []domain.Chunk
		if err := json.Unmarshal(data, &chunks); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, path, err)
		}
		forms[path] = chunks
	}
	return forms, nil
}

// ListInbox returns the files in dir with one of exts, sorted by name.
// Hidden files and subdirectories are ignored; a missing dir is empty.
func (s *ArtifactStore) ListInbox(_ context.Context, dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if allowed[strings.ToLower(filepath.Ext(name))] {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// FindStem lists the files in dir named stem plus any extension.
func (s *ArtifactStore) FindStem(_ context.Context, dir, stem string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(name, filepath.Ext(name)), stem) {
			names = append(names, name)
		}
	}
	return names, nil
}

// MoveTo moves path into dir, replacing any file of the same name, and
// returns the new path.
func (s *ArtifactStore) MoveTo(_ context.Context, path, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	dest := filepath.Join(dir, filepath.Base(path))

	err := os.Rename(path, dest)
	if err == nil {
		return dest, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("move %s: %w", path, err)
	}

	// different filesystem
	if err := copyFile(path, dest); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove %s: %w", path, err)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return writeFileAtomic(dst, data)
}
