package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure RegistryStore implements the interface.
var _ driven.RegistryStore = (*RegistryStore)(nil)

// RegistryStore persists the registry as JSON, or as YAML when the file
// name ends in .yaml or .yml.
type RegistryStore struct {
	path string
}

// NewRegistryStore creates a registry store backed by path.
func NewRegistryStore(path string) *RegistryStore {
	return &RegistryStore{path: path}
}

// Path returns the registry file path.
func (s *RegistryStore) Path() string {
	return s.path
}

func (s *RegistryStore) isYAML() bool {
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load reads the registry. A missing file is an empty registry.
func (s *RegistryStore) Load(_ context.Context) (*domain.Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &domain.Registry{Databases: []domain.DatabaseEntry{}}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	reg := &domain.Registry{}
	if len(strings.TrimSpace(string(data))) > 0 {
		if s.isYAML() {
			err = yaml.Unmarshal(data, reg)
		} else {
			err = json.Unmarshal(data, reg)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse registry %s: %v", domain.ErrInvalidInput, s.path, err)
		}
	}
	if reg.Databases == nil {
		reg.Databases = []domain.DatabaseEntry{}
	}
	return reg, nil
}

// Save writes the registry atomically.
func (s *RegistryStore) Save(_ context.Context, reg *domain.Registry) error {
	if reg == nil {
		return fmt.Errorf("%w: nil registry", domain.ErrInvalidInput)
	}
	out := *reg
	if out.Databases == nil {
		out.Databases = []domain.DatabaseEntry{}
	}

	var (
		data []byte
		err  error
	)
	if s.isYAML() {
		data, err = yaml.Marshal(&out)
	} else {
		data, err = json.MarshalIndent(&out, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
