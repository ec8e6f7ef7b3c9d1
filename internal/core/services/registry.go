package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure RegistryService implements the interface.
var _ driving.RegistryService = (*RegistryService)(nil)

// RegistryService manages the registry and checks it against live stores.
type RegistryService struct {
	store      driven.RegistryStore
	relational driven.RelationalStore
	workspace  domain.WorkspaceSettings
	prompts    driven.PromptStore
}

// NewRegistryService creates a new registry service.
func NewRegistryService(
	store driven.RegistryStore,
	relational driven.RelationalStore,
	workspace domain.WorkspaceSettings,
) *RegistryService {
	return &RegistryService{store: store, relational: relational, workspace: workspace}
}

// SetPromptStore sets the prompt store used by RenderPrompt.
func (s *RegistryService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// List returns every registry entry.
func (s *RegistryService) List(ctx context.Context) ([]domain.DatabaseEntry, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	return reg.Databases, nil
}

// Get returns the entry for a database name.
func (s *RegistryService) Get(ctx context.Context, name string) (*domain.DatabaseEntry, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	entry, ok := reg.Entry(name)
	if !ok {
		return nil, fmt.Errorf("database %q: %w", name, domain.ErrNotFound)
	}
	return &entry, nil
}

// Add validates and appends an entry.
func (s *RegistryService) Add(
	ctx context.Context, entry domain.DatabaseEntry, force bool,
) (*domain.DatabaseEntry, []domain.RegistryIssue, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load registry: %w", err)
	}
	if _, exists := reg.Entry(entry.DatabaseName); exists {
		return nil, nil, fmt.Errorf("database %q: %w", entry.DatabaseName, domain.ErrAlreadyExists)
	}
	if entry.DatabaseID == "" {
		entry.DatabaseID = reg.NextDatabaseID()
	}

	candidate := domain.Registry{Databases: append(append([]domain.DatabaseEntry{}, reg.Databases...), entry)}
	var issues []domain.RegistryIssue
	for _, issue := range candidate.Check() {
		if issue.Database == entry.DatabaseName {
			issues = append(issues, issue)
		}
	}
	issues = append(issues, s.checkLive(ctx, entry)...)

	if domain.HasErrors(issues) && !force {
		return nil, issues, fmt.Errorf("%w: %d issue(s) for %s", domain.ErrSchemaMismatch, countErrors(issues), entry.DatabaseName)
	}

	if err := s.store.Save(ctx, &candidate); err != nil {
		return nil, issues, fmt.Errorf("save registry: %w", err)
	}
	logger.Info("Registered %s as %s", entry.DatabaseName, entry.DatabaseID)
	return &entry, issues, nil
}

// Remove deletes the entry for a database name.
func (s *RegistryService) Remove(ctx context.Context, name string) error {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	kept := reg.Databases[:0]
	found := false
	for _, e := range reg.Databases {
		if e.DatabaseName == name {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("database %q: %w", name, domain.ErrNotFound)
	}
	reg.Databases = kept
	return s.store.Save(ctx, reg)
}

// Validate checks every entry structurally and against its live store.
func (s *RegistryService) Validate(ctx context.Context) ([]domain.RegistryIssue, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	issues := reg.Check()
	for _, e := range reg.Databases {
		issues = append(issues, s.checkLive(ctx, e)...)
	}
	return issues, nil
}

// checkLive compares an entry with the relations in its store. Missing
// tables and columns, and incompatible column types, are errors; live
// columns the schema does not mention are warnings.
func (s *RegistryService) checkLive(ctx context.Context, e domain.DatabaseEntry) []domain.RegistryIssue {
	var issues []domain.RegistryIssue
	add := func(sev domain.IssueSeverity, table, column, format string, args ...any) {
		issues = append(issues, domain.RegistryIssue{
			Severity: sev, Database: e.DatabaseName, Table: table, Column: column,
			Message: fmt.Sprintf(format, args...),
		})
	}

	path := s.storePath(e.DatabaseName)
	if _, err := os.Stat(path); err != nil {
		add(domain.SeverityError, "", "", "store %s not found", path)
		return issues
	}
	live, err := s.relational.Describe(ctx, path)
	if err != nil {
		add(domain.SeverityError, "", "", "describe store: %v", err)
		return issues
	}

	for _, t := range e.Tables {
		info, ok := findRelation(live, t.TableName)
		if !ok {
			add(domain.SeverityError, t.TableName, "", "table does not exist in %s", filepath.Base(path))
			continue
		}
		for _, c := range t.Schema.Columns {
			col, ok := info.Column(c.Name)
			if !ok {
				add(domain.SeverityError, t.TableName, c.Name, "column does not exist")
				continue
			}
			if !domain.Compatible(c.Type, col.Type) {
				add(domain.SeverityError, t.TableName, c.Name, "declared %s but stored as %s", c.Type, col.Type)
			}
		}
		for _, col := range info.Columns {
			if _, ok := t.Schema.Column(col.Name); !ok {
				add(domain.SeverityWarning, t.TableName, col.Name, "column is not described")
			}
		}
	}
	return issues
}

// Scaffold drafts a registry entry from a published store. Descriptions
// are left for the author.
func (s *RegistryService) Scaffold(ctx context.Context, sourceFile string) (*domain.DatabaseEntry, error) {
	base := filepath.Base(sourceFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	format := domain.FormatForFile(base)
	if format == domain.SourceFormatUnknown {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, base)
	}

	path := s.storePath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store for %s: %w", base, domain.ErrNotFound)
	}
	live, err := s.relational.Describe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("describe store: %w", err)
	}

	reg, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	entry := &domain.DatabaseEntry{
		DatabaseID:   reg.NextDatabaseID(),
		DatabaseName: name,
		SourceFile:   base,
	}
	if existing, ok := reg.Entry(name); ok {
		entry.DatabaseID = existing.DatabaseID
	}

	for _, rel := range live {
		if format == domain.SourceFormatFlat && rel.Name != domain.FlatTableName {
			continue
		}
		t := domain.TableDescriptor{TableName: rel.Name}
		if format == domain.SourceFormatWorkbook {
			t.SheetName = rel.Name
		}
		for _, c := range rel.Columns {
			t.Schema.Columns = append(t.Schema.Columns, domain.ColumnSchema{Name: c.Name, Type: c.Type})
		}
		entry.Tables = append(entry.Tables, t)
	}
	return entry, nil
}

// RenderPrompt renders every entry as markdown for the agent.
func (s *RegistryService) RenderPrompt(ctx context.Context) (string, error) {
	reg, err := s.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load registry: %w", err)
	}
	text := loadPrompt(s.prompts, driven.PromptTableSchema)

	parts := make([]string, 0, len(reg.Databases))
	for _, e := range reg.Databases {
		out, err := renderPrompt(driven.PromptTableSchema, text, struct{ Entry domain.DatabaseEntry }{e})
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(out))
	}
	return strings.Join(parts, "\n\n"), nil
}

func (s *RegistryService) storePath(name string) string {
	return filepath.Join(s.workspace.DatabasesDir(), name+".db")
}

func findRelation(live []domain.RelationInfo, name string) (domain.RelationInfo, bool) {
	for _, r := range live {
		if r.Name == name {
			return r, true
		}
	}
	for _, r := range live {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return domain.RelationInfo{}, false
}

func countErrors(issues []domain.RegistryIssue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == domain.SeverityError {
			n++
		}
	}
	return n
}
