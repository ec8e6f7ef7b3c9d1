package services

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure TabularService implements the interface.
var _ driving.TabularService = (*TabularService)(nil)

// TabularService converts CSV and workbook files into relational stores.
// Files are converted one at a time.
type TabularService struct {
	reader     driven.TabularReader
	relational driven.RelationalStore
	artifacts  driven.ArtifactStore
	workspace  domain.WorkspaceSettings
	onItem     func(domain.ItemResult)
}

// NewTabularService creates a new tabular conversion service.
func NewTabularService(
	reader driven.TabularReader,
	relational driven.RelationalStore,
	artifacts driven.ArtifactStore,
	workspace domain.WorkspaceSettings,
) *TabularService {
	return &TabularService{
		reader:     reader,
		relational: relational,
		artifacts:  artifacts,
		workspace:  workspace,
	}
}

// OnItem registers a callback invoked as each file finishes.
func (s *TabularService) OnItem(fn func(domain.ItemResult)) {
	s.onItem = fn
}

// StorePath returns the relational store path for a source file.
func StorePath(workspace domain.WorkspaceSettings, sourceFile string) string {
	return filepath.Join(workspace.DatabasesDir(), fileStem(sourceFile)+".db")
}

// ConvertInbox converts every supported file in the data inbox.
func (s *TabularService) ConvertInbox(ctx context.Context) (*domain.BatchReport, error) {
	logger.Section("Tabular Conversion")
	files, err := s.artifacts.ListInbox(ctx, s.workspace.DataInbox(), s.reader.SupportedExtensions())
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	logger.Info("Found %d data file(s)", len(files))

	report := &domain.BatchReport{Operation: "data", RunID: uuid.NewString()}
	clashes := stemClashes(files)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var res domain.ItemResult
		if owner, ok := clashes[path]; ok {
			name := filepath.Base(path)
			logger.Warn("[%s] skipped: same database name as %s", name, owner)
			res = domain.ItemResult{Item: name, Err: errStemTaken(name, owner)}
		} else {
			res = s.ConvertFile(ctx, path)
		}
		report.Items = append(report.Items, res)
		if s.onItem != nil {
			s.onItem(res)
		}
	}

	logger.Info("Data: %s", report.Summary())
	return report, nil
}

// ConvertFile reads one file, publishes its relations and moves it to the
// processed folder. The source stays in the inbox if anything fails. A store
// already built from a different file with the same stem is never touched.
func (s *TabularService) ConvertFile(ctx context.Context, path string) domain.ItemResult {
	started := time.Now()
	name := filepath.Base(path)
	res := domain.ItemResult{Item: name}
	fail := func(err error) domain.ItemResult {
		logger.Warn("[%s] %v", name, err)
		res.Err = err
		res.Duration = time.Since(started)
		return res
	}

	published, err := s.artifacts.FindStem(ctx, s.workspace.DataProcessed(), fileStem(name))
	if err != nil {
		return fail(fmt.Errorf("check existing database: %w", err))
	}
	for _, other := range published {
		if other != name {
			return fail(errStemTaken(name, other))
		}
	}

	wb, err := s.reader.Read(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}

	relations, skipped, err := domain.MapWorkbook(*wb)
	if err != nil {
		return fail(fmt.Errorf("map: %w", err))
	}

	storePath := StorePath(s.workspace, name)
	if err := s.relational.Publish(ctx, storePath, relations); err != nil {
		return fail(fmt.Errorf("publish: %w", err))
	}

	moved, err := s.artifacts.MoveTo(ctx, path, s.workspace.DataProcessed())
	if err != nil {
		return fail(fmt.Errorf("move to processed: %w", err))
	}

	for _, rel := range relations {
		res.Details = append(res.Details,
			fmt.Sprintf("table '%s': %d rows, %d columns", rel.Name, len(rel.Rows), len(rel.Columns)))
	}
	for _, sheet := range skipped {
		res.Details = append(res.Details, fmt.Sprintf("skipped empty sheet '%s'", sheet))
	}
	res.Details = append(res.Details, "database: "+storePath, "moved to: "+moved)
	res.Duration = time.Since(started)
	return res
}
