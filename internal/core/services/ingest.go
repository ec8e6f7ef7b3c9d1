package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure DocumentIngestService implements the interface.
var _ driving.DocumentIngestService = (*DocumentIngestService)(nil)

// DocumentIngestService parses inbox documents into chunk-form files.
type DocumentIngestService struct {
	parser     driven.DocumentParser
	artifacts  driven.ArtifactStore
	assigner   *ChunkIDAssigner
	workspace  domain.WorkspaceSettings
	chunking   domain.ChunkingOptions
	maxWorkers int

	progressMu sync.Mutex
	onItem     func(domain.ItemResult)
}

// NewDocumentIngestService creates a new ingest service.
func NewDocumentIngestService(
	parser driven.DocumentParser,
	artifacts driven.ArtifactStore,
	assigner *ChunkIDAssigner,
	workspace domain.WorkspaceSettings,
	chunking domain.ChunkingOptions,
	maxWorkers int,
) *DocumentIngestService {
	if maxWorkers < 1 {
		maxWorkers = domain.DefaultMaxWorkers
	}
	return &DocumentIngestService{
		parser:     parser,
		artifacts:  artifacts,
		assigner:   assigner,
		workspace:  workspace,
		chunking:   chunking,
		maxWorkers: maxWorkers,
	}
}

// OnItem registers a callback invoked as each document finishes.
// Calls are serialised.
func (s *DocumentIngestService) OnItem(fn func(domain.ItemResult)) {
	s.onItem = fn
}

// ProcessInbox parses every supported document in the docs inbox,
// up to maxWorkers at a time.
func (s *DocumentIngestService) ProcessInbox(ctx context.Context) (*domain.BatchReport, error) {
	if s.parser == nil {
		return nil, domain.ErrParserUnavailable
	}

	logger.Section("Document Ingest")
	files, err := s.artifacts.ListInbox(ctx, s.workspace.DocsInbox(), s.parser.SupportedExtensions())
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	report := &domain.BatchReport{
		Operation: "documents",
		RunID:     uuid.NewString(),
		Items:     make([]domain.ItemResult, len(files)),
	}
	logger.Info("Found %d document(s), parser=%s, workers=%d", len(files), s.parser.Name(), s.maxWorkers)
	if len(files) == 0 {
		return report, nil
	}

	pool, err := ants.NewPool(s.maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	clashes := stemClashes(files)
	var wg sync.WaitGroup
	for i, path := range files {
		if owner, ok := clashes[path]; ok {
			name := filepath.Base(path)
			logger.Warn("[%s] skipped: same output name as %s", name, owner)
			report.Items[i] = domain.ItemResult{Item: name, Err: errStemTaken(name, owner)}
			s.notify(report.Items[i])
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			report.Items[i] = s.process(ctx, path, report.RunID)
			s.notify(report.Items[i])
		})
		if submitErr != nil {
			wg.Done()
			report.Items[i] = domain.ItemResult{Item: filepath.Base(path), Err: fmt.Errorf("schedule: %w", submitErr)}
			s.notify(report.Items[i])
		}
	}
	wg.Wait()

	logger.Info("Documents: %s", report.Summary())
	return report, nil
}

// ProcessFile parses a single document with a fresh run ID.
func (s *DocumentIngestService) ProcessFile(ctx context.Context, path string) domain.ItemResult {
	if s.parser == nil {
		return domain.ItemResult{Item: filepath.Base(path), Err: domain.ErrParserUnavailable}
	}
	if !hasExtension(path, s.parser.SupportedExtensions()) {
		return domain.ItemResult{
			Item: filepath.Base(path),
			Err:  fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(path)),
		}
	}
	return s.process(ctx, path, uuid.NewString())
}

func (s *DocumentIngestService) notify(res domain.ItemResult) {
	if s.onItem == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.onItem(res)
}

// process runs one document through parse, raw form, ID assignment,
// chunk form and the move to the processed folder. Nothing is moved
// unless both forms were written, and nothing is written for a document
// whose stem already names another document's chunk form.
func (s *DocumentIngestService) process(ctx context.Context, path, runID string) domain.ItemResult {
	started := time.Now()
	name := filepath.Base(path)
	stem := fileStem(name)
	res := domain.ItemResult{Item: name}
	fail := func(err error) domain.ItemResult {
		logger.Warn("[%s] %v", name, err)
		res.Err = err
		res.Duration = time.Since(started)
		return res
	}

	owner, err := s.artifacts.ChunkFormOwner(ctx, stem)
	if err != nil {
		return fail(fmt.Errorf("check existing output: %w", err))
	}
	if owner != "" && owner != name {
		return fail(errStemTaken(name, owner))
	}

	logger.Debug("[%s] Parsing with %s", name, s.parser.Name())
	doc, err := s.parser.Parse(ctx, path, s.chunking)
	if err != nil {
		return fail(fmt.Errorf("parse: %w", err))
	}
	if len(doc.Segments) == 0 {
		return fail(fmt.Errorf("%w: parser returned no segments", domain.ErrInvalidInput))
	}
	if len(doc.Segments) > domain.MaxSequence {
		return fail(fmt.Errorf("%w: %s has %d segments, limit is %d",
			domain.ErrSequenceOverflow, name, len(doc.Segments), domain.MaxSequence))
	}

	rawPath, err := s.artifacts.WriteRawForm(ctx, stem, doc.Raw)
	if err != nil {
		return fail(fmt.Errorf("write raw form: %w", err))
	}

	chunks, err := s.assigner.Assign(ctx, name, runID, doc.Segments)
	if err != nil {
		return fail(fmt.Errorf("assign chunk ids: %w", err))
	}

	chunkPath, err := s.artifacts.WriteChunkForm(ctx, stem, chunks)
	if err != nil {
		s.assigner.Release(ctx, chunks[0].Tag())
		return fail(fmt.Errorf("write chunk form: %w", err))
	}

	moved, err := s.artifacts.MoveTo(ctx, path, s.workspace.DocsProcessed())
	if err != nil {
		return fail(fmt.Errorf("move to processed: %w", err))
	}

	res.Details = []string{
		fmt.Sprintf("%d chunks created from %d page(s), tag %s", len(chunks), doc.NumPages, chunks[0].Tag()),
		"raw form: " + rawPath,
		"chunk form: " + chunkPath,
		"moved to: " + moved,
	}
	res.Duration = time.Since(started)
	logger.Debug("[%s] Complete in %s", name, res.Duration)
	return res
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
