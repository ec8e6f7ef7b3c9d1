package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

func parsedDoc(name string, pages ...[]int) *domain.ParsedDocument {
	return &domain.ParsedDocument{
		FileName: name,
		Segments: segmentsOver(pages...),
		NumPages: len(pages),
		Raw:      []byte(`{"result":{}}`),
	}
}

func newTestIngestService(
	parser *mockParser, artifacts *mockArtifactStore, ledger *memory.TagLedger, tags TagSource,
) (*DocumentIngestService, domain.WorkspaceSettings) {
	ws := domain.WorkspaceSettings{Root: "/ws"}
	svc := NewDocumentIngestService(
		parser, artifacts, NewChunkIDAssigner(ledger, tags), ws,
		domain.ChunkingOptions{Mode: domain.ChunkModeVariable, SizeLimit: domain.DefaultChunkSize}, 2,
	)
	return svc, ws
}

func TestDocumentIngestService_ProcessInbox(t *testing.T) {
	ctx := context.Background()
	parser := &mockParser{
		docs: map[string]*domain.ParsedDocument{
			"a.pdf":  parsedDoc("a.pdf", []int{1}, []int{2}),
			"b.docx": parsedDoc("b.docx", []int{1, 2}),
		},
		errs: map[string]error{"broken.pdf": fmt.Errorf("%w: status 500", domain.ErrUpstream)},
	}
	artifacts := newMockArtifactStore()
	ledger := memory.NewTagLedger()
	svc, ws := newTestIngestService(parser, artifacts, ledger, nil)
	artifacts.inbox[ws.DocsInbox()] = []string{"a.pdf", "b.docx", "broken.pdf", "notes.txt"}

	var seen []string
	svc.OnItem(func(r domain.ItemResult) { seen = append(seen, r.Item) })

	report, err := svc.ProcessInbox(ctx)
	require.NoError(t, err)

	assert.Equal(t, "documents", report.Operation)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Items, 3)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, "2 successful, 1 failed", report.Summary())
	assert.ElementsMatch(t, []string{"a.pdf", "b.docx", "broken.pdf"}, seen)

	failed := report.Failures()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken.pdf", failed[0].Item)
	assert.ErrorIs(t, failed[0].Err, domain.ErrUpstream)

	t.Run("failed document stays in the inbox", func(t *testing.T) {
		assert.NotContains(t, artifacts.moved, "broken.pdf")
		assert.Equal(t, filepath.Join(ws.DocsProcessed(), "a.pdf"), artifacts.moved["a.pdf"])
	})

	t.Run("each document gets its own tag", func(t *testing.T) {
		require.Len(t, artifacts.chunkForms, 2)
		tags := make(map[string]bool)
		for _, chunks := range artifacts.chunkForms {
			tags[chunks[0].Tag()] = true
		}
		assert.Len(t, tags, 2)
		n, err := ledger.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("raw forms written per stem", func(t *testing.T) {
		assert.Contains(t, artifacts.rawForms, "a")
		assert.Contains(t, artifacts.rawForms, "b")
	})
}

func TestDocumentIngestService_ProcessFile_Details(t *testing.T) {
	parser := &mockParser{docs: map[string]*domain.ParsedDocument{
		"report.pdf": parsedDoc("report.pdf", []int{1, 2}, []int{3}),
	}}
	artifacts := newMockArtifactStore()
	svc, _ := newTestIngestService(parser, artifacts, memory.NewTagLedger(), sequenceTags("QRS"))

	res := svc.ProcessFile(context.Background(), "/ws/docs/unprocessed/report.pdf")

	require.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, "report.pdf", res.Item)
	assert.Equal(t, "2 chunks created from 2 page(s), tag QRS", res.Details[0])
	assert.Contains(t, res.Details, "chunk form: chunks/c-report.json")

	chunks := artifacts.chunkForms["chunks/c-report.json"]
	require.Len(t, chunks, 2)
	assert.Equal(t, "QRS001", chunks[0].ChunkID)
	assert.Equal(t, "QRS002", chunks[1].ChunkID)
	assert.Equal(t, 3, chunks[1].StartPage)
}

func TestDocumentIngestService_ProcessFile_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported extension", func(t *testing.T) {
		svc, _ := newTestIngestService(&mockParser{}, newMockArtifactStore(), memory.NewTagLedger(), nil)
		res := svc.ProcessFile(ctx, "/tmp/sheet.xlsx")
		assert.ErrorIs(t, res.Err, domain.ErrUnsupportedType)
	})

	t.Run("no parser", func(t *testing.T) {
		svc := NewDocumentIngestService(nil, newMockArtifactStore(), nil, domain.WorkspaceSettings{}, domain.ChunkingOptions{}, 1)
		res := svc.ProcessFile(ctx, "/tmp/a.pdf")
		assert.ErrorIs(t, res.Err, domain.ErrParserUnavailable)
		_, err := svc.ProcessInbox(ctx)
		assert.ErrorIs(t, err, domain.ErrParserUnavailable)
	})

	t.Run("empty document reserves no tag", func(t *testing.T) {
		ledger := memory.NewTagLedger()
		parser := &mockParser{docs: map[string]*domain.ParsedDocument{"empty.pdf": {FileName: "empty.pdf"}}}
		artifacts := newMockArtifactStore()
		svc, _ := newTestIngestService(parser, artifacts, ledger, nil)

		res := svc.ProcessFile(ctx, "/tmp/empty.pdf")

		assert.ErrorIs(t, res.Err, domain.ErrInvalidInput)
		n, _ := ledger.Count(ctx)
		assert.Zero(t, n)
		assert.Empty(t, artifacts.moved)
	})

	t.Run("chunk form failure releases tag", func(t *testing.T) {
		ledger := memory.NewTagLedger()
		parser := &mockParser{docs: map[string]*domain.ParsedDocument{"a.pdf": parsedDoc("a.pdf", []int{1})}}
		artifacts := newMockArtifactStore()
		artifacts.chunkFormErr["a"] = errors.New("disk full")
		svc, _ := newTestIngestService(parser, artifacts, ledger, sequenceTags("AAA"))

		res := svc.ProcessFile(ctx, "/tmp/a.pdf")

		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "disk full")
		n, _ := ledger.Count(ctx)
		assert.Zero(t, n)
		assert.Empty(t, artifacts.moved)
	})

	t.Run("too many segments writes nothing", func(t *testing.T) {
		pages := make([][]int, domain.MaxSequence+1)
		parser := &mockParser{docs: map[string]*domain.ParsedDocument{"big.pdf": parsedDoc("big.pdf", pages...)}}
		artifacts := newMockArtifactStore()
		ledger := memory.NewTagLedger()
		svc, _ := newTestIngestService(parser, artifacts, ledger, nil)

		res := svc.ProcessFile(ctx, "/tmp/big.pdf")

		assert.ErrorIs(t, res.Err, domain.ErrSequenceOverflow)
		assert.Empty(t, artifacts.rawForms)
		assert.Empty(t, artifacts.chunkForms)
		assert.Empty(t, artifacts.moved)
		n, _ := ledger.Count(ctx)
		assert.Zero(t, n)
	})
}

func TestDocumentIngestService_SameStem(t *testing.T) {
	ctx := context.Background()
	docs := map[string]*domain.ParsedDocument{
		"report.pdf":  parsedDoc("report.pdf", []int{1}, []int{2}),
		"report.docx": parsedDoc("report.docx", []int{1}),
	}

	t.Run("second file in a batch fails", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		ledger := memory.NewTagLedger()
		svc, ws := newTestIngestService(&mockParser{docs: docs}, artifacts, ledger, nil)
		artifacts.inbox[ws.DocsInbox()] = []string{"report.pdf", "report.docx"}

		report, err := svc.ProcessInbox(ctx)
		require.NoError(t, err)

		assert.Equal(t, "1 successful, 1 failed", report.Summary())
		failed := report.Failures()
		require.Len(t, failed, 1)
		assert.Equal(t, "report.pdf", failed[0].Item)
		assert.ErrorIs(t, failed[0].Err, domain.ErrAlreadyExists)
		assert.Contains(t, failed[0].Err.Error(), "report.docx")

		require.Len(t, artifacts.chunkForms, 1)
		assert.Equal(t, "report.docx", artifacts.chunkForms["chunks/c-report.json"][0].FileName)
		assert.NotContains(t, artifacts.moved, "report.pdf")
		n, _ := ledger.Count(ctx)
		assert.Equal(t, 1, n)
	})

	t.Run("stem taken by an earlier run", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		artifacts.chunkForms["chunks/c-report.json"] = []domain.Chunk{{ChunkID: "OLD001", FileName: "report.docx"}}
		ledger := memory.NewTagLedger()
		svc, _ := newTestIngestService(&mockParser{docs: docs}, artifacts, ledger, nil)

		res := svc.ProcessFile(ctx, "/ws/docs/unprocessed/report.pdf")

		assert.ErrorIs(t, res.Err, domain.ErrAlreadyExists)
		assert.Empty(t, artifacts.rawForms)
		assert.Equal(t, "OLD001", artifacts.chunkForms["chunks/c-report.json"][0].ChunkID)
		n, _ := ledger.Count(ctx)
		assert.Zero(t, n)
	})

	t.Run("same file can be processed again", func(t *testing.T) {
		artifacts := newMockArtifactStore()
		artifacts.chunkForms["chunks/c-report.json"] = []domain.Chunk{{ChunkID: "OLD001", FileName: "report.pdf"}}
		svc, _ := newTestIngestService(&mockParser{docs: docs}, artifacts, memory.NewTagLedger(), sequenceTags("NEW"))

		res := svc.ProcessFile(ctx, "/ws/docs/unprocessed/report.pdf")

		require.True(t, res.OK(), "%v", res.Err)
		assert.Equal(t, "NEW001", artifacts.chunkForms["chunks/c-report.json"][0].ChunkID)
	})
}

func TestStemClashes(t *testing.T) {
	clashes := stemClashes([]string{"/in/a.docx", "/in/a.pdf", "/in/B.csv", "/in/b.xlsx", "/in/c.pdf"})
	assert.Equal(t, map[string]string{"/in/a.pdf": "a.docx", "/in/b.xlsx": "B.csv"}, clashes)
	assert.Empty(t, stemClashes(nil))
}

func TestHasExtension(t *testing.T) {
	exts := []string{".pdf", ".docx"}
	assert.True(t, hasExtension("a.PDF", exts))
	assert.True(t, hasExtension("dir/b.docx", exts))
	assert.False(t, hasExtension("c.txt", exts))
	assert.False(t, hasExtension("noext", exts))
}
