package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.DocumentParser = (*Parser)(nil)

// Parser extracts and segments documents on this machine.
type Parser struct {
	runner CommandRunner
}

// NewParser creates a local parser that shells out to pdftotext.
func NewParser() *Parser {
	return &Parser{runner: execRunner{}}
}

// NewParserWithRunner creates a local parser with a custom command runner.
func NewParserWithRunner(runner CommandRunner) *Parser {
	return &Parser{runner: runner}
}

// Name returns the parser name.
func (p *Parser) Name() string {
	return "local"
}

// SupportedExtensions returns the document types this parser reads.
func (p *Parser) SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".html", ".htm"}
}

// rawForm is what the local parser keeps as the raw output.
type rawForm struct {
	Parser     string      `json:"parser"`
	FileName   string      `json:"file_name"`
	NumPages   int         `json:"num_pages"`
	ChunkMode  string      `json:"chunk_mode"`
	ChunkSize  int         `json:"chunk_size"`
	Paragraphs []paragraph `json:"paragraphs"`
}

// Parse extracts the document's paragraphs and segments them.
func (p *Parser) Parse(ctx context.Context, path string, opts domain.ChunkingOptions) (*domain.ParsedDocument, error) {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))

	var (
		paras    []paragraph
		numPages int
		err      error
	)
	switch ext {
	case ".pdf":
		paras, numPages, err = extractPDF(ctx, p.runner, path)
	case ".docx", ".txt", ".md", ".html", ".htm":
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", name, readErr)
		}
		switch ext {
		case ".docx":
			paras, numPages, err = extractDOCX(data)
		case ".html", ".htm":
			paras, numPages = extractHTML(data)
		default:
			paras, numPages = extractPlain(data)
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	if len(paras) == 0 {
		return nil, fmt.Errorf("%w: %s has no extractable text", domain.ErrInvalidInput, name)
	}

	mode := opts.Mode
	if !mode.IsValid() {
		mode = domain.ChunkModeVariable
	}
	limit := opts.SizeLimit
	if limit <= 0 {
		limit = domain.DefaultChunkSize
	}

	var segments []domain.Segment
	if mode == domain.ChunkModeFixed {
		segments = segmentFixed(paras, limit)
	} else {
		segments, err = segmentVariable(paras, limit)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", name, err)
		}
	}
	logger.Debug("[%s] %d paragraphs over %d page(s) -> %d %s segments",
		name, len(paras), numPages, len(segments), mode)

	raw, err := json.Marshal(rawForm{
		Parser:     p.Name(),
		FileName:   name,
		NumPages:   numPages,
		ChunkMode:  mode.String(),
		ChunkSize:  limit,
		Paragraphs: paras,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal raw form: %w", err)
	}

	return &domain.ParsedDocument{
		FileName: name,
		Segments: segments,
		NumPages: numPages,
		Raw:      raw,
	}, nil
}
