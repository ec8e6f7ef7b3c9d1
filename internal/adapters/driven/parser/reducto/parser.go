package reducto

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure Parser implements the interface.
var _ driven.DocumentParser = (*Parser)(nil)

const (
	// DefaultMaxAttempts bounds retries of 429 and 5xx responses.
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the first retry delay; it doubles per attempt.
	DefaultRetryBackoff = 2 * time.Second

	// DefaultTimeout bounds a single HTTP request. Parse jobs on long
	// documents take minutes.
	DefaultTimeout = 10 * time.Minute

	resultTypeURL = "url"
)

// Config holds parser client settings.
type Config struct {
	BaseURL       string
	APIKey        string
	RatePerSecond float64
	MaxAttempts   int
	RetryBackoff  time.Duration
	HTTPClient    *http.Client
}

// Parser uploads documents to the parsing API and maps its chunks to
// segments.
type Parser struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	limiter      *RateLimiter
	maxAttempts  int
	retryBackoff time.Duration
}

// NewParser creates a new API-backed parser.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: parsing API key not set", domain.ErrParserUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = domain.DefaultParserBaseURL
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Parser{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		httpClient:   cfg.HTTPClient,
		limiter:      NewRateLimiter(cfg.RatePerSecond),
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
	}, nil
}

// Name returns the parser name.
func (p *Parser) Name() string {
	return "reducto"
}

// SupportedExtensions returns the document types the API accepts here.
func (p *Parser) SupportedExtensions() []string {
	return []string{".pdf", ".docx"}
}

// API payloads.
type (
	uploadResponse struct {
		FileID string `json:"file_id"`
	}

	parseRequest struct {
		DocumentURL     string          `json:"document_url"`
		Options         parseOptions    `json:"options"`
		AdvancedOptions advancedOptions `json:"advanced_options"`
	}

	parseOptions struct {
		Chunking      chunkingOptions `json:"chunking"`
		TableSummary  toggle          `json:"table_summary"`
		FigureSummary toggle          `json:"figure_summary"`
	}

	chunkingOptions struct {
		ChunkMode string `json:"chunk_mode"`
		ChunkSize int    `json:"chunk_size"`
	}

	toggle struct {
		Enabled bool `json:"enabled"`
	}

	advancedOptions struct {
		ContinueHierarchy bool `json:"continue_hierarchy"`
	}

	parseResponse struct {
		JobID  string      `json:"job_id"`
		Usage  usage       `json:"usage"`
		Result parseResult `json:"result"`
	}

	usage struct {
		NumPages int `json:"num_pages"`
	}

	parseResult struct {
		Type   string        `json:"type"`
		URL    string        `json:"url,omitempty"`
		Chunks []resultChunk `json:"chunks"`
	}

	resultChunk struct {
		Content string        `json:"content"`
		Blocks  []resultBlock `json:"blocks"`
	}

	resultBlock struct {
		BBox *struct {
			OriginalPage *int `json:"original_page"`
		} `json:"bbox"`
	}
)

// Parse uploads the file, runs a parse job and returns its segments.
// Raw holds the parse response with any URL result inlined.
func (p *Parser) Parse(ctx context.Context, path string, opts domain.ChunkingOptions) (*domain.ParsedDocument, error) {
	name := filepath.Base(path)

	fileID, err := p.upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	logger.Debug("[%s] Uploaded as %s", name, fileID)

	body, err := p.runParse(ctx, fileID, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var resp parseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode parse response: %v", domain.ErrUpstream, err)
	}

	if resp.Result.Type == resultTypeURL {
		logger.Debug("[%s] Fetching result from %s", name, resp.Result.URL)
		resultBody, err := p.fetchResult(ctx, resp.Result.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch result for %s: %w", name, err)
		}
		var full parseResult
		if err := json.Unmarshal(resultBody, &full); err != nil {
			return nil, fmt.Errorf("%w: decode result: %v", domain.ErrUpstream, err)
		}
		resp.Result.Chunks = full.Chunks
		if body, err = inlineResult(body, resultBody); err != nil {
			return nil, err
		}
	}

	doc := &domain.ParsedDocument{
		FileName: name,
		NumPages: resp.Usage.NumPages,
		Raw:      body,
		Segments: make([]domain.Segment, len(resp.Result.Chunks)),
	}
	for i, c := range resp.Result.Chunks {
		doc.Segments[i] = domain.Segment{Content: c.Content, Pages: c.pages()}
	}
	logger.Debug("[%s] Job %s: %d chunks, %d pages", name, resp.JobID, len(doc.Segments), doc.NumPages)
	return doc, nil
}

// pages collects original_page from every block that has one.
func (c resultChunk) pages() []int {
	var pages []int
	for _, b := range c.Blocks {
		if b.BBox != nil && b.BBox.OriginalPage != nil {
			pages = append(pages, *b.BBox.OriginalPage)
		}
	}
	return pages
}

// inlineResult replaces result in the raw response with the fetched one.
func inlineResult(body, result []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode parse response: %v", domain.ErrUpstream, err)
	}
	raw["result"] = result
	return json.Marshal(raw)
}

func (p *Parser) upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	build := func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}

	body, err := p.do(ctx, build)
	if err != nil {
		return "", err
	}
	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode upload response: %v", domain.ErrUpstream, err)
	}
	if resp.FileID == "" {
		return "", fmt.Errorf("%w: upload response has no file_id", domain.ErrUpstream)
	}
	return resp.FileID, nil
}

func (p *Parser) runParse(ctx context.Context, fileID string, opts domain.ChunkingOptions) ([]byte, error) {
	mode := opts.Mode
	if !mode.IsValid() {
		mode = domain.ChunkModeVariable
	}
	size := opts.SizeLimit
	if size <= 0 {
		size = domain.DefaultChunkSize
	}
	payload, err := json.Marshal(parseRequest{
		DocumentURL: fileID,
		Options: parseOptions{
			Chunking:      chunkingOptions{ChunkMode: mode.String(), ChunkSize: size},
			TableSummary:  toggle{Enabled: opts.TableSummary},
			FigureSummary: toggle{Enabled: opts.FigureSummary},
		},
		AdvancedOptions: advancedOptions{ContinueHierarchy: false},
	})
	if err != nil {
		return nil, err
	}

	return p.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// fetchResult downloads a result the API returned by reference. The URL
// is presigned, so no credentials are attached.
func (p *Parser) fetchResult(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: url result without url", domain.ErrUpstream)
	}
	return p.send(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, false)
}

func (p *Parser) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	return p.send(ctx, build, true)
}

// send performs a request with rate limiting and retries on 429, 5xx and
// transport errors.
func (p *Parser) send(ctx context.Context, build func() (*http.Request, error), auth bool) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if auth {
			req.Header.Set("Authorization", "Bearer "+p.apiKey)
		}
		req.Header.Set("Accept", "application/json")

		body, err := p.roundTrip(req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		retryable := !errors.As(err, &apiErr) || apiErr.Retryable()
		if !retryable || attempt == p.maxAttempts || ctx.Err() != nil {
			break
		}

		delay := p.retryBackoff << (attempt - 1)
		if apiErr != nil && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}
		logger.Debug("Request to %s failed (attempt %d/%d), retrying in %s: %v",
			req.URL.Path, attempt, p.maxAttempts, delay, err)
		p.limiter.Backoff(delay)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, lastErr
}

func (p *Parser) roundTrip(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			URL:        req.URL.String(),
		}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, apiErr
	}
	return body, nil
}

// errorMessage pulls a message out of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil {
		switch {
		case e.Message != "":
			return e.Message
		case e.Error != "":
			return e.Error
		case e.Detail != nil:
			return fmt.Sprint(e.Detail)
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
