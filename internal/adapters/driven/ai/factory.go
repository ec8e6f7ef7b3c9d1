// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openaiembed "github.com/custodia-labs/quarry/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/quarry/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	ChatModel        driven.ChatModel
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if hybrid search fell back to text-only.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.ChatModel != nil {
		_ = r.ChatModel.Close()
	}
}

// Options controls initialisation.
type Options struct {
	// Validate pings each configured service before using it.
	Validate bool
}

// Init creates the chat model and embedding service the settings ask for.
// A service that cannot be created is left nil with a warning; search
// falls back to text-only when embeddings were wanted but are missing.
func Init(ctx context.Context, settings *domain.AppSettings, opts Options) *InitResult {
	result := &InitResult{}

	embedding, err := createEmbedding(ctx, &settings.Embedding, opts.Validate)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case embedding != nil:
		result.EmbeddingService = embedding
	}
	if result.EmbeddingService == nil && settings.Search.Mode.RequiresEmbedding() {
		result.FellBack = true
		logger.Debug("No embedding service, search falls back to text only")
	}

	model, err := createChatModel(ctx, &settings.LLM, opts.Validate)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
	case model != nil:
		result.ChatModel = model
	}

	return result
}

func createEmbedding(ctx context.Context, settings *domain.EmbeddingSettings, validate bool) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return nil, err
	}
	if validate {
		if err := ping(ctx, svc.Ping); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("%w: service unreachable (%w). Check embedding.api_key with 'quarry config show'",
				domain.ErrEmbeddingUnavailable, err)
		}
	}
	return svc, nil
}

func createChatModel(ctx context.Context, settings *domain.LLMSettings, validate bool) (driven.ChatModel, error) {
	model, err := CreateChatModel(settings)
	if err != nil || model == nil {
		return nil, err
	}
	if validate {
		if err := ping(ctx, model.Ping); err != nil {
			_ = model.Close()
			return nil, fmt.Errorf("%w: service unreachable (%w). Check llm.api_key with 'quarry config show'",
				domain.ErrLLMUnavailable, err)
		}
	}
	return model, nil
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// CreateEmbeddingService creates the embedding service the settings describe.
// Returns nil if embeddings are not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateChatModel creates the chat model the settings describe.
// Returns nil if the LLM is not configured.
func CreateChatModel(settings *domain.LLMSettings) (driven.ChatModel, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	model, err := openaillm.NewChatModel(openaillm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	return model, nil
}

// IsUnavailable reports whether err means an AI service is not set up.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrLLMUnavailable) || errors.Is(err, domain.ErrEmbeddingUnavailable)
}
