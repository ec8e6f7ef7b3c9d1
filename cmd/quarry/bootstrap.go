package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/quarry/internal/adapters/driven/ai"
	"github.com/custodia-labs/quarry/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quarry/internal/adapters/driven/parser"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/relational"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/workspace"
	"github.com/custodia-labs/quarry/internal/adapters/driven/tabular"
	"github.com/custodia-labs/quarry/internal/adapters/driving/cli"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/services"
	"github.com/custodia-labs/quarry/internal/logger"
)

// bootstrap wires the adapters and services for one command run.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if opts.Workspace != "" {
		settings.Workspace.Root = opts.Workspace
	}
	root, err := filepath.Abs(settings.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	settings.Workspace.Root = root
	ws := settings.Workspace
	logger.Debug("Workspace: %s", ws.Root)

	artifacts := workspace.NewArtifactStore(ws)
	if err := artifacts.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}

	store, err := sqlite.NewStore(ws.IndexDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	relationalStore := relational.NewStore()
	registryStore := workspace.NewRegistryStore(ws.RegistryPath())

	promptDir := ""
	if opts.ConfigDir != "" {
		promptDir = filepath.Join(opts.ConfigDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir, services.DefaultPrompts)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open prompts: %w", err)
	}

	var docParser driven.DocumentParser
	if p, err := parser.New(settings.Parser); err != nil {
		logger.Warn("Document parser unavailable: %v", err)
	} else {
		docParser = p
	}

	aiResult := ai.Init(ctx, settings, ai.Options{Validate: opts.CheckAI})
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}

	ingest := services.NewDocumentIngestService(
		docParser,
		artifacts,
		services.NewChunkIDAssigner(store.TagLedger(), services.RandomTag),
		ws,
		settings.Parser.ChunkingOptions(),
		settings.Parser.MaxWorkers,
	)
	ingest.OnItem(logItem)

	tabularService := services.NewTabularService(tabular.NewReader(), relationalStore, artifacts, ws)
	tabularService.OnItem(logItem)

	chunks := store.ChunkStore()
	index := services.NewIndexService(artifacts, chunks, aiResult.EmbeddingService)
	search := services.NewSearchService(chunks, chunks, store.VectorIndex(), aiResult.EmbeddingService, settings.Search.Mode)
	query := services.NewQueryService(registryStore, relationalStore, ws, settings.Agent.MaxSQLRows)

	registry := services.NewRegistryService(registryStore, relationalStore, ws)
	registry.SetPromptStore(prompts)

	svc := &cli.Services{
		Ingest:    ingest,
		Tabular:   tabularService,
		Index:     index,
		Registry:  registry,
		Search:    search,
		Query:     query,
		Settings:  settingsService,
		Workspace: ws,
		Close: func() error {
			aiResult.Close()
			return store.Close()
		},
	}

	// Agent stays nil without a chat model so commands can say so.
	if aiResult.ChatModel != nil {
		agent := services.NewAgentService(aiResult.ChatModel, search, query, registry, settings.Agent, settings.Search.Limit)
		agent.SetPromptStore(prompts)
		svc.Agent = agent
	} else if !settings.LLM.IsConfigured() {
		logger.Debug("%v: no API key", domain.ErrLLMUnavailable)
	}

	return svc, nil
}

func logItem(it domain.ItemResult) {
	if it.OK() {
		logger.Debug("Finished %s in %s", it.Item, it.Duration)
		return
	}
	if errors.Is(it.Err, domain.ErrRateLimited) {
		logger.Warn("%s: rate limited: %v", it.Item, it.Err)
		return
	}
	logger.Debug("Failed %s: %v", it.Item, it.Err)
}
