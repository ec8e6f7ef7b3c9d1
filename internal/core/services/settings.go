package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyWorkspaceRoot  = "workspace.root"
	keyParserBackend  = "parser.backend"
	keyParserBaseURL  = "parser.base_url"
	keyParserAPIKey   = "parser.api_key"
	keyChunkMode      = "parser.chunk_mode"
	keyChunkSize      = "parser.chunk_size"
	keyMaxWorkers     = "parser.max_workers"
	keyRatePerSecond  = "parser.rate_per_second"
	keyTableSummary   = "parser.table_summary"
	keyFigureSummary  = "parser.figure_summary"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyEmbedModel     = "embedding.model"
	keyEmbedDims      = "embedding.dimensions"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keySearchMode     = "search.mode"
	keySearchLimit    = "search.limit"
	keyAgentMaxSteps  = "agent.max_steps"
	keyAgentMaxSQLRow = "agent.max_sql_rows"
)

// Environment variables that supply API keys when the config has none.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvReductoAPIKey = "REDUCTO_API_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
)

// secretKeys are masked by Keys.
var secretKeys = map[string]bool{
	keyParserAPIKey: true,
	keyLLMAPIKey:    true,
	keyEmbedAPIKey:  true,
}

// SettingsService resolves application settings from the config store,
// the environment and built-in defaults, in that order.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup. Used by tests.
func (s *SettingsService) SetEnvLookup(fn func(string) (string, bool)) {
	s.lookupEnv = fn
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	openAIKey := s.env(EnvOpenAIAPIKey)
	settings := &domain.AppSettings{
		Workspace: domain.WorkspaceSettings{
			Root: s.getString(keyWorkspaceRoot, defaults.Workspace.Root),
		},
		Parser: domain.ParserSettings{
			BaseURL:       s.getString(keyParserBaseURL, defaults.Parser.BaseURL),
			APIKey:        s.getString(keyParserAPIKey, s.env(EnvReductoAPIKey)),
			ChunkMode:     s.getChunkMode(defaults.Parser.ChunkMode),
			ChunkSize:     s.getInt(keyChunkSize, defaults.Parser.ChunkSize),
			MaxWorkers:    s.getInt(keyMaxWorkers, defaults.Parser.MaxWorkers),
			RatePerSecond: s.getFloat(keyRatePerSecond, defaults.Parser.RatePerSecond),
			TableSummary:  s.getBool(keyTableSummary, defaults.Parser.TableSummary),
			FigureSummary: s.getBool(keyFigureSummary, defaults.Parser.FigureSummary),
		},
		LLM: domain.LLMSettings{
			Model:   s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL: s.configStore.GetString(keyLLMBaseURL), // No default - empty means the public API
			APIKey:  s.getString(keyLLMAPIKey, openAIKey),
		},
		Embedding: domain.EmbeddingSettings{
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			Dimensions: s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.getString(keyEmbedAPIKey, openAIKey),
		},
		Search: domain.SearchSettings{
			Mode:  s.getSearchMode(defaults.Search.Mode),
			Limit: s.getInt(keySearchLimit, defaults.Search.Limit),
		},
		Agent: domain.AgentSettings{
			MaxSteps:   s.getInt(keyAgentMaxSteps, defaults.Agent.MaxSteps),
			MaxSQLRows: s.getInt(keyAgentMaxSQLRow, defaults.Agent.MaxSQLRows),
		},
	}

	// Without an explicit backend, use the hosted parser only when it has a key.
	settings.Parser.Backend = domain.ParserBackend(s.configStore.GetString(keyParserBackend))
	if !settings.Parser.Backend.IsValid() {
		settings.Parser.Backend = domain.ParserBackendLocal
		if settings.Parser.APIKey != "" {
			settings.Parser.Backend = defaults.Parser.Backend
		}
	}

	return settings, nil
}

// Set parses value according to the key's type, stores it and saves.
func (s *SettingsService) Set(key, value string) error {
	if _, ok := settingKinds[key]; !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	parsed, err := parseSetting(key, value)
	if err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := s.configStore.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Keys returns every known setting with its effective value.
// API keys are masked.
func (s *SettingsService) Keys() map[string]string {
	settings, _ := s.Get()
	out := map[string]string{
		keyWorkspaceRoot:  settings.Workspace.Root,
		keyParserBackend:  string(settings.Parser.Backend),
		keyParserBaseURL:  settings.Parser.BaseURL,
		keyParserAPIKey:   settings.Parser.APIKey,
		keyChunkMode:      string(settings.Parser.ChunkMode),
		keyChunkSize:      strconv.Itoa(settings.Parser.ChunkSize),
		keyMaxWorkers:     strconv.Itoa(settings.Parser.MaxWorkers),
		keyRatePerSecond:  strconv.FormatFloat(settings.Parser.RatePerSecond, 'g', -1, 64),
		keyTableSummary:   strconv.FormatBool(settings.Parser.TableSummary),
		keyFigureSummary:  strconv.FormatBool(settings.Parser.FigureSummary),
		keyLLMModel:       settings.LLM.Model,
		keyLLMBaseURL:     settings.LLM.BaseURL,
		keyLLMAPIKey:      settings.LLM.APIKey,
		keyEmbedModel:     settings.Embedding.Model,
		keyEmbedDims:      strconv.Itoa(settings.Embedding.Dimensions),
		keyEmbedBaseURL:   settings.Embedding.BaseURL,
		keyEmbedAPIKey:    settings.Embedding.APIKey,
		keySearchMode:     string(settings.Search.Mode),
		keySearchLimit:    strconv.Itoa(settings.Search.Limit),
		keyAgentMaxSteps:  strconv.Itoa(settings.Agent.MaxSteps),
		keyAgentMaxSQLRow: strconv.Itoa(settings.Agent.MaxSQLRows),
	}
	for k := range secretKeys {
		out[k] = maskSecret(out[k])
	}
	return out
}

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindBool
)

var settingKinds = map[string]settingKind{
	keyWorkspaceRoot:  kindString,
	keyParserBackend:  kindString,
	keyParserBaseURL:  kindString,
	keyParserAPIKey:   kindString,
	keyChunkMode:      kindString,
	keyChunkSize:      kindInt,
	keyMaxWorkers:     kindInt,
	keyRatePerSecond:  kindFloat,
	keyTableSummary:   kindBool,
	keyFigureSummary:  kindBool,
	keyLLMModel:       kindString,
	keyLLMBaseURL:     kindString,
	keyLLMAPIKey:      kindString,
	keyEmbedModel:     kindString,
	keyEmbedDims:      kindInt,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keySearchMode:     kindString,
	keySearchLimit:    kindInt,
	keyAgentMaxSteps:  kindInt,
	keyAgentMaxSQLRow: kindInt,
}

func parseSetting(key, value string) (any, error) {
	switch settingKinds[key] {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidInput, key)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive number", domain.ErrInvalidInput, key)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		return b, nil
	}

	switch key {
	case keyParserBackend:
		if !domain.ParserBackend(value).IsValid() {
			return nil, fmt.Errorf("%w: parser backend %q", domain.ErrInvalidInput, value)
		}
	case keyChunkMode:
		if !domain.ChunkMode(value).IsValid() {
			return nil, fmt.Errorf("%w: chunk mode %q", domain.ErrInvalidInput, value)
		}
	case keySearchMode:
		if !domain.SearchMode(value).IsValid() {
			return nil, fmt.Errorf("%w: search mode %q", domain.ErrInvalidInput, value)
		}
	}
	return value, nil
}

func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}

func (s *SettingsService) env(name string) string {
	if s.lookupEnv == nil {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return v
}

// getString returns the config value or the default if empty.
func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

// getInt returns the config value or the default if zero.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if val := s.configStore.GetInt(key); val > 0 {
		return val
	}
	return defaultVal
}

// getFloat returns the config value or the default if zero.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if val := s.configStore.GetFloat(key); val > 0 {
		return val
	}
	return defaultVal
}

// getBool returns the config value or the default if the key is absent.
func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getChunkMode(defaultVal domain.ChunkMode) domain.ChunkMode {
	mode := domain.ChunkMode(s.configStore.GetString(keyChunkMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getSearchMode(defaultVal domain.SearchMode) domain.SearchMode {
	mode := domain.SearchMode(s.configStore.GetString(keySearchMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}
