package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)
	svc.SetEnvLookup(envFrom(env))
	return svc, store
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	svc, _ := newTestSettings(nil)

	settings, err := svc.Get()
	require.NoError(t, err)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Workspace, settings.Workspace)
	assert.Equal(t, domain.ParserBackendLocal, settings.Parser.Backend, "no API key falls back to local parsing")
	assert.Equal(t, domain.ChunkModeVariable, settings.Parser.ChunkMode)
	assert.Equal(t, 3200, settings.Parser.ChunkSize)
	assert.Equal(t, 5, settings.Parser.MaxWorkers)
	assert.True(t, settings.Parser.TableSummary)
	assert.Equal(t, "gpt-5-nano", settings.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, 512, settings.Embedding.Dimensions)
	assert.Equal(t, domain.SearchModeHybrid, settings.Search.Mode)
	assert.Equal(t, 5, settings.Search.Limit)
	assert.Equal(t, 8, settings.Agent.MaxSteps)
	assert.False(t, settings.LLM.IsConfigured())
}

func TestSettingsService_Get_EnvironmentKeys(t *testing.T) {
	svc, _ := newTestSettings(map[string]string{
		EnvReductoAPIKey: "r-key",
		EnvOpenAIAPIKey:  "o-key",
	})

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.ParserBackendReducto, settings.Parser.Backend)
	assert.Equal(t, "r-key", settings.Parser.APIKey)
	assert.Equal(t, "o-key", settings.LLM.APIKey)
	assert.Equal(t, "o-key", settings.Embedding.APIKey)
	assert.True(t, settings.LLM.IsConfigured())
	assert.True(t, settings.Embedding.IsConfigured())
}

func TestSettingsService_Get_StoredValuesWin(t *testing.T) {
	svc, store := newTestSettings(map[string]string{EnvOpenAIAPIKey: "env-key"})
	_ = store.Set("llm.api_key", "config-key")
	_ = store.Set("parser.backend", "local")
	_ = store.Set("parser.chunk_mode", "fixed")
	_ = store.Set("parser.table_summary", false)
	_ = store.Set("search.mode", "text_only")
	_ = store.Set("workspace.root", "/data/ws")

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, "config-key", settings.LLM.APIKey)
	assert.Equal(t, "env-key", settings.Embedding.APIKey)
	assert.Equal(t, domain.ParserBackendLocal, settings.Parser.Backend)
	assert.Equal(t, domain.ChunkModeFixed, settings.Parser.ChunkMode)
	assert.False(t, settings.Parser.TableSummary)
	assert.Equal(t, domain.SearchModeTextOnly, settings.Search.Mode)
	assert.Equal(t, "/data/ws", settings.Workspace.Root)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	svc, store := newTestSettings(nil)
	_ = store.Set("search.mode", "full")
	_ = store.Set("parser.chunk_mode", "page")

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.SearchModeHybrid, settings.Search.Mode)
	assert.Equal(t, domain.ChunkModeVariable, settings.Parser.ChunkMode)
}

func TestSettingsService_Set(t *testing.T) {
	t.Run("parses typed values", func(t *testing.T) {
		svc, store := newTestSettings(nil)

		require.NoError(t, svc.Set("parser.max_workers", "8"))
		require.NoError(t, svc.Set("parser.rate_per_second", "0.5"))
		require.NoError(t, svc.Set("parser.figure_summary", "false"))
		require.NoError(t, svc.Set("search.mode", "text_only"))

		assert.Equal(t, 8, store.GetInt("parser.max_workers"))
		assert.Equal(t, 0.5, store.GetFloat("parser.rate_per_second"))
		assert.False(t, store.GetBool("parser.figure_summary"))
		assert.Equal(t, "text_only", store.GetString("search.mode"))
	})

	t.Run("rejects bad input", func(t *testing.T) {
		svc, _ := newTestSettings(nil)

		assert.ErrorIs(t, svc.Set("nope", "1"), domain.ErrInvalidInput)
		assert.ErrorIs(t, svc.Set("parser.max_workers", "-1"), domain.ErrInvalidInput)
		assert.ErrorIs(t, svc.Set("parser.table_summary", "maybe"), domain.ErrInvalidInput)
		assert.ErrorIs(t, svc.Set("parser.backend", "cloud"), domain.ErrInvalidInput)
		assert.ErrorIs(t, svc.Set("search.mode", "full"), domain.ErrInvalidInput)
	})
}

func TestSettingsService_Keys_MasksSecrets(t *testing.T) {
	svc, _ := newTestSettings(map[string]string{EnvOpenAIAPIKey: "sk-1234567890abcd"})

	keys := svc.Keys()
	assert.Equal(t, "sk-1*********abcd", keys["llm.api_key"])
	assert.Equal(t, "", keys["parser.api_key"])
	assert.Equal(t, "5", keys["parser.max_workers"])
}
