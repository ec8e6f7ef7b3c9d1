package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "missing key returns nil", settings: &domain.EmbeddingSettings{Model: "text-embedding-3-small"}, wantNil: true},
		{
			name:     "configured creates service",
			settings: &domain.EmbeddingSettings{APIKey: "k", Model: "text-embedding-3-small", Dimensions: 512},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, 512, svc.Dimensions())
		})
	}
}

func TestCreateChatModel(t *testing.T) {
	model, err := CreateChatModel(&domain.LLMSettings{})
	require.NoError(t, err)
	assert.Nil(t, model)

	model, err = CreateChatModel(&domain.LLMSettings{APIKey: "k", Model: "gpt-5-nano"})
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, "gpt-5-nano", model.ModelName())
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing configured falls back", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		result := Init(ctx, &settings, Options{})
		defer result.Close()

		assert.Nil(t, result.EmbeddingService)
		assert.Nil(t, result.ChatModel)
		assert.True(t, result.FellBack)
		assert.Empty(t, result.Warnings)
	})

	t.Run("text only mode does not fall back", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.Search.Mode = domain.SearchModeTextOnly
		result := Init(ctx, &settings, Options{})
		assert.False(t, result.FellBack)
	})

	t.Run("configured without validation", func(t *testing.T) {
		settings := domain.DefaultAppSettings()
		settings.LLM.APIKey = "k"
		settings.Embedding.APIKey = "k"
		result := Init(ctx, &settings, Options{})
		defer result.Close()

		assert.NotNil(t, result.EmbeddingService)
		assert.NotNil(t, result.ChatModel)
		assert.False(t, result.FellBack)
	})

	t.Run("validation failure warns and falls back", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = fmt.Fprint(w, `{"error": {"message": "bad key"}}`)
		}))
		defer srv.Close()

		settings := domain.DefaultAppSettings()
		settings.LLM.APIKey = "bad"
		settings.LLM.BaseURL = srv.URL
		settings.Embedding.APIKey = "bad"
		settings.Embedding.BaseURL = srv.URL
		result := Init(ctx, &settings, Options{Validate: true})

		assert.Nil(t, result.EmbeddingService)
		assert.Nil(t, result.ChatModel)
		assert.True(t, result.FellBack)
		require.Len(t, result.Warnings, 2)
		assert.Contains(t, result.Warnings[0], "embedding service unavailable")
		assert.Contains(t, result.Warnings[1], "LLM service unavailable")
	})
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("x: %w", domain.ErrLLMUnavailable)))
	assert.True(t, IsUnavailable(domain.ErrEmbeddingUnavailable))
	assert.False(t, IsUnavailable(domain.ErrNotFound))
}
