package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	t.Run("custom dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "quarry")
		store, err := NewConfigStore(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, ConfigFileName), store.Path())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("default dir", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("cannot determine home directory")
		}
		dir, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".quarry"), dir)
	})

	t.Run("unwritable dir", func(t *testing.T) {
		store, err := NewConfigStore("/dev/null/cannot/create")
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("corrupted file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("not toml {{[["), 0600))
		store, err := NewConfigStore(dir)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("parser.base_url", "https://platform.reducto.ai"))
	require.NoError(t, store.Set("parser.chunk_size", int64(3200)))
	require.NoError(t, store.Set("parser.rate_per_second", 2.5))
	require.NoError(t, store.Set("parser.table_summary", true))

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("parser.base_url"), "https://platform.reducto.ai"},
		{"int", store.GetInt("parser.chunk_size"), 3200},
		{"float", store.GetFloat("parser.rate_per_second"), 2.5},
		{"int widened to float", store.GetFloat("parser.chunk_size"), 3200.0},
		{"bool", store.GetBool("parser.table_summary"), true},
		{"missing string", store.GetString("nope"), ""},
		{"missing int", store.GetInt("nope"), 0},
		{"missing float", store.GetFloat("nope"), 0.0},
		{"missing bool", store.GetBool("nope"), false},
		{"wrong type string", store.GetString("parser.chunk_size"), ""},
		{"wrong type int", store.GetInt("parser.base_url"), 0},
		{"wrong type bool", store.GetBool("parser.base_url"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.Equal(t, []string{
		"parser.base_url", "parser.chunk_size", "parser.rate_per_second", "parser.table_summary",
	}, store.Keys())
}

func TestConfigStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("workspace.root", "/data/quarry"))
	require.NoError(t, store.Set("search.limit", int64(7)))
	require.NoError(t, store.Set("llm.model", "gpt-5-nano"))
	require.NoError(t, store.Set("verbose", true))

	t.Run("written as tables", func(t *testing.T) {
		raw, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.Contains(t, string(raw), "[workspace]")
		assert.Contains(t, string(raw), "[search]")
		assert.NotContains(t, string(raw), "'workspace.root'")

		info, err := os.Stat(store.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("reloaded in dot notation", func(t *testing.T) {
		reloaded, err := NewConfigStore(dir)
		require.NoError(t, err)
		assert.Equal(t, "/data/quarry", reloaded.GetString("workspace.root"))
		assert.Equal(t, 7, reloaded.GetInt("search.limit"))
		assert.Equal(t, "gpt-5-nano", reloaded.GetString("llm.model"))
		assert.True(t, reloaded.GetBool("verbose"))
	})

	t.Run("explicit save and load", func(t *testing.T) {
		// the embedded store changes memory only
		require.NoError(t, store.ConfigStore.Set("agent.max_steps", int64(4)))
		require.NoError(t, store.Save())

		other, err := NewConfigStore(dir)
		require.NoError(t, err)
		require.NoError(t, other.Load())
		assert.Equal(t, 4, other.GetInt("agent.max_steps"))
	})
}

func TestConfigStore_Errors(t *testing.T) {
	t.Run("unmarshallable value", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		assert.Error(t, store.Set("channel", make(chan int)))
	})

	t.Run("write failure", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.Set("a", "b"))
		require.NoError(t, os.Remove(store.Path()))
		require.NoError(t, os.Mkdir(store.Path(), 0700))
		assert.Error(t, store.Set("c", "d"))
	})

	t.Run("invalid toml on load", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(store.Path(), []byte("] invalid ["), 0600))
		assert.Error(t, store.Load())
	})

	t.Run("comment-only file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("# nothing\n"), 0600))
		store, err := NewConfigStore(dir)
		require.NoError(t, err)
		assert.Empty(t, store.Keys())
	})
}

func TestConfigStore_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("search.mode", "hybrid"))
	require.NoError(t, store.Set("search.limit", int64(5)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
	assert.Equal(t, ConfigFileName, entries[0].Name())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("search.limit", int64(i))
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("search.limit")
		}()
	}
	wg.Wait()

	_, ok := store.Get("search.limit")
	assert.True(t, ok)
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"parser.chunk_size": int64(1),
		"parser.api_key":    "k",
		"verbose":           true,
	})
	assert.Equal(t, map[string]any{
		"parser":  map[string]any{"chunk_size": int64(1), "api_key": "k"},
		"verbose": true,
	}, nested)

	t.Run("value and table clash", func(t *testing.T) {
		nested := nestMap(map[string]any{"a": "x", "a.b": "y"})
		assert.Equal(t, map[string]any{"a": "x", "a.b": "y"}, nested)
	})

	t.Run("round trip", func(t *testing.T) {
		flat := map[string]any{"llm.model": "m", "embedding.dimensions": int64(512)}
		assert.Equal(t, flat, flattenMap(nestMap(flat), ""))
	})
}
