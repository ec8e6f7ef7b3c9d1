package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

func sampleRegistry() *domain.Registry {
	return &domain.Registry{Databases: []domain.DatabaseEntry{
		{
			DatabaseID:   "DB001",
			DatabaseName: "sales",
			SourceFile:   "sales.csv",
			Text:         "Monthly sales by region.",
			Tables: []domain.TableDescriptor{{
				TableName: "data",
				Text:      "One row per region and month.",
				Schema: domain.TableSchema{
					Columns: []domain.ColumnSchema{
						{Name: "region", Type: domain.ColumnTypeText, Description: "Sales region"},
						{Name: "amount", Type: domain.ColumnTypeReal, Description: "Net sales", Unit: "USD"},
					},
					Notes:            []string{"Amounts exclude tax."},
					FilterGuidelines: []string{"Filter region with LIKE."},
					ExampleQueries:   []domain.ExampleQuery{{Title: "Total", SQL: "SELECT SUM(amount) FROM data"}},
				},
			}},
		},
		{
			DatabaseID:   "DB002",
			DatabaseName: "financials",
			SourceFile:   "financials.xlsx",
			Tables: []domain.TableDescriptor{
				{TableName: "Revenue", SheetName: "Revenue", Schema: domain.TableSchema{
					Columns: []domain.ColumnSchema{{Name: "amount", Type: domain.ColumnTypeInteger}},
				}},
				{TableName: "Expenses", SheetName: "Expenses", Schema: domain.TableSchema{
					Columns: []domain.ColumnSchema{{Name: "amount", Type: domain.ColumnTypeInteger}},
				}},
			},
		},
	}}
}

func TestRegistryStore_RoundTrip(t *testing.T) {
	for _, name := range []string{"registry.json", "registry.yaml", "registry.yml"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewRegistryStore(filepath.Join(t.TempDir(), name))
			want := sampleRegistry()

			require.NoError(t, store.Save(ctx, want))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// a second save of the loaded value is byte-identical
			first, err := os.ReadFile(store.Path())
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, got))
			second, err := os.ReadFile(store.Path())
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))
		})
	}
}

func TestRegistryStore_Format(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	jsonStore := NewRegistryStore(filepath.Join(dir, "registry.json"))
	require.NoError(t, jsonStore.Save(ctx, sampleRegistry()))
	data, err := os.ReadFile(jsonStore.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"database_id": "DB001"`)
	assert.NotContains(t, string(data), `"sheet_name": ""`)

	yamlStore := NewRegistryStore(filepath.Join(dir, "registry.yaml"))
	require.NoError(t, yamlStore.Save(ctx, sampleRegistry()))
	data, err = os.ReadFile(yamlStore.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "database_id: DB001")
}

func TestRegistryStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file is empty", func(t *testing.T) {
		reg, err := NewRegistryStore(filepath.Join(t.TempDir(), "registry.json")).Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, reg.Databases)
		assert.Empty(t, reg.Databases)
	})

	t.Run("blank file is empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.json")
		require.NoError(t, os.WriteFile(path, []byte("\n"), 0644))
		reg, err := NewRegistryStore(path).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, reg.Databases)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"databases": [`), 0644))
		_, err := NewRegistryStore(path).Load(ctx)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestRegistryStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("nil registry", func(t *testing.T) {
		err := NewRegistryStore(filepath.Join(t.TempDir(), "registry.json")).Save(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("empty registry writes empty list", func(t *testing.T) {
		store := NewRegistryStore(filepath.Join(t.TempDir(), "nested", "registry.json"))
		require.NoError(t, store.Save(ctx, &domain.Registry{}))
		data, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.JSONEq(t, `{"databases": []}`, string(data))
	})
}
