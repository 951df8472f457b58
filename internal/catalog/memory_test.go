package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s Store, sku, category string) *Product {
	t.Helper()
	p := &Product{SKU: sku, Name: "Widget " + sku, Price: "19.99", Stock: 5, Category: category, Version: 1}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestMemoryStoreCreateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seedProduct(t, s, "A-1", "tools")

	got, err := s.Get(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, "A-1", got.SKU)
	assert.Equal(t, ProductID("A-1"), got.ID)
	assert.Equal(t, "19.99", got.Price)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seedProduct(t, s, "A-1", "")
	err := s.Create(ctx, &Product{SKU: "A-1", Name: "again", Price: "1.00"})
	assert.ErrorIs(t, err, ErrExists)

	// Creating over a soft-deleted product overwrites it.
	_, err = s.Delete(ctx, "A-1")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, &Product{SKU: "A-1", Name: "reborn", Price: "2.00", Version: 1}))
	got, err := s.Get(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, "reborn", got.Name)
}

func TestMemoryStoreUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "A-1", "")

	updated, err := s.Update(ctx, "A-1", map[string]any{"price": "24.99", "stock": 9})
	require.NoError(t, err)
	assert.Equal(t, "24.99", updated.Price)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, int64(2), updated.Version)

	_, err = s.Update(ctx, "missing", map[string]any{"price": "1.00"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDeleteRestore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "A-1", "")

	deleted, err := s.Delete(ctx, "A-1")
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	_, err = s.Get(ctx, "A-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(ctx, "A-1")
	assert.ErrorIs(t, err, ErrNotFound, "double delete reports not found")

	restored, err := s.Restore(ctx, "A-1")
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	_, err = s.Get(ctx, "A-1")
	assert.NoError(t, err)

	_, err = s.Restore(ctx, "A-1")
	assert.ErrorIs(t, err, ErrNotFound, "restore of a live product reports not found")
}

func TestMemoryStoreList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "B-2", "tools")
	seedProduct(t, s, "A-1", "tools")
	seedProduct(t, s, "C-3", "toys")
	_, err := s.Delete(ctx, "B-2")
	require.NoError(t, err)

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A-1", all[0].SKU, "listing is sorted by SKU")
	assert.Equal(t, "C-3", all[1].SKU)

	tools, err := s.List(ctx, Query{Category: "tools", ShowDeleted: true})
	require.NoError(t, err)
	require.Len(t, tools, 2)

	limited, err := s.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestProductIDDeterministic(t *testing.T) {
	assert.Equal(t, ProductID("A-1"), ProductID("A-1"))
	assert.NotEqual(t, ProductID("A-1"), ProductID("A-2"))
	assert.Len(t, ProductID("A-1"), 32)
}
