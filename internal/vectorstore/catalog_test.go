package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "recipes_baai_bge-small-en-v1_5", CollectionName("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, "recipes_default", CollectionName(""))
}

func TestContentKey(t *testing.T) {
	assert.Equal(t, ContentKey("abc"), ContentKey("abc"))
	assert.NotEqual(t, ContentKey("abc"), ContentKey("abd"))
	assert.Len(t, ContentKey("abc"), 64)
}

func TestCatalog_PutGet(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cat, err := OpenCatalog(CatalogConfig{Path: dir, Model: "test-model"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())

	_, ok := cat.Get(ctx, "Use parameterized queries.")
	assert.False(t, ok)

	stored, err := cat.Put(ctx, "Use parameterized queries.", "CWE-89", []float32{0.6, 0.8})
	require.NoError(t, err)
	assert.True(t, stored)

	v, ok := cat.Get(ctx, "Use parameterized queries.")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)

	// Reopen to check persistence.
	reopened, err := OpenCatalog(CatalogConfig{Path: dir, Model: "test-model"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
	_, ok = reopened.Get(ctx, "Use parameterized queries.")
	assert.True(t, ok)
}

func TestCatalog_SkipsNonNormalized(t *testing.T) {
	cat, err := OpenCatalog(CatalogConfig{Path: t.TempDir(), Model: "m"}, nil)
	require.NoError(t, err)

	stored, err := cat.Put(context.Background(), "text", "CWE-79", []float32{3, 4})
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 0, cat.Len())
}

func TestOpenCatalog_RequiresPath(t *testing.T) {
	_, err := OpenCatalog(CatalogConfig{}, nil)
	assert.Error(t, err)
}
