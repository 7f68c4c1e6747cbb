package embeddings

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider derives a vector from an FNV hash of the text.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	err     error
	closed  bool
	dim     int
	batches int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{dim: 4}
}

func (f *fakeProvider) vector(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32((sum >> (8 * uint(i))) & 0xff)
	}
	return v
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeProvider) Dimension() int { return f.dim }

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	svc, err := NewService(newFakeProvider(), 0, WithModelName("fake"))
	require.NoError(t, err)
	assert.Equal(t, 4, svc.Dimension())
	assert.True(t, svc.Ready())
}

func TestService_EmbedDeterministic(t *testing.T) {
	provider := newFakeProvider()
	svc, err := NewService(provider, 8)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.Embed(ctx, "CWE-89\nSELECT * FROM users")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "CWE-89\nSELECT * FROM users")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "second call should be served from cache")

	// Mutating a returned vector must not affect the cache.
	first[0] = -1
	third, err := svc.Embed(ctx, "CWE-89\nSELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestService_EmbedDifferentInputs(t *testing.T) {
	svc, err := NewService(newFakeProvider(), 8)
	require.NoError(t, err)

	a, err := svc.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	b, err := svc.Embed(context.Background(), "beta")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestService_ProviderErrorIsUnavailable(t *testing.T) {
	provider := newFakeProvider()
	provider.err = errors.New("connection refused")
	svc, err := NewService(provider, 8)
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "connection refused")

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestService_EmbedBatch(t *testing.T) {
	provider := newFakeProvider()
	svc, err := NewService(provider, 8)
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, provider.vector("b"), vectors[1])

	vectors, err = svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestService_Close(t *testing.T) {
	provider := newFakeProvider()
	svc, err := NewService(provider, 8)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())
	assert.True(t, provider.closed)
	assert.False(t, svc.Ready())

	_, err = svc.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}
