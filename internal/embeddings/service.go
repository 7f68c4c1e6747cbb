package embeddings

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of query vectors kept in memory.
const DefaultCacheSize = 1024

// Service wraps a Provider with a query cache. It is the embedder used by
// retrieval and corpus indexing.
//
// Any failure, including use after Close, is reported as
// ErrEmbeddingUnavailable so that callers can fall back without inspecting
// provider-specific errors.
type Service struct {
	provider Provider
	model    string
	cache    *lru.Cache[string, []float32]
	metrics  *Metrics
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithModelName sets the model label used in metrics.
func WithModelName(model string) ServiceOption {
	return func(s *Service) {
		s.model = model
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a caching embedder over provider. cacheSize <= 0 uses
// DefaultCacheSize.
func NewService(provider Provider, cacheSize int, opts ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: provider required", ErrInvalidConfig)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	s := &Service{
		provider: provider,
		model:    "unknown",
		cache:    cache,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = NewMetrics(s.logger)
	return s, nil
}

// Embed returns the vector for text. Repeated calls with the same text
// return equal vectors; the caller owns the returned slice.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: service closed", ErrEmbeddingUnavailable)
	}

	if v, ok := s.cache.Get(text); ok {
		s.metrics.RecordCache(ctx, true)
		return copyVector(v), nil
	}
	s.metrics.RecordCache(ctx, false)

	start := time.Now()
	v, err := s.provider.EmbedQuery(ctx, text)
	s.metrics.RecordGeneration(ctx, s.model, "query", time.Since(start), 1, err)
	if err != nil {
		s.logger.Debug("embedding query failed", zap.String("model", s.model), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: provider returned empty vector", ErrEmbeddingUnavailable)
	}

	s.cache.Add(text, copyVector(v))
	return v, nil
}

// EmbedBatch embeds corpus passages. Results are not cached.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: service closed", ErrEmbeddingUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	s.metrics.RecordGeneration(ctx, s.model, "documents", time.Since(start), len(texts), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// Dimension returns the provider's vector dimension.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// Ready reports whether the service can still embed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close releases the provider. Calling Close twice is a no-op.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()
	return s.provider.Close()
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
