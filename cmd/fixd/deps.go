package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/config"
	"github.com/fyrsmithlabs/fixd/internal/embeddings"
	"github.com/fyrsmithlabs/fixd/internal/generation"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/metrics"
	"github.com/fyrsmithlabs/fixd/internal/prompt"
	"github.com/fyrsmithlabs/fixd/internal/recipes"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
	"github.com/fyrsmithlabs/fixd/internal/retrieval"
	"github.com/fyrsmithlabs/fixd/internal/secrets"
	"github.com/fyrsmithlabs/fixd/internal/vectorstore"
)

// dependencies holds everything the daemon owns. It is built once and
// shared read-only by every request.
type dependencies struct {
	embedder  *embeddings.Service
	store     *recipes.Store
	generator *generation.Generator
	recorder  *metrics.Recorder
	service   *remediation.Service
}

// Close releases the pipeline, then the request log.
func (d *dependencies) Close() error {
	return d.Shutdown(context.Background())
}

// Shutdown is Close with the pipeline's waits bounded by ctx. The request
// log is closed regardless, so rows already written are flushed.
func (d *dependencies) Shutdown(ctx context.Context) error {
	var errs []error
	if d.service != nil {
		errs = append(errs, d.service.Shutdown(ctx))
	}
	if d.recorder != nil {
		errs = append(errs, d.recorder.Close())
	}
	return errors.Join(errs...)
}

// initDependencies builds the remediation pipeline:
//  1. Embedding provider behind the cached embeddings.Service
//  2. Recipe corpus, embedded into the flat index (reusing the catalog)
//  3. Generation backend, tokenizer and Generator
//  4. Request log recorder and credential scanner
//  5. Retriever, prompt builder and the remediation.Service
//
// Failures to construct a backend are wrapped in remediation.ErrStartup.
// A corpus that cannot be embedded only disables vector retrieval.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *dependencies, err error) {
	zl := logger.Underlying()
	deps := &dependencies{}
	var closers []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		if deps.recorder != nil {
			_ = deps.recorder.Close()
		}
	}()

	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey.Value(),
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding provider: %w", remediation.ErrStartup, err)
	}
	deps.embedder, err = embeddings.NewService(provider, cfg.Embeddings.CacheSize,
		embeddings.WithModelName(cfg.Embeddings.Model),
		embeddings.WithLogger(zl.Named("embeddings")),
	)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("%w: embedding service: %w", remediation.ErrStartup, err)
	}
	closers = append(closers, deps.embedder)

	deps.store, err = recipes.Load(ctx, cfg.Corpus.Dir, recipes.WithLogger(zl.Named("recipes")))
	if err != nil {
		return nil, fmt.Errorf("%w: recipe corpus: %w", remediation.ErrStartup, err)
	}
	for _, w := range deps.store.Warnings() {
		logger.Warn(ctx, "recipe skipped", zap.String("path", w.Path), zap.Error(w.Err))
	}
	if deps.store.Len() > 0 {
		if err := embedCorpus(ctx, cfg, deps, zl); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn(ctx, "recipe embedding failed, vector retrieval disabled", zap.Error(err))
		}
	}

	model, err := newModel(cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("%w: generation backend: %w", remediation.ErrStartup, err)
	}
	tokenizer, err := generation.NewTiktokenTokenizer(cfg.Generation.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer: %w", remediation.ErrStartup, err)
	}
	deps.generator, err = generation.New(model, tokenizer,
		generation.WithModelName(cfg.Generation.Model),
		generation.WithMaxInputTokens(cfg.Generation.MaxInputTokens),
		generation.WithRateLimit(cfg.Generation.RateLimit),
		generation.WithLogger(zl.Named("generation")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generator: %w", remediation.ErrStartup, err)
	}
	closers = append(closers, deps.generator)

	deps.recorder, err = metrics.NewRecorder(cfg.Metrics.LogPath, metrics.WithLogger(zl.Named("metrics")))
	if err != nil {
		return nil, fmt.Errorf("%w: metrics log: %w", remediation.ErrStartup, err)
	}

	scanner, err := secrets.New(secrets.Config{
		Enabled:   cfg.Secrets.Enabled,
		Redaction: cfg.Secrets.RedactionString,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: credential scanner: %w", remediation.ErrStartup, err)
	}

	var index vectorstore.Index
	if idx := deps.store.Index(); idx != nil {
		index = idx
	}
	retriever := retrieval.New(deps.store, index, deps.embedder, retrieval.Config{
		Enabled:     cfg.Retrieval.Enabled,
		MaxDistance: float32(cfg.Retrieval.MaxDistance),
	}, zl.Named("retrieval"))

	params := generation.Params{
		MaxNewTokens: cfg.Generation.MaxNewTokens,
		Temperature:  cfg.Generation.Temperature,
		TopP:         cfg.Generation.TopP,
	}
	deps.service, err = remediation.NewService(remediation.Dependencies{
		Retriever: retriever,
		Prompter:  prompt.NewBuilder(),
		Generator: deps.generator,
		Recorder:  deps.recorder,
		Scanner:   scanner,
		Logger:    logger.Named("remediation"),
		Params:    &params,
		Closers:   []io.Closer{deps.generator, deps.embedder},
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "pipeline ready",
		zap.Int("recipes", deps.store.Len()),
		zap.Bool("vector_index", index != nil),
		zap.String("model", deps.generator.ModelName()),
		zap.String("metrics_log", deps.recorder.Path()),
	)
	return deps, nil
}

// embedCorpus embeds the recipes, reusing vectors from the persisted
// catalog when one is configured.
func embedCorpus(ctx context.Context, cfg *config.Config, deps *dependencies, logger *zap.Logger) error {
	var catalog recipes.Catalog
	if cfg.Corpus.CatalogPath != "" {
		c, err := vectorstore.OpenCatalog(vectorstore.CatalogConfig{
			Path:     cfg.Corpus.CatalogPath,
			Model:    cfg.Embeddings.Model,
			Compress: true,
		}, logger.Named("catalog"))
		if err != nil {
			logger.Warn("embedding catalog unavailable", zap.Error(err))
		} else {
			catalog = c
		}
	}
	return deps.store.Embed(ctx, deps.embedder, catalog)
}

// newModel creates the configured generation backend.
func newModel(cfg config.GenerationConfig) (generation.Model, error) {
	switch cfg.Provider {
	case "openai":
		return generation.NewOpenAIModel(generation.OpenAIConfig{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey.Value(),
		})
	case "langchain", "":
		return generation.NewLangchainModel(generation.LangchainConfig{
			Backend: cfg.Backend,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey.Value(),
		})
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
