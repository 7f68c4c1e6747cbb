// Package retrieval selects the security guidance injected into a
// remediation prompt.
package retrieval

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/embeddings"
	"github.com/fyrsmithlabs/fixd/internal/recipes"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
	"github.com/fyrsmithlabs/fixd/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/fixd/internal/retrieval"

// Fallback reasons, reported in logs and span attributes.
const (
	reasonDisabled    = "rag_disabled"
	reasonEmptyCorpus = "empty_corpus"
	reasonNoIndex     = "no_index"
	reasonEmbedding   = "embedding_unavailable"
	reasonIndexError  = "index_error"
	reasonNoMatch     = "no_match"
	reasonTooFar      = "beyond_max_distance"
)

// Corpus is the read side of the recipe store.
type Corpus interface {
	Len() int
	ByCategory(tag string) (*recipes.Recipe, bool)
	Get(id int) (*recipes.Recipe, bool)
}

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes retrieval.
type Config struct {
	// Enabled turns retrieval off globally when false.
	Enabled bool
	// MaxDistance rejects vector matches farther than this squared
	// distance. Zero keeps the nearest match regardless of distance.
	MaxDistance float32
}

// Retriever implements the retrieval policy:
//
//  1. Fall back when the request opts out, the corpus is empty, or no
//     vector can be produced.
//  2. Return the recipe whose category equals the request CWE, without
//     embedding.
//  3. Otherwise return the single nearest recipe to CWE + "\n" + code.
type Retriever struct {
	corpus   Corpus
	index    vectorstore.Index
	embedder Embedder
	config   Config
	logger   *zap.Logger

	tracer   trace.Tracer
	requests metric.Int64Counter
}

// New creates a Retriever. index and embedder may be nil, in which case
// only exact category matches are returned.
func New(corpus Corpus, index vectorstore.Index, embedder Embedder, cfg Config, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{
		corpus:   corpus,
		index:    index,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}

	var err error
	r.requests, err = otel.Meter(instrumentationName).Int64Counter(
		"fixd.retrieval.requests_total",
		metric.WithDescription("Retrievals by guidance source (exact, vector, fallback)"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create retrieval counter", zap.Error(err))
	}
	return r
}

// Retrieve selects guidance for req. It never fails: every problem
// degrades to the fallback template.
func (r *Retriever) Retrieve(ctx context.Context, req remediation.Request) remediation.RetrievalResult {
	ctx, span := r.tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	res, reason := r.retrieve(ctx, req)

	span.SetAttributes(
		attribute.String("source", string(res.Source)),
		attribute.Bool("used_fallback", res.UsedFallback),
	)
	if reason != "" {
		span.SetAttributes(attribute.String("fallback_reason", reason))
	}
	if r.requests != nil {
		r.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(res.Source))))
	}

	fields := []zap.Field{
		zap.String("cwe", req.CWE()),
		zap.String("source", string(res.Source)),
	}
	if res.Recipe != nil {
		fields = append(fields, zap.String("recipe", res.Recipe.Source), zap.Float32("score", res.Score))
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	r.logger.Debug("guidance retrieved", fields...)
	return res
}

func (r *Retriever) retrieve(ctx context.Context, req remediation.Request) (remediation.RetrievalResult, string) {
	if !r.config.Enabled || !req.UseRAG() {
		return fallback(req), reasonDisabled
	}
	if r.corpus == nil || r.corpus.Len() == 0 {
		return fallback(req), reasonEmptyCorpus
	}

	if recipe, ok := r.corpus.ByCategory(req.CWE()); ok {
		return remediation.RetrievalResult{
			Recipe:   recipe,
			Guidance: recipe.Text,
			Source:   remediation.SourceExact,
		}, ""
	}

	if r.index == nil || r.index.Len() == 0 || r.embedder == nil {
		return fallback(req), reasonNoIndex
	}

	query, err := r.embedder.Embed(ctx, req.CWE()+"\n"+req.Code())
	if err != nil {
		if !errors.Is(err, embeddings.ErrEmbeddingUnavailable) {
			r.logger.Warn("unexpected embedder error", zap.Error(err))
		}
		return fallback(req), reasonEmbedding
	}

	hits, err := r.index.Nearest(query, 1)
	if err != nil {
		r.logger.Warn("recipe index query failed", zap.Error(err))
		return fallback(req), reasonIndexError
	}
	if len(hits) == 0 {
		return fallback(req), reasonNoMatch
	}
	hit := hits[0]
	if r.config.MaxDistance > 0 && hit.Distance > r.config.MaxDistance {
		return fallback(req), reasonTooFar
	}

	recipe, ok := r.corpus.Get(hit.ID)
	if !ok {
		return fallback(req), reasonNoMatch
	}
	return remediation.RetrievalResult{
		Recipe:   recipe,
		Score:    hit.Distance,
		Guidance: recipe.Text,
		Source:   remediation.SourceVector,
	}, ""
}

func fallback(req remediation.Request) remediation.RetrievalResult {
	return remediation.RetrievalResult{
		UsedFallback: true,
		Guidance:     FallbackGuidance(req.CWE()),
		Source:       remediation.SourceFallback,
	}
}
