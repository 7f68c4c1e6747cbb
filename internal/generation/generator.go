package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const instrumentationName = "github.com/fyrsmithlabs/fixd/internal/generation"

// Default generation parameters.
const (
	DefaultMaxNewTokens   = 512
	DefaultTemperature    = 0.2
	DefaultTopP           = 0.95
	DefaultMaxInputTokens = 2048
)

// Params are the sampling options for one call.
type Params struct {
	// MaxNewTokens caps the generated length.
	MaxNewTokens int
	// Temperature controls sampling randomness; 0 is deterministic.
	Temperature float64
	TopP        float64
}

// DefaultParams returns the default sampling options.
func DefaultParams() Params {
	return Params{
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
	}
}

// Output is the result of one generation.
type Output struct {
	// RawText is the model response as returned.
	RawText string
	// DecodedText is RawText with surrounding whitespace removed.
	DecodedText string
	// InputTokens and OutputTokens come from the backend when it reports
	// usage, otherwise from the Tokenizer.
	InputTokens  int
	OutputTokens int
	// UsageReported is true when the counts are the backend's own.
	UsageReported bool
	// EstimatedInputTokens and EstimatedOutputTokens are always the
	// Tokenizer's counts, for callers that must not mix schemes.
	EstimatedInputTokens  int
	EstimatedOutputTokens int
	// WallClockMS covers the model call only.
	WallClockMS int64
}

// Completion is one backend response. Token counts are zero when the
// backend does not report usage.
type Completion struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// hasUsage reports whether both counts were supplied. Ollama omits the
// prompt count when the prompt was cached, so a partial report is ignored.
func (c Completion) hasUsage() bool {
	return c.PromptTokens > 0 && c.OutputTokens > 0
}

// Model is a text generation backend.
type Model interface {
	Call(ctx context.Context, prompt string, params Params) (Completion, error)
}

// Tokenizer counts tokens where the backend reports no usage, and
// truncates prompts.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRateLimit caps calls per second. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(g *Generator) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMaxInputTokens sets the prompt truncation limit. n <= 0 disables truncation.
func WithMaxInputTokens(n int) Option {
	return func(g *Generator) {
		g.maxInputTokens = n
	}
}

// WithModelName sets the name reported by ModelName.
func WithModelName(id string) Option {
	return func(g *Generator) {
		g.modelName = ModelName(id)
	}
}

// Generator serializes calls to a Model and accounts tokens.
type Generator struct {
	model          Model
	tokenizer      Tokenizer
	modelName      string
	maxInputTokens int
	limiter        *rate.Limiter
	slot           *semaphore.Weighted
	logger         *zap.Logger
	tracer         trace.Tracer
	metrics        *metrics

	mu     sync.RWMutex
	closed bool
}

// New creates a Generator.
func New(model Model, tokenizer Tokenizer, opts ...Option) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	if tokenizer == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", ErrInvalidConfig)
	}

	g := &Generator{
		model:          model,
		tokenizer:      tokenizer,
		modelName:      "unknown",
		maxInputTokens: DefaultMaxInputTokens,
		slot:           semaphore.NewWeighted(1),
		logger:         zap.NewNop(),
		tracer:         otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.metrics = newMetrics(g.logger)
	return g, nil
}

// Generate runs one model call. Waiting for the generation slot honours ctx;
// the call itself is not bounded by the Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, params Params) (*Output, error) {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return nil, &GenerationFailedError{Model: g.modelName, Err: ErrClosed}
	}

	ctx, span := g.tracer.Start(ctx, "generation.Generate")
	defer span.End()

	if g.maxInputTokens > 0 {
		prompt = g.tokenizer.Truncate(prompt, g.maxInputTokens)
	}
	inputTokens := g.tokenizer.Count(prompt)
	span.SetAttributes(
		attribute.String("model", g.modelName),
		attribute.Int("estimated_input_tokens", inputTokens),
		attribute.Int("max_new_tokens", params.MaxNewTokens),
	)

	if err := g.slot.Acquire(ctx, 1); err != nil {
		return nil, g.fail(span, err)
	}
	defer g.slot.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, g.fail(span, fmt.Errorf("rate limiter: %w", err))
		}
	}

	start := time.Now()
	completion, err := g.model.Call(ctx, prompt, params)
	elapsed := time.Since(start)
	g.metrics.recordCall(ctx, g.modelName, elapsed, err)
	if err != nil {
		g.logger.Warn("model call failed",
			zap.String("model", g.modelName),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, g.fail(span, err)
	}

	out := &Output{
		RawText:              completion.Text,
		DecodedText:          strings.TrimSpace(completion.Text),
		EstimatedInputTokens: inputTokens,
		WallClockMS:          elapsed.Milliseconds(),
	}
	out.EstimatedOutputTokens = g.tokenizer.Count(out.DecodedText)
	if completion.hasUsage() {
		out.InputTokens = completion.PromptTokens
		out.OutputTokens = completion.OutputTokens
		out.UsageReported = true
	} else {
		out.InputTokens = out.EstimatedInputTokens
		out.OutputTokens = out.EstimatedOutputTokens
	}
	g.metrics.recordTokens(ctx, g.modelName, out.InputTokens, out.OutputTokens)

	span.SetAttributes(
		attribute.Int("output_tokens", out.OutputTokens),
		attribute.Bool("usage_reported", out.UsageReported),
	)
	span.SetStatus(codes.Ok, "")

	g.logger.Debug("generation complete",
		zap.String("model", g.modelName),
		zap.Int("input_tokens", out.InputTokens),
		zap.Int("output_tokens", out.OutputTokens),
		zap.Bool("usage_reported", out.UsageReported),
		zap.Int64("wall_clock_ms", out.WallClockMS),
	)
	return out, nil
}

func (g *Generator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &GenerationFailedError{Model: g.modelName, Err: err}
}

// ModelName returns the reported model name.
func (g *Generator) ModelName() string {
	return g.modelName
}

// Close marks the generator closed and releases the model if it holds
// resources. It waits for the in-flight call without a bound.
func (g *Generator) Close() error {
	return g.Shutdown(context.Background())
}

// Shutdown is Close bounded by ctx. When ctx expires before the in-flight
// call returns, the model is released anyway and ctx's error is returned.
func (g *Generator) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	var errs []error
	if err := g.slot.Acquire(ctx, 1); err == nil {
		defer g.slot.Release(1)
	} else {
		g.logger.Warn("model call still running at shutdown", zap.String("model", g.modelName))
		errs = append(errs, fmt.Errorf("waiting for model call: %w", err))
	}
	if c, ok := g.model.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ModelName returns the last path segment of a model id, so
// "Qwen/Qwen2.5-Coder-1.5B-Instruct" is reported as
// "Qwen2.5-Coder-1.5B-Instruct".
func ModelName(id string) string {
	id = strings.TrimRight(strings.TrimSpace(id), "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	if id == "" {
		return "unknown"
	}
	return id
}
