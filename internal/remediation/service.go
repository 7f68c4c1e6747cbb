package remediation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/fixd/internal/cwe"
	"github.com/fyrsmithlabs/fixd/internal/diff"
	"github.com/fyrsmithlabs/fixd/internal/generation"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/metrics"
	"github.com/fyrsmithlabs/fixd/internal/secrets"
)

const instrumentationName = "github.com/fyrsmithlabs/fixd/internal/remediation"

// noFixNotice is returned as the explanation when the model produced none.
const noFixNotice = "The model could not generate a fix. Please review %s guidelines manually."

const (
	hardcodedCredentials = "CWE-798"
	maxLoggedCode        = 2048
)

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Retriever Retriever
	Prompter  Prompter
	Generator Generator
	Recorder  Recorder

	// Scanner redacts credentials from logged code. Optional.
	Scanner *secrets.Scanner
	// Logger defaults to a nop logger.
	Logger *logging.Logger
	// Params defaults to generation.DefaultParams.
	Params *generation.Params
	// Closers are released in order by Close. A closer that also has
	// Shutdown(ctx) is shut down with the caller's context instead.
	Closers []io.Closer
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Service runs remediation requests. It is safe for concurrent use;
// generation itself is serialized by the Generator.
type Service struct {
	retriever Retriever
	prompter  Prompter
	generator Generator
	recorder  Recorder
	scanner   *secrets.Scanner
	logger    *logging.Logger
	params    generation.Params
	closers   []io.Closer

	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewService assembles a Service. Missing required collaborators yield
// ErrStartup.
func NewService(deps Dependencies) (*Service, error) {
	var missing []string
	if deps.Retriever == nil {
		missing = append(missing, "retriever")
	}
	if deps.Prompter == nil {
		missing = append(missing, "prompter")
	}
	if deps.Generator == nil {
		missing = append(missing, "generator")
	}
	if deps.Recorder == nil {
		missing = append(missing, "recorder")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrStartup, strings.Join(missing, ", "))
	}

	s := &Service{
		retriever: deps.Retriever,
		prompter:  deps.Prompter,
		generator: deps.Generator,
		recorder:  deps.Recorder,
		scanner:   deps.Scanner,
		logger:    deps.Logger,
		params:    generation.DefaultParams(),
		closers:   deps.Closers,
		tracer:    otel.Tracer(instrumentationName),
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if deps.Params != nil {
		s.params = *deps.Params
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error

	s.requests, err = meter.Int64Counter(
		"fixd.remediation.requests_total",
		metric.WithDescription("Remediation requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create requests counter", zap.Error(err))
	}

	s.duration, err = meter.Float64Histogram(
		"fixd.remediation.duration_seconds",
		metric.WithDescription("End-to-end remediation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}
}

// ModelName reports the model used for generation.
func (s *Service) ModelName() string {
	return s.generator.ModelName()
}

// Remediate runs the pipeline for req. Invalid requests fail at
// StageValidate without touching the model. A generation failure is
// recorded once in the metrics log and returned as a *PipelineError
// wrapping generation.ErrGenerationFailed; no partial result is returned.
func (s *Service) Remediate(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	if !req.valid() {
		return nil, &PipelineError{Stage: StageValidate, Err: ErrInvalidRequest}
	}

	start := time.Now()
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.WithRequestID(ctx, uuid.NewString())
	}
	ctx = logging.WithRemediation(ctx, req.CWE(), req.Language())

	ctx, span := s.tracer.Start(ctx, "remediation.Remediate", trace.WithAttributes(
		attribute.String("cwe", req.CWE()),
		attribute.String("language", req.Language()),
		attribute.Bool("use_rag", req.UseRAG()),
	))
	defer span.End()

	if s.logger.Enabled(zapcore.DebugLevel) {
		s.logger.Debug(ctx, "remediation started", zap.String("code", s.loggable(req.Code())))
	}

	retrieved := s.retriever.Retrieve(ctx, req)
	span.SetAttributes(attribute.String("retrieval.source", string(retrieved.Source)))

	rec := metrics.Record{
		Language:  req.Language(),
		CWE:       req.CWE(),
		ModelUsed: s.generator.ModelName(),
		UsedRAG:   !retrieved.UsedFallback,
	}

	fixOut, err := s.generator.Generate(ctx, s.prompter.BuildRemediation(req, retrieved), s.params)
	if err != nil {
		return nil, s.fail(ctx, span, start, rec, StageGenerate, err)
	}
	usage := TokenUsage{InputTokens: fixOut.InputTokens, OutputTokens: fixOut.OutputTokens}

	fixed := s.prompter.ExtractFix(fixOut.RawText, req.Language())
	changed := isChanged(req.Code(), fixed)
	if !changed {
		fixed = req.Code()
		s.logger.Info(ctx, "model returned no change")
	}
	unified := diff.Unified(req.Code(), fixed)
	if changed {
		s.checkCredentials(ctx, req, fixed)
	}

	explOut, err := s.generator.Generate(ctx, s.prompter.BuildExplanation(req, fixed, changed), s.params)
	if err != nil {
		rec.InputTokens, rec.OutputTokens = usage.InputTokens, usage.OutputTokens
		return nil, s.fail(ctx, span, start, rec, StageExplain, err)
	}
	usage = requestUsage(fixOut, explOut)

	explanation := explOut.DecodedText
	if explanation == "" {
		explanation = fmt.Sprintf(noFixNotice, req.CWE())
	}

	latency := time.Since(start)
	rec.InputTokens, rec.OutputTokens = usage.InputTokens, usage.OutputTokens
	rec.LatencyMS = latency.Milliseconds()
	s.record(ctx, rec)
	s.observe(ctx, latency, "ok", "")

	added, removed := diff.ChangedLines(unified)
	span.SetAttributes(
		attribute.Bool("changed", changed),
		attribute.Int("diff.added", added),
		attribute.Int("diff.removed", removed),
		attribute.Int("tokens.input", usage.InputTokens),
		attribute.Int("tokens.output", usage.OutputTokens),
	)
	s.logger.Info(ctx, "remediation completed",
		zap.String("source", string(retrieved.Source)),
		zap.Bool("changed", changed),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Int64("latency_ms", rec.LatencyMS),
	)

	return &Result{
		FixedCode:   fixed,
		Diff:        unified,
		Explanation: explanation,
		ModelUsed:   rec.ModelUsed,
		TokenUsage:  usage,
		LatencyMS:   rec.LatencyMS,
	}, nil
}

// requestUsage sums both calls. When only one call carries backend usage
// the tokenizer counts are used for both, so a request never mixes schemes.
func requestUsage(fix, expl *generation.Output) TokenUsage {
	if fix.UsageReported == expl.UsageReported {
		return TokenUsage{
			InputTokens:  fix.InputTokens + expl.InputTokens,
			OutputTokens: fix.OutputTokens + expl.OutputTokens,
		}
	}
	return TokenUsage{
		InputTokens:  fix.EstimatedInputTokens + expl.EstimatedInputTokens,
		OutputTokens: fix.EstimatedOutputTokens + expl.EstimatedOutputTokens,
	}
}

// fail records the failed request and wraps err with its stage.
func (s *Service) fail(ctx context.Context, span trace.Span, start time.Time, rec metrics.Record, stage Stage, err error) error {
	latency := time.Since(start)
	rec.LatencyMS = latency.Milliseconds()
	s.record(ctx, rec)
	s.observe(ctx, latency, "failed", stage)

	span.RecordError(err)
	span.SetStatus(codes.Error, string(stage))
	s.logger.Error(ctx, "remediation failed", zap.String("stage", string(stage)), zap.Error(err))

	if !errors.Is(err, generation.ErrGenerationFailed) {
		err = fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}
	return &PipelineError{Stage: stage, Err: err}
}

// record writes rec. A failed write is logged and never fails the request.
func (s *Service) record(ctx context.Context, rec metrics.Record) {
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Warn(ctx, "failed to write metrics record", zap.Error(err))
	}
}

func (s *Service) observe(ctx context.Context, latency time.Duration, status string, stage Stage) {
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("stage", string(stage)),
	)
	if s.requests != nil {
		s.requests.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, latency.Seconds(), attrs)
	}
}

// checkCredentials warns when a hardcoded-credential fix still carries one.
func (s *Service) checkCredentials(ctx context.Context, req Request, fixed string) {
	if !s.scanner.Enabled() {
		return
	}
	if id, _ := cwe.Resolve(req.CWE()); id != hardcodedCredentials {
		return
	}
	findings := s.scanner.Scan(fixed)
	if len(findings) == 0 {
		return
	}
	s.logger.Warn(ctx, "fixed code still contains credentials",
		zap.Strings("rules", secrets.RuleIDs(findings)),
		zap.Int("line", findings[0].Line),
	)
}

// loggable redacts credentials and bounds the length of code bound for logs.
func (s *Service) loggable(code string) string {
	if s.scanner.Enabled() {
		code, _ = s.scanner.Redact(code)
	}
	if len(code) > maxLoggedCode {
		cut := maxLoggedCode
		for cut > 0 && !utf8.RuneStart(code[cut]) {
			cut--
		}
		code = code[:cut] + "..."
	}
	return code
}

// Close releases the collaborators, waiting for in-flight requests
// without a bound. It is safe to call more than once.
func (s *Service) Close() error {
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done, then releases the collaborators. Requests still running when ctx
// expires are abandoned; their results are discarded by the caller.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn(ctx, "abandoning in-flight remediations", zap.Error(ctx.Err()))
		errs = append(errs, fmt.Errorf("waiting for in-flight requests: %w", ctx.Err()))
	}

	for _, c := range s.closers {
		var err error
		if sd, ok := c.(shutdowner); ok {
			err = sd.Shutdown(ctx)
		} else {
			err = c.Close()
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isChanged(original, fixed string) bool {
	f := strings.TrimSpace(fixed)
	return f != "" && f != strings.TrimSpace(original)
}
