package remediation

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/fixd/internal/recipes"
)

var (
	// ErrInvalidRequest indicates a request failed validation.
	ErrInvalidRequest = errors.New("invalid remediation request")

	// ErrServiceClosed is returned by a Service after Close.
	ErrServiceClosed = errors.New("remediation service closed")

	// ErrStartup indicates the service could not be assembled.
	ErrStartup = errors.New("remediation service startup failed")
)

// Source names where retrieval guidance came from.
type Source string

const (
	// SourceExact is a recipe whose category equals the request CWE.
	SourceExact Source = "exact"
	// SourceVector is the nearest recipe by embedding distance.
	SourceVector Source = "vector"
	// SourceFallback is the static per-category template.
	SourceFallback Source = "fallback"
)

// RetrievalResult is the guidance selected for a request.
type RetrievalResult struct {
	// Recipe is nil when UsedFallback is true.
	Recipe *recipes.Recipe
	// Score is the squared distance for vector matches and 0 otherwise.
	Score        float32
	UsedFallback bool
	// Guidance is the recipe text, or the fallback template.
	Guidance string
	Source   Source
}

// TokenUsage is the token accounting of a request.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the outcome of a successful remediation. Every field is
// always serialized.
type Result struct {
	FixedCode   string     `json:"fixed_code"`
	Diff        string     `json:"diff"`
	Explanation string     `json:"explanation"`
	ModelUsed   string     `json:"model_used"`
	TokenUsage  TokenUsage `json:"token_usage"`
	LatencyMS   int64      `json:"latency_ms"`
}

// Stage identifies a pipeline step for error reporting.
type Stage string

const (
	StageValidate Stage = "validate"
	StageGenerate Stage = "generate"
	StageExplain  Stage = "explain"
)

// PipelineError reports the stage at which a request failed.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("remediation failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
