package remediation

import (
	"context"

	"github.com/fyrsmithlabs/fixd/internal/generation"
	"github.com/fyrsmithlabs/fixd/internal/metrics"
)

// Retriever selects guidance for a request. It never fails; problems
// degrade to the fallback template.
type Retriever interface {
	Retrieve(ctx context.Context, req Request) RetrievalResult
}

// Prompter builds prompts and extracts code from model output.
type Prompter interface {
	BuildRemediation(req Request, r RetrievalResult) string
	BuildExplanation(req Request, fixedCode string, changed bool) string
	ExtractFix(output, language string) string
}

// Generator runs the language model.
type Generator interface {
	Generate(ctx context.Context, prompt string, params generation.Params) (*generation.Output, error)
	ModelName() string
}

// Recorder persists one record per handled request.
type Recorder interface {
	Record(ctx context.Context, rec metrics.Record) error
}
