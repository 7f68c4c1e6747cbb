package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	Model string
	// BaseURL enables vLLM, Ollama or other compatible servers.
	BaseURL string
	// APIKey may be empty; the SDK then reads OPENAI_API_KEY.
	APIKey string
}

// OpenAIModel generates text with the openai-go SDK.
type OpenAIModel struct {
	client openai.Client
	model  string
}

var _ Model = (*OpenAIModel)(nil)

// NewOpenAIModel creates an OpenAI chat completions backend.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// The Generator owns the single-attempt policy.
	opts = append(opts, option.WithMaxRetries(0))

	return &OpenAIModel{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Call sends prompt as a single user message.
func (m *OpenAIModel) Call(ctx context.Context, prompt string, params Params) (Completion, error) {
	req := openai.ChatCompletionNewParams{
		Model:       m.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(params.Temperature),
	}
	if params.MaxNewTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(params.MaxNewTokens))
	}
	if params.TopP > 0 {
		req.TopP = openai.Float(params.TopP)
	}

	completion, err := m.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Completion{}, errors.New("openai returned no choices")
	}
	return Completion{
		Text:         completion.Choices[0].Message.Content,
		PromptTokens: int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}, nil
}
