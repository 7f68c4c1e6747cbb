package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainConfig selects a langchaingo backend.
type LangchainConfig struct {
	// Backend is "ollama" or "openai".
	Backend string
	Model   string
	BaseURL string
	APIKey  string
}

// LangchainModel generates text through a langchaingo llms.Model.
type LangchainModel struct {
	llm llms.Model
}

var _ Model = (*LangchainModel)(nil)

// NewLangchainModel creates the configured langchaingo client. No request
// is made until the first call.
func NewLangchainModel(cfg LangchainConfig) (*LangchainModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}

	var (
		llm llms.Model
		err error
	)
	switch cfg.Backend {
	case "ollama", "":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err = ollama.New(opts...)
	case "openai":
		token := cfg.APIKey
		if token == "" {
			token = "unused"
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(token)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown langchain backend %q", ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Backend, err)
	}
	return NewLangchainModelFrom(llm), nil
}

// NewLangchainModelFrom wraps an existing llms.Model.
func NewLangchainModelFrom(llm llms.Model) *LangchainModel {
	return &LangchainModel{llm: llm}
}

// Call sends prompt as a single human message. Usage is read from the
// choice's GenerationInfo, which the ollama and openai clients fill in.
func (m *LangchainModel) Call(ctx context.Context, prompt string, params Params) (Completion, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(params.Temperature),
	}
	if params.MaxNewTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxNewTokens))
	}
	if params.TopP > 0 {
		opts = append(opts, llms.WithTopP(params.TopP))
	}

	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	resp, err := m.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("langchain returned no choices")
	}
	choice := resp.Choices[0]
	return Completion{
		Text:         choice.Content,
		PromptTokens: infoInt(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: infoInt(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

// infoInt reads a numeric GenerationInfo entry. Backends differ in the
// concrete type they store.
func infoInt(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
