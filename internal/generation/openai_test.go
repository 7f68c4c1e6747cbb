package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestNewOpenAIModel_RequiresModel(t *testing.T) {
	_, err := NewOpenAIModel(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAIModel_Call(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "coder",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "fixed"}}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
		}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel(OpenAIConfig{Model: "coder", BaseURL: srv.URL + "/v1/", APIKey: "test"})
	require.NoError(t, err)

	out, err := m.Call(context.Background(), "fix it", Params{MaxNewTokens: 64, Temperature: 0, TopP: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "fixed", out.Text)
	assert.Equal(t, 3, out.PromptTokens)
	assert.Equal(t, 1, out.OutputTokens)

	assert.Equal(t, "coder", got["model"])
	assert.EqualValues(t, 64, got["max_completion_tokens"])
	assert.EqualValues(t, 0.9, got["top_p"])
}

func TestOpenAIModel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "model crashed", "type": "server_error"}}`))
	}))
	defer srv.Close()

	m, err := NewOpenAIModel(OpenAIConfig{Model: "coder", BaseURL: srv.URL + "/v1/", APIKey: "test"})
	require.NoError(t, err)

	_, err = m.Call(context.Background(), "fix it", DefaultParams())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai chat completion")
}

// fakeLLM answers GenerateContent with a fixed choice.
type fakeLLM struct {
	choice *llms.ContentChoice
	err    error
	msgs   []llms.MessageContent
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.msgs = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{f.choice}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func TestLangchainModel_Call(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		wantIn  int
		wantOut int
	}{
		{name: "ollama ints", info: map[string]any{"PromptTokens": 21, "CompletionTokens": 9, "TotalTokens": 30}, wantIn: 21, wantOut: 9},
		{name: "decoded floats", info: map[string]any{"PromptTokens": float64(5), "CompletionTokens": float64(2)}, wantIn: 5, wantOut: 2},
		{name: "no usage", info: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{choice: &llms.ContentChoice{Content: "fixed", GenerationInfo: tt.info}}
			m := NewLangchainModelFrom(llm)

			out, err := m.Call(context.Background(), "fix it", DefaultParams())
			require.NoError(t, err)
			assert.Equal(t, "fixed", out.Text)
			assert.Equal(t, tt.wantIn, out.PromptTokens)
			assert.Equal(t, tt.wantOut, out.OutputTokens)

			require.Len(t, llm.msgs, 1)
			assert.Equal(t, llms.ChatMessageTypeHuman, llm.msgs[0].Role)
		})
	}
}

func TestLangchainModel_CallError(t *testing.T) {
	m := NewLangchainModelFrom(&fakeLLM{err: errors.New("connection refused")})
	_, err := m.Call(context.Background(), "fix it", DefaultParams())
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewLangchainModel(t *testing.T) {
	_, err := NewLangchainModel(LangchainConfig{Backend: "ollama"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewLangchainModel(LangchainConfig{Backend: "llamafile", Model: "x"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	m, err := NewLangchainModel(LangchainConfig{Backend: "ollama", Model: "qwen2.5-coder:1.5b", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
