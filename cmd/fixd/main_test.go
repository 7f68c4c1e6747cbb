package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/fixd/internal/config"
	"github.com/fyrsmithlabs/fixd/internal/generation"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/remediation"
)

func TestInitLogger(t *testing.T) {
	logger, err := initLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.DebugLevel))

	_, err = initLogger(config.LoggingConfig{Level: "loud"})
	require.Error(t, err)

	_, err = initLogger(config.LoggingConfig{Format: "xml"})
	require.Error(t, err)
}

func TestNewModel(t *testing.T) {
	m, err := newModel(config.GenerationConfig{Provider: "openai", Model: "gpt-4o-mini", BaseURL: "http://localhost:8001/v1"})
	require.NoError(t, err)
	assert.IsType(t, &generation.OpenAIModel{}, m)

	m, err = newModel(config.GenerationConfig{Provider: "langchain", Backend: "ollama", Model: "qwen2.5-coder:1.5b", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.IsType(t, &generation.LangchainModel{}, m)

	_, err = newModel(config.GenerationConfig{Provider: "llamacpp", Model: "x"})
	require.Error(t, err)
}

func TestInitDependencies_BadEmbeddingProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Embeddings.Provider = "word2vec"

	_, err := initDependencies(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, remediation.ErrStartup)
}
