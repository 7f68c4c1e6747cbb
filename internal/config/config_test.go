package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "unknown embeddings provider", mutate: func(c *Config) { c.Embeddings.Provider = "word2vec" }, wantErr: true},
		{name: "tei without url", mutate: func(c *Config) {
			c.Embeddings.Provider = "tei"
			c.Embeddings.BaseURL = ""
		}, wantErr: true},
		{name: "tei with url", mutate: func(c *Config) {
			c.Embeddings.Provider = "tei"
			c.Embeddings.BaseURL = "http://tei:8080"
		}},
		{name: "unknown backend", mutate: func(c *Config) { c.Generation.Backend = "vertex" }, wantErr: true},
		{name: "openai provider ignores backend", mutate: func(c *Config) {
			c.Generation.Provider = "openai"
			c.Generation.Backend = ""
		}},
		{name: "zero max tokens", mutate: func(c *Config) { c.Generation.MaxNewTokens = 0 }, wantErr: true},
		{name: "negative temperature", mutate: func(c *Config) { c.Generation.Temperature = -1 }, wantErr: true},
		{name: "top_p above one", mutate: func(c *Config) { c.Generation.TopP = 1.5 }, wantErr: true},
		{name: "negative max distance", mutate: func(c *Config) { c.Retrieval.MaxDistance = -0.1 }, wantErr: true},
		{name: "empty metrics path", mutate: func(c *Config) { c.Metrics.LogPath = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(data))

	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, "1m30s", d.Duration().String())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8000", Default().Server.Addr())
}
