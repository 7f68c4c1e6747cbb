package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr error
		wantDim int
	}{
		{
			name:    "tei",
			cfg:     ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
			wantDim: 384,
		},
		{
			name:    "tei without base url",
			cfg:     ProviderConfig{Provider: "tei"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "openai compatible",
			cfg:     ProviderConfig{Provider: "openai", BaseURL: "http://localhost:11434/v1", Model: "text-embedding-3-small"},
			wantDim: 1536,
		},
		{
			name:    "openai without model",
			cfg:     ProviderConfig{Provider: "openai", BaseURL: "http://localhost:11434/v1"},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "word2vec"},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, p.Dimension())
			assert.NoError(t, p.Close())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	assert.Equal(t, 384, detectDimensionFromModel("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, 3072, detectDimensionFromModel("text-embedding-3-large"))
	assert.Equal(t, 1024, detectDimensionFromModel("custom/e5-large"))
	assert.Equal(t, 768, detectDimensionFromModel("custom/e5-base"))
	assert.Equal(t, 384, detectDimensionFromModel("mystery"))
}
