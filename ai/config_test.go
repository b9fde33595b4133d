package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.ExtractorModel)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ExtractorHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithExtractorHost("http://extract:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://extract:9090/v1", cfg.ExtractorHost)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithExtractorModel("gpt-4o-mini"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractorModel)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name              string
		embeddingHost     string
		extractorHost     string
		expectedEmbedding string
		expectedExtractor string
	}{
		{
			name:              "already has /v1",
			embeddingHost:     "http://localhost:11434/v1",
			extractorHost:     "http://localhost:11434/v1",
			expectedEmbedding: "http://localhost:11434/v1",
			expectedExtractor: "http://localhost:11434/v1",
		},
		{
			name:              "missing /v1",
			embeddingHost:     "http://localhost:11434",
			extractorHost:     "http://localhost:11434",
			expectedEmbedding: "http://localhost:11434/v1",
			expectedExtractor: "http://localhost:11434/v1",
		},
		{
			name:              "has trailing slash",
			embeddingHost:     "http://localhost:11434/",
			extractorHost:     "http://localhost:11434/",
			expectedEmbedding: "http://localhost:11434/v1",
			expectedExtractor: "http://localhost:11434/v1",
		},
		{
			name:              "empty hosts",
			embeddingHost:     "",
			extractorHost:     "",
			expectedEmbedding: "",
			expectedExtractor: "",
		},
		{
			name:              "different formats",
			embeddingHost:     "http://embed:8080",
			extractorHost:     "http://extract:9090/v1",
			expectedEmbedding: "http://embed:8080/v1",
			expectedExtractor: "http://extract:9090/v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost: tt.embeddingHost,
				ExtractorHost: tt.extractorHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedEmbedding, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedExtractor, cfg.ExtractorHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost:  "http://localhost:11434",
			ExtractorHost:  "http://localhost:11434",
			EmbeddingModel: "embeddinggemma",
			ExtractorModel: "qwen2.5:3b",
		}

		err := cfg.Validate()
		assert.NoError(t, err)

		// Should also normalize
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractorHost)
	})

	t.Run("missing embedding host", func(t *testing.T) {
		cfg := &Config{
			ExtractorHost:  "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
			ExtractorModel: "qwen2.5:3b",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("missing extractor host", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost:  "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
			ExtractorModel: "qwen2.5:3b",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ExtractorHost")
	})

	t.Run("missing embedding model", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost:  "http://localhost:11434/v1",
			ExtractorHost:  "http://localhost:11434/v1",
			ExtractorModel: "qwen2.5:3b",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("missing extractor model", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost:  "http://localhost:11434/v1",
			ExtractorHost:  "http://localhost:11434/v1",
			EmbeddingModel: "embeddinggemma",
		}

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ExtractorModel")
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	// Test that NewConfig produces a valid configuration
	cfg := NewConfig()
	err := cfg.Validate()
	require.NoError(t, err)

	// Test that DefaultConfig produces a valid configuration
	cfg = DefaultConfig()
	err = cfg.Validate()
	require.NoError(t, err)
}
