package gemini

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelforge/labelqueue/internal/config"
	"github.com/labelforge/labelqueue/internal/generation"
)

func TestValidateConfig(t *testing.T) {
	valid := config.LLMConfig{
		GeminiAPIKey:   "test-key",
		ModelName:      "gemini-2.0-flash",
		EmbeddingModel: "text-embedding-004",
	}
	assert.NoError(t, validateConfig(valid))

	missingKey := valid
	missingKey.GeminiAPIKey = ""
	assert.ErrorIs(t, validateConfig(missingKey), generation.ErrInvalidConfig)

	missingModel := valid
	missingModel.ModelName = ""
	assert.ErrorIs(t, validateConfig(missingModel), generation.ErrInvalidConfig)

	missingEmbedding := valid
	missingEmbedding.EmbeddingModel = ""
	assert.ErrorIs(t, validateConfig(missingEmbedding), generation.ErrInvalidConfig)
}

func TestNewGeminiServiceRejectsNilLogger(t *testing.T) {
	_, err := NewGeminiService(context.Background(), nil, config.LLMConfig{
		GeminiAPIKey:   "test-key",
		ModelName:      "gemini-2.0-flash",
		EmbeddingModel: "text-embedding-004",
	})
	require.Error(t, err)
}

func TestNewGeminiServiceRejectsBadConfig(t *testing.T) {
	_, err := NewGeminiService(context.Background(), slog.Default(), config.LLMConfig{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestEmptyBatchesAreNoOps(t *testing.T) {
	g := &GeminiService{logger: slog.Default()}

	completions, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, completions)

	vectors, err := g.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}
