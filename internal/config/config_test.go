package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 64, cfg.WorkingMemory.NMax)
	assert.Equal(t, int64(1_048_576), cfg.WorkingMemory.BMaxBytes)
	assert.Equal(t, 2_048, cfg.WorkingMemory.CoreTokenBudget)
	assert.Equal(t, 30, cfg.Episodic.RetentionDays)
	assert.Equal(t, 0.7, cfg.Semantic.SimilarityThreshold)
	assert.Equal(t, 0.5, cfg.Procedural.InitialConfidence)
	assert.Equal(t, 3, cfg.Procedural.MinSupport)
	assert.Equal(t, 0.85, cfg.Consolidator.GroupSimilarity)
	assert.Equal(t, 0.7, cfg.Relevance.SimilarityWeight)
	assert.Equal(t, 0.3, cfg.Relevance.RecencyWeight)
	assert.Equal(t, 168.0, cfg.Relevance.HalfLifeHours)
	assert.Equal(t, 10, cfg.Retrieval.DefaultLimit)
	assert.Equal(t, 100, cfg.Retrieval.MaxLimit)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverridesDefaultsFromEnv(t *testing.T) {
	t.Setenv("COGMEM_ENV", "does-not-exist.env")
	t.Setenv("WORKING_MEMORY_N_MAX", "128")
	t.Setenv("SEMANTIC_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("DATABASE_URL", "postgres://localhost/cogmem")

	cfg := Load()

	assert.Equal(t, 128, cfg.WorkingMemory.NMax)
	assert.Equal(t, 0.9, cfg.Semantic.SimilarityThreshold)
	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "postgres://localhost/cogmem", cfg.DatabaseURL)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.Episodic.RetentionDays)
}
