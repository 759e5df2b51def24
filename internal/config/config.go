// Package config defines the explicit configuration value passed into
// cogmem's constructors. There are no global singletons: Load builds one
// Config and the caller threads it through manager.New.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// WorkingMemory holds working_memory.* keys.
type WorkingMemory struct {
	NMax            int
	BMaxBytes       int64
	CoreTokenBudget int
}

// Episodic holds episodic.* keys.
type Episodic struct {
	RetentionDays   int
	ANNEfConstruction int
	ANNM            int
}

// Semantic holds semantic.* keys.
type Semantic struct {
	SimilarityThreshold float64
}

// Procedural holds procedural.* keys.
type Procedural struct {
	InitialConfidence float64
	MinSupport        int
}

// Consolidator holds consolidator.* keys.
type Consolidator struct {
	CompressAfterDays int
	GroupSimilarity   float64
	PatternWindowDays int
	// RateLimitPerMinute bounds how often consolidate_incremental may start
	// a new batch (spec.md §5 backpressure requirement).
	RateLimitPerMinute int
}

// Relevance holds relevance.* keys.
type Relevance struct {
	SimilarityWeight float64
	RecencyWeight    float64
	HalfLifeHours    float64
}

// Retrieval holds retrieval.* keys.
type Retrieval struct {
	DefaultLimit int
	MaxLimit     int
}

// Timeouts holds the per-call timeouts spec.md §5 requires for storage and
// embedding calls.
type Timeouts struct {
	Store     time.Duration
	Embedding time.Duration
}

// Retry holds the StoreError retry policy from spec.md §7.
type Retry struct {
	MaxAttempts int
}

// Config is the explicit, immutable configuration value for one
// CognitiveManager instance.
type Config struct {
	WorkingMemory WorkingMemory
	Episodic      Episodic
	Semantic      Semantic
	Procedural    Procedural
	Consolidator  Consolidator
	Relevance     Relevance
	Retrieval     Retrieval
	Timeouts      Timeouts
	Retry         Retry

	DatabaseURL      string
	EmbeddingProvider string
	EmbeddingAPIKey   string
	SummarizerProvider string
	SummarizerAPIKey   string
	LogLevel         string
}

// Default returns a Config populated with spec.md §6's default values.
func Default() Config {
	return Config{
		WorkingMemory: WorkingMemory{
			NMax:            64,
			BMaxBytes:       1_048_576,
			CoreTokenBudget: 2_048,
		},
		Episodic: Episodic{
			RetentionDays:     30,
			ANNEfConstruction: 200,
			ANNM:              16,
		},
		Semantic: Semantic{
			SimilarityThreshold: 0.7,
		},
		Procedural: Procedural{
			InitialConfidence: 0.5,
			MinSupport:        3,
		},
		Consolidator: Consolidator{
			CompressAfterDays:  30,
			GroupSimilarity:    0.85,
			PatternWindowDays:  90,
			RateLimitPerMinute: 6,
		},
		Relevance: Relevance{
			SimilarityWeight: 0.7,
			RecencyWeight:    0.3,
			HalfLifeHours:    168,
		},
		Retrieval: Retrieval{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Timeouts: Timeouts{
			Store:     5 * time.Second,
			Embedding: 30 * time.Second,
		},
		Retry: Retry{
			MaxAttempts: 3,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults overridden by environment variables,
// loading a .env file first (same loader the teacher uses: COGMEM_ENV names
// the file, default ".env", plus an optional ".secret" sidecar).
func Load() Config {
	envFile := os.Getenv("COGMEM_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	cfg := Default()

	cfg.WorkingMemory.NMax = envInt("WORKING_MEMORY_N_MAX", cfg.WorkingMemory.NMax)
	cfg.WorkingMemory.BMaxBytes = envInt64("WORKING_MEMORY_B_MAX_BYTES", cfg.WorkingMemory.BMaxBytes)
	cfg.WorkingMemory.CoreTokenBudget = envInt("WORKING_MEMORY_CORE_TOKEN_BUDGET", cfg.WorkingMemory.CoreTokenBudget)

	cfg.Episodic.RetentionDays = envInt("EPISODIC_RETENTION_DAYS", cfg.Episodic.RetentionDays)
	cfg.Episodic.ANNEfConstruction = envInt("EPISODIC_ANN_EF_CONSTRUCTION", cfg.Episodic.ANNEfConstruction)
	cfg.Episodic.ANNM = envInt("EPISODIC_ANN_M", cfg.Episodic.ANNM)

	cfg.Semantic.SimilarityThreshold = envFloat("SEMANTIC_SIMILARITY_THRESHOLD", cfg.Semantic.SimilarityThreshold)

	cfg.Procedural.InitialConfidence = envFloat("PROCEDURAL_INITIAL_CONFIDENCE", cfg.Procedural.InitialConfidence)
	cfg.Procedural.MinSupport = envInt("PROCEDURAL_MIN_SUPPORT", cfg.Procedural.MinSupport)

	cfg.Consolidator.CompressAfterDays = envInt("CONSOLIDATOR_COMPRESS_AFTER_DAYS", cfg.Consolidator.CompressAfterDays)
	cfg.Consolidator.GroupSimilarity = envFloat("CONSOLIDATOR_GROUP_SIMILARITY", cfg.Consolidator.GroupSimilarity)
	cfg.Consolidator.PatternWindowDays = envInt("CONSOLIDATOR_PATTERN_WINDOW_DAYS", cfg.Consolidator.PatternWindowDays)
	cfg.Consolidator.RateLimitPerMinute = envInt("CONSOLIDATOR_RATE_LIMIT_PER_MINUTE", cfg.Consolidator.RateLimitPerMinute)

	cfg.Relevance.SimilarityWeight = envFloat("RELEVANCE_SIMILARITY_WEIGHT", cfg.Relevance.SimilarityWeight)
	cfg.Relevance.RecencyWeight = envFloat("RELEVANCE_RECENCY_WEIGHT", cfg.Relevance.RecencyWeight)
	cfg.Relevance.HalfLifeHours = envFloat("RELEVANCE_HALF_LIFE_HOURS", cfg.Relevance.HalfLifeHours)

	cfg.Retrieval.DefaultLimit = envInt("RETRIEVAL_DEFAULT_LIMIT", cfg.Retrieval.DefaultLimit)
	cfg.Retrieval.MaxLimit = envInt("RETRIEVAL_MAX_LIMIT", cfg.Retrieval.MaxLimit)

	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.EmbeddingProvider = envString("EMBEDDING_PROVIDER", "mock")
	cfg.EmbeddingAPIKey = envString("OPENAI_API_KEY", "")
	cfg.SummarizerProvider = envString("SUMMARIZER_PROVIDER", "")
	cfg.SummarizerAPIKey = envString("SUMMARIZER_API_KEY", "")
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}
