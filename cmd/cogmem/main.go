// Command cogmem wires a CognitiveManager against either the in-memory
// store (the default, for local experimentation) or Postgres/pgvector when
// DATABASE_URL is set, records a handful of memories, runs one
// consolidation tick, and prints the resulting statistics. It exists as a
// wiring smoke test, not a server.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/clock"
	"github.com/cogmem/cogmem/internal/config"
	"github.com/cogmem/cogmem/internal/domain"
	"github.com/cogmem/cogmem/internal/embedding"
	"github.com/cogmem/cogmem/internal/idgen"
	"github.com/cogmem/cogmem/internal/manager"
	"github.com/cogmem/cogmem/internal/memstore"
	"github.com/cogmem/cogmem/internal/pgstore"
	"github.com/cogmem/cogmem/internal/summarizer"
	"github.com/cogmem/cogmem/internal/tokencount"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build stores", zap.Error(err))
	}
	defer closeStores()

	embedder, err := embedding.NewClient(cfg.EmbeddingProvider, cfg.EmbeddingAPIKey)
	if err != nil {
		logger.Fatal("failed to build embedder", zap.Error(err))
	}

	var summ domain.Summarizer
	if cfg.SummarizerProvider == "openai" {
		summ = summarizer.NewOpenAIClient(cfg.SummarizerAPIKey)
	}
	extractive := summarizer.NewExtractive()

	m := manager.New(cfg, stores, embedder, summ, extractive, tokencount.New(), clock.Real{}, idgen.UUID{}, logger)

	if err := m.SetCoreMemory(domain.CoreMemory{
		AgentPersona: "cogmem demo agent",
		UserPersona:  "local smoke test",
	}); err != nil {
		logger.Warn("set_core_memory failed", zap.Error(err))
	}

	id, err := m.RememberEpisode(ctx, domain.Episode{
		AgentID:         idgen.UUID{}.NewID(),
		ProjectID:       idgen.UUID{}.NewID(),
		TaskDescription: "fix flaky retry logic in the HTTP client",
		SolutionSummary: "added jittered backoff and capped max attempts",
		EpisodeType:     domain.EpisodeBugfix,
		Outcome:         domain.OutcomeSuccess,
		SuccessScore:    0.9,
		PatternValue:    0.8,
	})
	if err != nil {
		logger.Warn("remember_episode failed", zap.Error(err))
	} else {
		logger.Info("recorded episode", zap.String("id", id.String()))
	}

	results, err := m.Retrieve(ctx, "retry backoff http client", 5)
	if err != nil {
		logger.Warn("retrieve failed", zap.Error(err))
	} else {
		logger.Info("retrieve returned results", zap.Int("count", len(results)))
	}

	report, err := m.Consolidate(ctx)
	if err != nil {
		logger.Warn("consolidate failed", zap.Error(err))
	} else {
		logger.Info("consolidation finished",
			zap.Int("episodes_processed", report.EpisodesProcessed),
			zap.Int("groups_formed", report.GroupsFormed),
			zap.Int("patterns_created_or_updated", report.PatternsCreatedOrUpdated))
	}

	stats, err := m.Statistics(ctx)
	if err != nil {
		logger.Fatal("statistics failed", zap.Error(err))
	}
	logger.Info("cognitive memory statistics",
		zap.Int("core_memory_tokens", stats.CoreMemoryTokens),
		zap.Int("working_memory_items", stats.WorkingMemoryItems),
		zap.Int("episodic_total", stats.Episodic.Total),
		zap.Int("semantic_unit_count", stats.SemanticUnitCount),
		zap.Int("procedural_count", stats.ProceduralCount))
}

// buildStores picks the Postgres/pgvector backend when DATABASE_URL is
// configured, falling back to the in-memory one otherwise so the binary
// runs with zero external dependencies out of the box.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (manager.Stores, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, using in-memory stores")
		return manager.Stores{
			Episodic:   memstore.NewEpisodic(),
			Semantic:   memstore.NewSemantic(),
			Procedural: memstore.NewProcedural(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return manager.Stores{}, nil, err
	}
	logger.Info("connected to database")

	return manager.Stores{
		Episodic:   pgstore.NewEpisodic(pool),
		Semantic:   pgstore.NewSemantic(pool),
		Procedural: pgstore.NewProcedural(pool),
	}, pool.Close, nil
}
