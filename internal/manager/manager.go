// Package manager implements the CognitiveManager façade: the single
// public entry point that owns WorkingMemory, EpisodicMemory,
// SemanticMemory, ProceduralMemory and the Consolidator, and fans
// retrieval out across them.
package manager

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/config"
	"github.com/cogmem/cogmem/internal/consolidator"
	"github.com/cogmem/cogmem/internal/domain"
	"github.com/cogmem/cogmem/internal/tier/episodic"
	"github.com/cogmem/cogmem/internal/tier/procedural"
	"github.com/cogmem/cogmem/internal/tier/semantic"
	"github.com/cogmem/cogmem/internal/tier/working"
)

const defaultPatternValueThreshold = 0.7

// Manager is the CognitiveManager. It exclusively owns instances of all
// tier components and hands out references scoped to individual
// operations.
type Manager struct {
	cfg config.Config

	working    *working.Memory
	episodic   *episodic.Memory
	semantic   *semantic.Memory
	procedural *procedural.Memory
	consolid   *consolidator.Consolidator

	core   domain.CoreMemory
	tokens domain.TokenEstimator

	embedder domain.Embedder // optional
	clock    domain.Clock
	ids      domain.IdGen
	logger   *zap.Logger
}

// Stores bundles the backing persistence capabilities, so the same Manager
// constructor works against internal/memstore or internal/pgstore.
type Stores struct {
	Episodic   domain.EpisodicStore
	Semantic   domain.SemanticStore
	Procedural domain.ProceduralStore
}

func New(cfg config.Config, stores Stores, embedder domain.Embedder, summarizer, extractive domain.Summarizer,
	tokens domain.TokenEstimator, clk domain.Clock, ids domain.IdGen, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = domain.DefaultTokenEstimator
	}

	wm := working.New(cfg.WorkingMemory.NMax, cfg.WorkingMemory.BMaxBytes, clk, logger)
	em := episodic.New(stores.Episodic, embedder, clk, logger)
	sm := semantic.New(stores.Semantic, embedder, logger)
	pm := procedural.New(stores.Procedural, embedder, cfg.Procedural.InitialConfidence, clk, ids, logger)

	cons := consolidator.New(stores.Episodic, stores.Semantic, stores.Procedural, summarizer, extractive, clk, ids, logger, consolidator.Config{
		CompressAfter:      time.Duration(cfg.Consolidator.CompressAfterDays) * 24 * time.Hour,
		GroupSimilarity:    cfg.Consolidator.GroupSimilarity,
		PatternWindow:      time.Duration(cfg.Consolidator.PatternWindowDays) * 24 * time.Hour,
		MinSupport:         cfg.Procedural.MinSupport,
		RateLimitPerMinute: cfg.Consolidator.RateLimitPerMinute,
	})

	return &Manager{
		cfg:        cfg,
		working:    wm,
		episodic:   em,
		semantic:   sm,
		procedural: pm,
		consolid:   cons,
		tokens:     tokens,
		embedder:   embedder,
		clock:      clk,
		ids:        ids,
		logger:     logger,
	}
}

// WorkingMemory exposes the bounded scratchpad for direct store/retrieve
// calls; it has no store dependency and is not part of the persisted
// tiers.
func (m *Manager) WorkingMemory() *working.Memory { return m.working }

// CoreMemory returns a copy of the always-resident core record.
func (m *Manager) CoreMemory() domain.CoreMemory { return m.core }

// SetCoreMemory replaces the core-memory record, after checking its
// estimated token size against the configured budget.
func (m *Manager) SetCoreMemory(core domain.CoreMemory) error {
	if core.TokenEstimate(m.tokens) > m.cfg.WorkingMemory.CoreTokenBudget {
		return &domain.ValidationError{Field: "core_memory", Reason: "exceeds configured token budget"}
	}
	m.core = core
	return nil
}

// RememberEpisode writes e to EpisodicMemory, computing an embedding first
// if absent and an Embedder is configured (embedding failure is
// non-fatal). If the episode succeeded with a pattern_value at or above
// the default threshold and a non-empty solution_summary, it also feeds
// ProceduralMemory.record_solution.
func (m *Manager) RememberEpisode(ctx context.Context, e domain.Episode) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = m.ids.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.clock.Now()
	}
	if err := e.Validate(); err != nil {
		return uuid.Nil, err
	}

	if err := m.episodic.Record(ctx, &e); err != nil {
		return uuid.Nil, err
	}

	if e.Outcome == domain.OutcomeSuccess && e.PatternValue >= defaultPatternValueThreshold && e.SolutionSummary != "" {
		if _, err := m.procedural.RecordSolution(ctx, e.ID, e.TaskDescription, e.SolutionSummary); err != nil {
			m.logger.Warn("record_solution from remember_episode failed",
				zap.String("episode_id", e.ID.String()), zap.Error(err))
		}
	}

	return e.ID, nil
}

// RememberUnit upserts u by qualified_name.
func (m *Manager) RememberUnit(ctx context.Context, u domain.SemanticUnit) (uuid.UUID, error) {
	if u.ID == uuid.Nil {
		u.ID = m.ids.NewID()
	}
	now := m.clock.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if err := m.semantic.UpsertUnit(ctx, &u); err != nil {
		return uuid.Nil, err
	}
	return u.ID, nil
}

// RememberPattern writes or updates p directly (bypassing the
// record_solution matching path), for callers that already have a
// fully-formed Pattern.
func (m *Manager) RememberPattern(ctx context.Context, p domain.Pattern) (uuid.UUID, error) {
	if err := p.Validate(); err != nil {
		return uuid.Nil, err
	}
	if err := m.procedural.Remember(ctx, &p); err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// Retrieve fans out across tiers and returns up to limit ranked Memory
// results. Every returned episode has access_count incremented as a side
// effect.
func (m *Manager) Retrieve(ctx context.Context, query string, limit int) ([]domain.Memory, error) {
	if limit <= 0 {
		limit = m.cfg.Retrieval.DefaultLimit
	}
	if limit > m.cfg.Retrieval.MaxLimit {
		limit = m.cfg.Retrieval.MaxLimit
	}
	if query == "" {
		return nil, nil
	}

	now := m.clock.Now()
	var queryVec []float32
	if m.embedder != nil {
		if vec, err := m.embedder.Embed(ctx, query); err == nil {
			queryVec = vec
		} else {
			m.logger.Warn("query embedding failed, falling back to keyword/jaccard retrieval", zap.Error(err))
		}
	}

	var results []domain.Memory

	if len(queryVec) > 0 {
		episodes, err := m.episodic.FindSimilar(ctx, queryVec, limit)
		if err != nil {
			return nil, err
		}
		for _, ews := range episodes {
			results = append(results, m.episodeToMemory(ews.Episode, ews.Score, now))
		}
	} else {
		episodes, err := m.episodic.FindByKeyword(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range episodes {
			sim := episodic.JaccardTokens(query, e.ReferenceText())
			results = append(results, m.episodeToMemory(e, sim, now))
		}
	}

	if unit, err := m.semantic.FindByQualifiedName(ctx, uuid.Nil, query); err == nil && unit != nil {
		recency := recencyScore(now, unit.UpdatedAt, m.cfg.Relevance.HalfLifeHours)
		results = append(results, domain.Memory{
			ID:             unit.ID,
			Tier:           domain.TierSemantic,
			Content:        *unit,
			RelevanceScore: m.cfg.Relevance.SimilarityWeight*1.0 + m.cfg.Relevance.RecencyWeight*recency,
			Similarity:     1.0,
			Recency:        recency,
			Timestamp:      unit.UpdatedAt,
		})
	}

	patterns, err := m.procedural.Suggest(ctx, query, limit)
	if err == nil {
		for _, p := range patterns {
			ts := p.CreatedAt
			if p.LastAppliedAt != nil {
				ts = *p.LastAppliedAt
			}
			recency := recencyScore(now, ts, m.cfg.Relevance.HalfLifeHours)
			results = append(results, domain.Memory{
				ID:             p.ID,
				Tier:           domain.TierProcedural,
				Content:        p,
				RelevanceScore: m.cfg.Relevance.SimilarityWeight*p.SuccessRate + m.cfg.Relevance.RecencyWeight*recency,
				Similarity:     p.SuccessRate,
				Recency:        recency,
				Timestamp:      ts,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].Recency > results[j].Recency
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		if e, ok := r.Content.(domain.Episode); ok {
			if err := m.episodic.IncrementAccessCount(ctx, e.ID); err != nil {
				m.logger.Warn("increment_access_count failed", zap.String("episode_id", e.ID.String()), zap.Error(err))
			}
		}
	}

	return results, nil
}

func (m *Manager) episodeToMemory(e domain.Episode, sim float64, now time.Time) domain.Memory {
	recency := recencyScore(now, e.CreatedAt, m.cfg.Relevance.HalfLifeHours)
	return domain.Memory{
		ID:             e.ID,
		Tier:           domain.TierEpisodic,
		Content:        e,
		RelevanceScore: m.cfg.Relevance.SimilarityWeight*sim + m.cfg.Relevance.RecencyWeight*recency,
		Similarity:     sim,
		Recency:        recency,
		Timestamp:      e.CreatedAt,
	}
}

// recencyScore implements recency = exp(-ln2 * age_hours / half_life_hours).
func recencyScore(now, ts time.Time, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		halfLifeHours = 168
	}
	ageHours := now.Sub(ts).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-math.Ln2 * ageHours / halfLifeHours)
}

// Forget deletes episodes where pattern_value < threshold AND
// access_count = 0 AND age > retention_window, returning the count
// removed. Core memory, units and patterns are never auto-forgotten.
func (m *Manager) Forget(ctx context.Context, threshold float32) (int, error) {
	retention := time.Duration(m.cfg.Episodic.RetentionDays) * 24 * time.Hour
	return m.episodic.Forget(ctx, threshold, retention)
}

// Consolidate runs the full four-stage pipeline.
func (m *Manager) Consolidate(ctx context.Context) (domain.ConsolidationReport, error) {
	return m.consolid.Run(ctx)
}

// ConsolidateIncremental caps the episodes scanned to batch.
func (m *Manager) ConsolidateIncremental(ctx context.Context, batch int) (domain.ConsolidationReport, error) {
	return m.consolid.RunIncremental(ctx, batch)
}

// Dream runs only the pattern-extraction stage of consolidation.
func (m *Manager) Dream(ctx context.Context) ([]uuid.UUID, error) {
	return m.consolid.Dream(ctx)
}

// Statistics snapshots per-tier counts, working-memory usage and last
// consolidation time.
func (m *Manager) Statistics(ctx context.Context) (domain.Statistics, error) {
	epStats, err := m.episodic.Statistics(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	semStats, err := m.semantic.Statistics(ctx, uuid.Nil)
	if err != nil {
		return domain.Statistics{}, err
	}
	procStats, err := m.procedural.Statistics(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	wmStats := m.working.Statistics()

	var lastRun *time.Time
	if lr := m.consolid.LastRun(); !lr.IsZero() {
		lastRun = &lr
	}

	return domain.Statistics{
		CoreMemoryTokens:    m.core.TokenEstimate(m.tokens),
		WorkingMemoryItems:  wmStats.CurrentItems,
		WorkingMemoryBytes:  wmStats.CurrentBytes,
		Episodic:            epStats,
		SemanticUnitCount:   semStats.UnitCount,
		DependencyEdgeCount: semStats.DependencyCount,
		ProceduralCount:     procStats.Count,
		LastConsolidationAt: lastRun,
	}, nil
}

// StartBackgroundConsolidation launches the Consolidator's ticker.
func (m *Manager) StartBackgroundConsolidation(ctx context.Context, interval time.Duration, batch int) {
	m.consolid.Start(ctx, interval, batch)
}

// StopBackgroundConsolidation halts the Consolidator's ticker.
func (m *Manager) StopBackgroundConsolidation() {
	m.consolid.Stop()
}

// LinkEpisodeToSymbols establishes episode -[references]-> unit edges.
func (m *Manager) LinkEpisodeToSymbols(ctx context.Context, episodeID uuid.UUID, unitIDs []uuid.UUID) error {
	return m.episodic.LinkToSymbols(ctx, episodeID, unitIDs)
}

// FindCycles runs SemanticMemory.find_cycles for projectID.
func (m *Manager) FindCycles(ctx context.Context, projectID uuid.UUID) ([]domain.Cycle, error) {
	return m.semantic.FindCycles(ctx, projectID)
}

// ImpactOf runs SemanticMemory.impact_of over changedIDs.
func (m *Manager) ImpactOf(ctx context.Context, changedIDs []uuid.UUID) (domain.ImpactResult, error) {
	return m.semantic.ImpactOf(ctx, changedIDs)
}
