// Package episodic implements EpisodicMemory: record/find_similar/
// find_by_keyword/find_by_entities/find_related/link_to_symbols/cleanup/
// statistics over a domain.EpisodicStore.
package episodic

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/domain"
)

// Memory is the EpisodicMemory component.
type Memory struct {
	store    domain.EpisodicStore
	embedder domain.Embedder // optional
	clock    domain.Clock
	logger   *zap.Logger
}

func New(store domain.EpisodicStore, embedder domain.Embedder, clk domain.Clock, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{store: store, embedder: embedder, clock: clk, logger: logger}
}

// Record persists e, embedding it first if the memory has an Embedder and e
// has none yet. Embedding failure is non-fatal: the episode is still
// written, without a vector.
func (m *Memory) Record(ctx context.Context, e *domain.Episode) error {
	if len(e.Embedding) == 0 && m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, e.ReferenceText())
		if err != nil {
			m.logger.Warn("episode embedding failed, writing without vector",
				zap.String("episode_id", e.ID.String()), zap.Error(err))
		} else {
			e.Embedding = vec
		}
	}
	if err := m.store.Create(ctx, e); err != nil {
		return &domain.StoreError{Op: "episodic.record", Attempts: 1, Err: err}
	}
	return nil
}

// FindSimilar returns the k nearest episodes by cosine similarity, filtered
// to success_score >= 0.5. Returns empty, not an error, if the index has no
// embedded episodes yet.
func (m *Memory) FindSimilar(ctx context.Context, queryVec []float32, k int) ([]domain.EpisodeWithScore, error) {
	out, err := m.store.FindSimilar(ctx, queryVec, k, 0.5)
	if err != nil {
		return nil, &domain.StoreError{Op: "episodic.find_similar", Attempts: 1, Err: err}
	}
	return out, nil
}

var wordRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Tokenize extracts tokens of length > 3, the threshold spec.md §4.3 names
// for find_by_keyword.
func Tokenize(text string) []string {
	words := wordRe.FindAllString(text, -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// FindByKeyword extracts tokens from text and ranks matches by distinct
// token-hit count then recency.
func (m *Memory) FindByKeyword(ctx context.Context, text string, k int) ([]domain.Episode, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	out, err := m.store.FindByKeyword(ctx, tokens, k)
	if err != nil {
		return nil, &domain.StoreError{Op: "episodic.find_by_keyword", Attempts: 1, Err: err}
	}
	return out, nil
}

// FindByEntities returns episodes whose files_touched or entities_modified
// intersects paths, ranked by success_score desc then recency desc.
func (m *Memory) FindByEntities(ctx context.Context, paths []string, k int) ([]domain.Episode, error) {
	out, err := m.store.FindByEntities(ctx, paths, k)
	if err != nil {
		return nil, &domain.StoreError{Op: "episodic.find_by_entities", Attempts: 1, Err: err}
	}
	return out, nil
}

// FindRelated finds episodes sharing any files_touched with episodeID,
// excluding itself, success-filtered.
func (m *Memory) FindRelated(ctx context.Context, episodeID uuid.UUID, k int) ([]domain.Episode, error) {
	e, err := m.store.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	out, err := m.store.FindByFilesTouched(ctx, e.FilesTouched, episodeID, k)
	if err != nil {
		return nil, &domain.StoreError{Op: "episodic.find_related", Attempts: 1, Err: err}
	}
	return out, nil
}

// LinkToSymbols establishes episode -[references]-> unit edges in a single
// call to the store, which is expected to batch them transactionally.
func (m *Memory) LinkToSymbols(ctx context.Context, episodeID uuid.UUID, unitIDs []uuid.UUID) error {
	if err := m.store.LinkToSymbols(ctx, episodeID, unitIDs); err != nil {
		return &domain.StoreError{Op: "episodic.link_to_symbols", Attempts: 1, Err: err}
	}
	return nil
}

// Cleanup deletes episodes older than retention with success_score < 0.5,
// checking ctx between items so a cancellation stops at the next episode.
func (m *Memory) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := m.clock.Now().Add(-retention)
	candidates, err := m.store.List(ctx, cutoff)
	if err != nil {
		return 0, &domain.StoreError{Op: "episodic.cleanup.list", Attempts: 1, Err: err}
	}

	removed := 0
	for _, e := range candidates {
		select {
		case <-ctx.Done():
			return removed, nil
		default:
		}
		if e.SuccessScore >= 0.5 {
			continue
		}
		if err := m.store.Delete(ctx, e.ID); err != nil {
			m.logger.Warn("episodic cleanup: delete failed",
				zap.String("episode_id", e.ID.String()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Forget deletes episodes where pattern_value < threshold AND
// access_count = 0 AND age > retention, checking ctx between items.
// Core memory, units and patterns are never touched here.
func (m *Memory) Forget(ctx context.Context, threshold float32, retention time.Duration) (int, error) {
	cutoff := m.clock.Now().Add(-retention)
	candidates, err := m.store.List(ctx, cutoff)
	if err != nil {
		return 0, &domain.StoreError{Op: "episodic.forget.list", Attempts: 1, Err: err}
	}

	removed := 0
	for _, e := range candidates {
		select {
		case <-ctx.Done():
			return removed, nil
		default:
		}
		if e.PatternValue >= threshold || e.AccessCount != 0 {
			continue
		}
		if err := m.store.Delete(ctx, e.ID); err != nil {
			m.logger.Warn("forget: delete failed",
				zap.String("episode_id", e.ID.String()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Statistics reports total, successful, failed, and average success score.
func (m *Memory) Statistics(ctx context.Context) (domain.EpisodicStats, error) {
	stats, err := m.store.Count(ctx)
	if err != nil {
		return domain.EpisodicStats{}, &domain.StoreError{Op: "episodic.statistics", Attempts: 1, Err: err}
	}
	return stats, nil
}

// IncrementAccessCount bumps access_count, called by retrieve's side effect
// on every returned episode.
func (m *Memory) IncrementAccessCount(ctx context.Context, id uuid.UUID) error {
	return m.store.IncrementAccessCount(ctx, id)
}

// RaisePatternValue implements the max-over-capturing-patterns invariant.
func (m *Memory) RaisePatternValue(ctx context.Context, id uuid.UUID, newValue float32) error {
	return m.store.RaisePatternValue(ctx, id, newValue)
}

// JaccardTokens is the fallback similarity used by the manager's retrieve
// when no Embedder is configured: token-set overlap over the episode's
// reference text.
func JaccardTokens(a, b string) float64 {
	toSet := func(s string) map[string]struct{} {
		words := strings.Fields(strings.ToLower(s))
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		return set
	}
	setA, setB := toSet(a), toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
