// Package procedural implements ProceduralMemory: record_solution, apply,
// suggest over a domain.ProceduralStore, with a pluggable context-similarity
// function (embedding cosine when an Embedder is configured, else Jaccard
// over tokens).
package procedural

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/domain"
)

// DefaultContextMatchThreshold is the similarity above which record_solution
// treats two contexts as "the same procedure", grounded on the teacher's
// procedure-matching threshold (0.75) for its nearest analogue.
const DefaultContextMatchThreshold = 0.75

// ContextSimilarity scores how alike two free-text contexts are, in [0,1].
type ContextSimilarity func(a, b string) float64

// JaccardContext is the default ContextSimilarity when no Embedder is
// configured: token-set overlap.
func JaccardContext(a, b string) float64 {
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

// Memory is the ProceduralMemory component.
type Memory struct {
	store             domain.ProceduralStore
	embedder          domain.Embedder // optional
	similarity        ContextSimilarity
	matchThreshold    float64
	initialConfidence float64
	clock             domain.Clock
	idgen             domain.IdGen
	logger            *zap.Logger
}

type Option func(*Memory)

func WithMatchThreshold(t float64) Option { return func(m *Memory) { m.matchThreshold = t } }

func WithSimilarity(fn ContextSimilarity) Option { return func(m *Memory) { m.similarity = fn } }

func New(store domain.ProceduralStore, embedder domain.Embedder, initialConfidence float64, clk domain.Clock, ids domain.IdGen, logger *zap.Logger, opts ...Option) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Memory{
		store:             store,
		embedder:          embedder,
		matchThreshold:    DefaultContextMatchThreshold,
		initialConfidence: initialConfidence,
		clock:             clk,
		idgen:             ids,
		logger:            logger,
	}
	if embedder != nil {
		m.similarity = m.embeddingSimilarity
	} else {
		m.similarity = JaccardContext
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) embeddingSimilarity(a, b string) float64 {
	ctx := context.Background()
	va, err := m.embedder.Embed(ctx, a)
	if err != nil {
		return JaccardContext(a, b)
	}
	vb, err := m.embedder.Embed(ctx, b)
	if err != nil {
		return JaccardContext(a, b)
	}
	return cosine(va, vb)
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *Memory) bestMatch(ctx context.Context, queryContext string) (*domain.Pattern, error) {
	all, err := m.store.All(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "procedural.match", Attempts: 1, Err: err}
	}
	var best *domain.Pattern
	bestScore := 0.0
	for i := range all {
		score := m.similarity(queryContext, all[i].Context)
		if score >= m.matchThreshold && score > bestScore {
			bestScore = score
			best = &all[i]
		}
	}
	return best, nil
}

// RecordSolution implements record_solution: creates a new Pattern unless
// an existing one matches context within threshold, in which case the
// episode is folded into the match and its counters bumped.
func (m *Memory) RecordSolution(ctx context.Context, episodeID uuid.UUID, taskContext, solutionText string) (uuid.UUID, error) {
	match, err := m.bestMatch(ctx, taskContext)
	if err != nil {
		return uuid.Nil, err
	}
	now := m.clock.Now()

	if match == nil {
		p := &domain.Pattern{
			ID:                   m.idgen.NewID(),
			PatternType:          domain.PatternCode,
			Name:                 truncate(solutionText, 80),
			Description:          solutionText,
			Context:              taskContext,
			SupportingEpisodeIDs: []uuid.UUID{episodeID},
			TimesApplied:         1,
			TimesSucceeded:       1,
			Confidence:           m.initialConfidence,
			LastAppliedAt:        &now,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		p.RecomputeSuccessRate()
		if err := p.Validate(); err != nil {
			return uuid.Nil, err
		}
		if err := m.store.Create(ctx, p); err != nil {
			return uuid.Nil, &domain.StoreError{Op: "procedural.record_solution.create", Attempts: 1, Err: err}
		}
		return p.ID, nil
	}

	match.SupportingEpisodeIDs = append(match.SupportingEpisodeIDs, episodeID)
	match.TimesApplied++
	match.TimesSucceeded++
	match.RecomputeSuccessRate()
	match.LastAppliedAt = &now
	match.UpdatedAt = now
	if err := m.store.Update(ctx, match); err != nil {
		return uuid.Nil, &domain.StoreError{Op: "procedural.record_solution.update", Attempts: 1, Err: err}
	}
	return match.ID, nil
}

// Remember writes or updates p directly, bypassing the context-matching
// path record_solution uses. Used when a caller already has a
// fully-formed Pattern to persist (e.g. CognitiveManager.RememberPattern).
func (m *Memory) Remember(ctx context.Context, p *domain.Pattern) error {
	if p.ID == uuid.Nil {
		p.ID = m.idgen.NewID()
	}
	now := m.clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := m.store.GetByID(ctx, p.ID); err == nil {
		if err := m.store.Update(ctx, p); err != nil {
			return &domain.StoreError{Op: "procedural.remember.update", Attempts: 1, Err: err}
		}
		return nil
	}
	if err := m.store.Create(ctx, p); err != nil {
		return &domain.StoreError{Op: "procedural.remember.create", Attempts: 1, Err: err}
	}
	return nil
}

// Apply implements apply(pattern_id, succeeded).
func (m *Memory) Apply(ctx context.Context, patternID uuid.UUID, succeeded bool) error {
	p, err := m.store.GetByID(ctx, patternID)
	if err != nil {
		return err
	}
	p.TimesApplied++
	if succeeded {
		p.TimesSucceeded++
	}
	p.RecomputeSuccessRate()
	now := m.clock.Now()
	p.LastAppliedAt = &now
	p.UpdatedAt = now
	if err := m.store.Update(ctx, p); err != nil {
		return &domain.StoreError{Op: "procedural.apply", Attempts: 1, Err: err}
	}
	return nil
}

// Suggest returns the top-k patterns matching context, ranked by
// success_rate * log(1+times_applied); equal scores are ordered by the most
// recent last_applied_at (created_at when never applied).
func (m *Memory) Suggest(ctx context.Context, queryContext string, k int) ([]domain.Pattern, error) {
	all, err := m.store.All(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "procedural.suggest", Attempts: 1, Err: err}
	}

	type scored struct {
		p     domain.Pattern
		score float64
	}
	var hits []scored
	for _, p := range all {
		if m.similarity(queryContext, p.Context) < m.matchThreshold {
			continue
		}
		hits = append(hits, scored{p: p, score: p.SuccessRate * math.Log(1+float64(p.TimesApplied))})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		ti, tj := hits[i].p.CreatedAt, hits[j].p.CreatedAt
		if hits[i].p.LastAppliedAt != nil {
			ti = *hits[i].p.LastAppliedAt
		}
		if hits[j].p.LastAppliedAt != nil {
			tj = *hits[j].p.LastAppliedAt
		}
		return ti.After(tj)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Pattern, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

func (m *Memory) Statistics(ctx context.Context) (domain.ProceduralStats, error) {
	return m.store.Stats(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
