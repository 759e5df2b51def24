// Package memstore implements domain's store capabilities entirely
// in-memory, for tests and for the cmd/cogmem demo. Its shape mirrors the
// teacher's hand-rolled mock stores (internal/service/*_test.go in the
// teacher repo) rather than its production pgx stores.
package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/domain"
)

// Episodic is an in-memory domain.EpisodicStore. Safe for concurrent use.
type Episodic struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.Episode
	symbols  map[uuid.UUID][]uuid.UUID // episode id -> linked unit ids
}

func NewEpisodic() *Episodic {
	return &Episodic{
		byID:    make(map[uuid.UUID]*domain.Episode),
		symbols: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *Episodic) Create(_ context.Context, e *domain.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.byID[e.ID] = &cp
	return nil
}

func (s *Episodic) GetByID(_ context.Context, id uuid.UUID) (*domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func cosineSimilarity(a, b []float32) float64 {
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

func (s *Episodic) FindSimilar(_ context.Context, queryVec []float32, k int, minSuccessScore float32) ([]domain.EpisodeWithScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVec) == 0 {
		return nil, nil
	}

	var candidates []domain.EpisodeWithScore
	for _, e := range s.byID {
		if e.SuccessScore < minSuccessScore || len(e.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, domain.EpisodeWithScore{
			Episode: *e,
			Score:   cosineSimilarity(queryVec, e.Embedding),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (s *Episodic) FindByKeyword(_ context.Context, tokens []string, k int) ([]domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		e     domain.Episode
		count int
	}
	var hits []hit
	for _, e := range s.byID {
		haystack := strings.ToLower(e.TaskDescription + " " + e.SolutionSummary)
		count := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, strings.ToLower(tok)) {
				count++
			}
		}
		if count > 0 {
			hits = append(hits, hit{e: *e, count: count})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return hits[i].e.CreatedAt.After(hits[j].e.CreatedAt)
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	out := make([]domain.Episode, len(hits))
	for i, h := range hits {
		out[i] = h.e
	}
	return out, nil
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	for _, x := range b {
		if _, ok := set[x]; ok {
			return true
		}
	}
	return false
}

func (s *Episodic) FindByEntities(_ context.Context, paths []string, k int) ([]domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Episode
	for _, e := range s.byID {
		if intersects(e.FilesTouched, paths) || intersects(e.EntitiesModified, paths) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessScore != out[j].SuccessScore {
			return out[i].SuccessScore > out[j].SuccessScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Episodic) FindByFilesTouched(_ context.Context, files []string, excludeID uuid.UUID, k int) ([]domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Episode
	for _, e := range s.byID {
		if e.ID == excludeID {
			continue
		}
		if e.SuccessScore < 0.5 {
			continue
		}
		if intersects(e.FilesTouched, files) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Episodic) List(_ context.Context, olderThan time.Time) ([]domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Episode
	for _, e := range s.byID {
		if olderThan.IsZero() || e.CreatedAt.Before(olderThan) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Episodic) IncrementAccessCount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.AccessCount++
	return nil
}

func (s *Episodic) RaisePatternValue(_ context.Context, id uuid.UUID, newValue float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if newValue > e.PatternValue {
		e.PatternValue = newValue
	}
	return nil
}

func (s *Episodic) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.symbols, id)
	return nil
}

func (s *Episodic) LinkToSymbols(_ context.Context, episodeID uuid.UUID, unitIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[episodeID]; !ok {
		return domain.ErrNotFound
	}
	s.symbols[episodeID] = append(s.symbols[episodeID], unitIDs...)
	return nil
}

func (s *Episodic) Count(_ context.Context) (domain.EpisodicStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.EpisodicStats
	var sum float64
	for _, e := range s.byID {
		stats.Total++
		sum += float64(e.SuccessScore)
		if e.Outcome == domain.OutcomeSuccess {
			stats.Successful++
		}
		if e.Outcome == domain.OutcomeFailure {
			stats.Failed++
		}
	}
	if stats.Total > 0 {
		stats.AverageSuccessRate = sum / float64(stats.Total)
	}
	return stats, nil
}
