package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/domain"
)

// Procedural is an in-memory domain.ProceduralStore.
type Procedural struct {
	mu       sync.RWMutex
	patterns map[uuid.UUID]*domain.Pattern
}

func NewProcedural() *Procedural {
	return &Procedural{patterns: make(map[uuid.UUID]*domain.Pattern)}
}

func (s *Procedural) Create(_ context.Context, p *domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *Procedural) GetByID(_ context.Context, id uuid.UUID) (*domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func contextJaccard(a, b string) float64 {
	toA := strings.Fields(strings.ToLower(a))
	toB := strings.Fields(strings.ToLower(b))
	if len(toA) == 0 || len(toB) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(toA))
	for _, w := range toA {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(toB))
	for _, w := range toB {
		setB[w] = struct{}{}
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

// FindByContext ranks patterns by word-overlap similarity against query.
// The richer pluggable ContextSimilarity (embedding-based when an Embedder
// is configured) lives in internal/tier/procedural, which calls All and
// re-ranks itself when it needs more than this baseline.
func (s *Procedural) FindByContext(_ context.Context, query string, limit int) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		p     domain.Pattern
		score float64
	}
	var hits []scored
	for _, p := range s.patterns {
		sim := contextJaccard(query, p.Context)
		if sim <= 0 {
			continue
		}
		hits = append(hits, scored{p: *p, score: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].p.SuccessRate > hits[j].p.SuccessRate
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.Pattern, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

func (s *Procedural) Update(_ context.Context, p *domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	s.patterns[p.ID] = &cp
	return nil
}

func (s *Procedural) All(_ context.Context) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Procedural) Stats(_ context.Context) (domain.ProceduralStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.ProceduralStats
	var sumRate, sumConf float64
	for _, p := range s.patterns {
		stats.Count++
		sumRate += p.SuccessRate
		sumConf += p.Confidence
	}
	if stats.Count > 0 {
		stats.AverageSuccessRate = sumRate / float64(stats.Count)
		stats.AverageConfidence = sumConf / float64(stats.Count)
	}
	return stats, nil
}
