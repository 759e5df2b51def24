package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/domain"
)

// Semantic is an in-memory domain.SemanticStore.
type Semantic struct {
	mu          sync.RWMutex
	units       map[uuid.UUID]*domain.SemanticUnit
	byQualified map[string]uuid.UUID // projectID.String()+"/"+qualifiedName -> unit id
	deps        map[uuid.UUID]*domain.Dependency
}

func NewSemantic() *Semantic {
	return &Semantic{
		units:       make(map[uuid.UUID]*domain.SemanticUnit),
		byQualified: make(map[string]uuid.UUID),
		deps:        make(map[uuid.UUID]*domain.Dependency),
	}
}

func qnameKey(projectID uuid.UUID, name string) string {
	return projectID.String() + "/" + name
}

func (s *Semantic) UpsertUnit(_ context.Context, u *domain.SemanticUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := qnameKey(u.ProjectID, u.QualifiedName)
	if existingID, ok := s.byQualified[key]; ok {
		u.ID = existingID
	}
	cp := *u
	s.units[u.ID] = &cp
	s.byQualified[key] = u.ID
	return nil
}

func (s *Semantic) GetUnit(_ context.Context, id uuid.UUID) (*domain.SemanticUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Semantic) FindByQualifiedName(_ context.Context, projectID uuid.UUID, name string) (*domain.SemanticUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byQualified[qnameKey(projectID, name)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.units[id]
	return &cp, nil
}

func (s *Semantic) UnitsInFile(_ context.Context, projectID uuid.UUID, path string) ([]domain.SemanticUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SemanticUnit
	for _, u := range s.units {
		if u.ProjectID == projectID && u.FilePath == path {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartLine < out[j].StartLine })
	return out, nil
}

func (s *Semantic) SearchSimilar(_ context.Context, queryVec []float32, k int, threshold float64) ([]domain.UnitWithScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVec) == 0 {
		return nil, nil
	}

	var out []domain.UnitWithScore
	for _, u := range s.units {
		if len(u.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVec, u.Embedding)
		if sim < threshold {
			continue
		}
		bonus := 0.0
		if u.HasDocumentation {
			bonus += 0.1
		}
		if u.HasTests {
			bonus += 0.1
		}
		if u.TestCoverage != nil {
			bonus += 0.2 * float64(*u.TestCoverage)
		}
		if u.Complexity.Cyclomatic > 10 {
			bonus -= 0.1
		}
		score := sim + bonus
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out = append(out, domain.UnitWithScore{SemanticUnit: *u, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Semantic) AllUnits(_ context.Context, projectID uuid.UUID) ([]domain.SemanticUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SemanticUnit
	for _, u := range s.units {
		if projectID == uuid.Nil || u.ProjectID == projectID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

func (s *Semantic) AddDependency(_ context.Context, d *domain.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.deps {
		if existing.SourceID == d.SourceID && existing.TargetID == d.TargetID && existing.DependencyType == d.DependencyType {
			id := existing.ID
			*existing = *d
			existing.ID = id
			return nil
		}
	}
	cp := *d
	s.deps[d.ID] = &cp
	return nil
}

func (s *Semantic) DependenciesOf(_ context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependency
	for _, d := range s.deps {
		if d.SourceID == id {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID.String() < out[j].TargetID.String() })
	return out, nil
}

func (s *Semantic) DependentsOf(_ context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependency
	for _, d := range s.deps {
		if d.TargetID == id {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID.String() < out[j].SourceID.String() })
	return out, nil
}

func (s *Semantic) AllDependencies(_ context.Context, projectID uuid.UUID) ([]domain.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dependency
	for _, d := range s.deps {
		if projectID == uuid.Nil {
			out = append(out, *d)
			continue
		}
		src, ok := s.units[d.SourceID]
		if ok && src.ProjectID == projectID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *Semantic) Stats(_ context.Context, projectID uuid.UUID) (domain.SemanticStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats domain.SemanticStats
	for _, u := range s.units {
		if projectID != uuid.Nil && u.ProjectID != projectID {
			continue
		}
		stats.UnitCount++
		if !u.HasTests {
			stats.UntestedCount++
		}
		if !u.HasDocumentation {
			stats.UndocumentedCount++
		}
	}
	deps, _ := s.AllDependencies(context.Background(), projectID)
	stats.DependencyCount = len(deps)
	return stats, nil
}
