package semantic_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/domain"
	"github.com/cogmem/cogmem/internal/memstore"
	"github.com/cogmem/cogmem/internal/tier/semantic"
)

func unit(projectID uuid.UUID, name string) *domain.SemanticUnit {
	return &domain.SemanticUnit{
		ID:            uuid.New(),
		ProjectID:     projectID,
		UnitType:      domain.UnitFunction,
		Name:          name,
		QualifiedName: name,
		FilePath:      name + ".go",
	}
}

func TestFindCyclesReportsEachCycleOnce(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSemantic()
	mem := semantic.New(store, nil, nil)
	project := uuid.New()

	u1, u2, u3, u4 := unit(project, "u1"), unit(project, "u2"), unit(project, "u3"), unit(project, "u4")
	for _, u := range []*domain.SemanticUnit{u1, u2, u3, u4} {
		if err := store.UpsertUnit(ctx, u); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	edges := [][2]*domain.SemanticUnit{{u1, u2}, {u2, u3}, {u3, u1}}
	for _, e := range edges {
		d := &domain.Dependency{ID: uuid.New(), SourceID: e[0].ID, TargetID: e[1].ID, DependencyType: domain.DependencyCalls}
		if err := store.AddDependency(ctx, d); err != nil {
			t.Fatalf("add_dependency: %v", err)
		}
	}

	cycles, err := mem.FindCycles(ctx, project)
	if err != nil {
		t.Fatalf("find_cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("cycles = %d, want 1", len(cycles))
	}
	if len(cycles[0].UnitIDs) != 3 {
		t.Fatalf("cycle length = %d, want 3", len(cycles[0].UnitIDs))
	}
	if cycles[0].Severity != domain.CycleLow {
		t.Errorf("severity = %v, want Low", cycles[0].Severity)
	}

	for _, d := range []*domain.Dependency{
		{ID: uuid.New(), SourceID: u4.ID, TargetID: u1.ID, DependencyType: domain.DependencyCalls},
		{ID: uuid.New(), SourceID: u1.ID, TargetID: u4.ID, DependencyType: domain.DependencyCalls},
	} {
		if err := store.AddDependency(ctx, d); err != nil {
			t.Fatalf("add_dependency: %v", err)
		}
	}

	cycles, err = mem.FindCycles(ctx, project)
	if err != nil {
		t.Fatalf("find_cycles: %v", err)
	}
	if len(cycles) != 2 {
		t.Fatalf("cycles = %d, want 2 after adding u4 edges", len(cycles))
	}
}

func TestImpactOfReverseReachabilityAndRiskScore(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSemantic()
	mem := semantic.New(store, nil, nil)
	project := uuid.New()

	units := make([]*domain.SemanticUnit, 10)
	for i := range units {
		units[i] = unit(project, string(rune('a'+i)))
		if err := store.UpsertUnit(ctx, units[i]); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	// u1..u4 depend (transitively) on u0; u5..u9 are unrelated.
	chain := [][2]int{{1, 0}, {2, 1}, {3, 2}, {4, 3}}
	for _, e := range chain {
		d := &domain.Dependency{ID: uuid.New(), SourceID: units[e[0]].ID, TargetID: units[e[1]].ID, DependencyType: domain.DependencyCalls}
		if err := store.AddDependency(ctx, d); err != nil {
			t.Fatalf("add_dependency: %v", err)
		}
	}

	result, err := mem.ImpactOf(ctx, []uuid.UUID{units[0].ID})
	if err != nil {
		t.Fatalf("impact_of: %v", err)
	}
	if len(result.Affected) != 4 {
		t.Fatalf("affected = %d, want 4, got %+v", len(result.Affected), result.Affected)
	}
	if result.RiskScore != 0.04 {
		t.Errorf("risk_score = %f, want 0.04", result.RiskScore)
	}
	if len(result.CriticalPath) == 0 {
		t.Errorf("expected a non-empty critical path")
	}
}

func TestSearchSimilarAppliesBonusesAndClamps(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSemantic()
	mem := semantic.New(store, nil, nil)
	project := uuid.New()

	cov := float32(1.0)
	u := unit(project, "well_tested")
	u.Embedding = []float32{1, 0, 0}
	u.HasDocumentation = true
	u.HasTests = true
	u.TestCoverage = &cov
	if err := store.UpsertUnit(ctx, u); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := mem.SearchSimilar(ctx, []float32{1, 0, 0}, 10, 0.7)
	if err != nil {
		t.Fatalf("search_similar: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("score = %f, want 1.0 (clamped from 1.0+0.1+0.1+0.2)", results[0].Score)
	}
}
