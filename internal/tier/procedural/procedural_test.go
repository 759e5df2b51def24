package procedural_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/clock"
	"github.com/cogmem/cogmem/internal/idgen"
	"github.com/cogmem/cogmem/internal/memstore"
	"github.com/cogmem/cogmem/internal/tier/procedural"
)

func TestRecordSolutionFoldsMatchingContextsIntoOnePattern(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewProcedural()
	mc := clock.NewMock(time.Now())
	mem := procedural.New(store, nil, 0.5, mc, idgen.NewSequence(), nil)

	taskCtx := "extract helper function and add unit test"
	for i := 0; i < 4; i++ {
		if _, err := mem.RecordSolution(ctx, uuid.New(), taskCtx, "extract helper; add test; reformat"); err != nil {
			t.Fatalf("record_solution: %v", err)
		}
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("patterns = %d, want 1", len(all))
	}
	p := all[0]
	if len(p.SupportingEpisodeIDs) != 4 {
		t.Errorf("supporting_episode_ids = %d, want 4", len(p.SupportingEpisodeIDs))
	}
	if p.TimesSucceeded != 4 {
		t.Errorf("times_succeeded = %d, want 4", p.TimesSucceeded)
	}
	if p.SuccessRate != 1.0 {
		t.Errorf("success_rate = %f, want 1.0", p.SuccessRate)
	}
}

func TestApplyRecomputesSuccessRate(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewProcedural()
	mc := clock.NewMock(time.Now())
	mem := procedural.New(store, nil, 0.5, mc, idgen.NewSequence(), nil)

	id, err := mem.RecordSolution(ctx, uuid.New(), "refactor the auth module", "split into smaller functions")
	if err != nil {
		t.Fatalf("record_solution: %v", err)
	}
	if err := mem.Apply(ctx, id, false); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.TimesApplied != 2 {
		t.Errorf("times_applied = %d, want 2", p.TimesApplied)
	}
	if p.TimesSucceeded != 1 {
		t.Errorf("times_succeeded = %d, want 1", p.TimesSucceeded)
	}
	if p.SuccessRate != 0.5 {
		t.Errorf("success_rate = %f, want 0.5", p.SuccessRate)
	}
}

func TestSuggestReturnsPatternMatchingContext(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewProcedural()
	mc := clock.NewMock(time.Now())
	mem := procedural.New(store, nil, 0.5, mc, idgen.NewSequence(), nil)

	weakID, err := mem.RecordSolution(ctx, uuid.New(), "add logging to the request handler", "added structured log lines")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := 0; i < 9; i++ {
		succeeded := i%2 == 0
		if err := mem.Apply(ctx, weakID, succeeded); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if _, err := mem.RecordSolution(ctx, uuid.New(), "add logging to the request handler", "added structured log lines"); err != nil {
		t.Fatalf("record: %v", err)
	}

	results, err := mem.Suggest(ctx, "add logging to the request handler", 5)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one suggested pattern")
	}
}
