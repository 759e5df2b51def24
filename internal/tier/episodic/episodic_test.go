package episodic_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/clock"
	"github.com/cogmem/cogmem/internal/domain"
	"github.com/cogmem/cogmem/internal/memstore"
	"github.com/cogmem/cogmem/internal/tier/episodic"
)

func newEpisode(task, summary string, outcome domain.Outcome, createdAt time.Time) *domain.Episode {
	return &domain.Episode{
		ID:               uuid.New(),
		CreatedAt:        createdAt,
		AgentID:          uuid.New(),
		ProjectID:        uuid.New(),
		TaskDescription:  task,
		SolutionSummary:  summary,
		EpisodeType:      domain.EpisodeBugfix,
		Outcome:          outcome,
		SuccessScore:     domain.SuccessScore(outcome),
		FilesTouched:     []string{"auth.go"},
		EntitiesModified: []string{"auth.go"},
	}
}

func TestTokenizeFiltersShortWords(t *testing.T) {
	toks := episodic.Tokenize("fix the auth bug in session handling")
	want := map[string]bool{"auth": true, "session": true, "handling": true}
	for _, tok := range toks {
		if len(tok) <= 3 {
			t.Errorf("token %q should have been filtered (length <= 3)", tok)
		}
	}
	for w := range want {
		found := false
		for _, tok := range toks {
			if tok == w {
				found = true
			}
		}
		if !found {
			t.Errorf("expected token %q in %v", w, toks)
		}
	}
}

func TestFindByKeywordRanksByHitCountThenRecency(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEpisodic()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := episodic.New(store, nil, mc, nil)

	a := newEpisode("fix auth bug in login handler", "patched", domain.OutcomeSuccess, mc.Now())
	mc.Advance(time.Hour)
	b := newEpisode("fix auth bug", "patched minimal", domain.OutcomeSuccess, mc.Now())
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("create b: %v", err)
	}

	results, err := mem.FindByKeyword(ctx, "fix auth bug login handler", 10)
	if err != nil {
		t.Fatalf("find_by_keyword: %v", err)
	}
	if len(results) != 2 || results[0].ID != a.ID {
		t.Fatalf("expected a ranked first (more distinct token hits), got %+v", results)
	}
}

func TestCleanupDeletesOldLowSuccessOnly(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewEpisodic()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	mem := episodic.New(store, nil, mc, nil)

	old := newEpisode("old failing task", "", domain.OutcomeFailure, mc.Now().Add(-60*24*time.Hour))
	recent := newEpisode("recent failing task", "", domain.OutcomeFailure, mc.Now().Add(-1*time.Hour))
	oldSuccess := newEpisode("old succeeding task", "", domain.OutcomeSuccess, mc.Now().Add(-60*24*time.Hour))

	for _, e := range []*domain.Episode{old, recent, oldSuccess} {
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	removed, err := mem.Cleanup(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := store.GetByID(ctx, old.ID); err != domain.ErrNotFound {
		t.Errorf("expected old failing episode deleted")
	}
	if _, err := store.GetByID(ctx, recent.ID); err != nil {
		t.Errorf("expected recent episode retained: %v", err)
	}
	if _, err := store.GetByID(ctx, oldSuccess.ID); err != nil {
		t.Errorf("expected old successful episode retained: %v", err)
	}
}
