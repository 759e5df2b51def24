package consolidator_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cogmem/cogmem/internal/clock"
	"github.com/cogmem/cogmem/internal/consolidator"
	"github.com/cogmem/cogmem/internal/domain"
	"github.com/cogmem/cogmem/internal/idgen"
	"github.com/cogmem/cogmem/internal/memstore"
	"github.com/cogmem/cogmem/internal/summarizer"
)

func newConsolidator(episodes domain.EpisodicStore, units domain.SemanticStore, patterns domain.ProceduralStore, mc domain.Clock) *consolidator.Consolidator {
	return consolidator.New(episodes, units, patterns, nil, summarizer.NewExtractive(), mc, idgen.NewSequence(), nil, consolidator.Config{
		CompressAfter:      30 * 24 * time.Hour,
		GroupSimilarity:    0.85,
		PatternWindow:      90 * 24 * time.Hour,
		MinSupport:         3,
		RateLimitPerMinute: 6,
	})
}

func TestLifecycleProcessesAllOldEpisodes(t *testing.T) {
	ctx := context.Background()
	episodeStore := memstore.NewEpisodic()
	unitStore := memstore.NewSemantic()
	patternStore := memstore.NewProcedural()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	project := uuid.New()
	for i := 0; i < 150; i++ {
		outcome := domain.OutcomeFailure
		if i%3 == 0 {
			outcome = domain.OutcomeSuccess
		}
		e := &domain.Episode{
			ID:              uuid.New(),
			CreatedAt:       mc.Now().Add(-40 * 24 * time.Hour),
			AgentID:         uuid.New(),
			ProjectID:       project,
			TaskDescription: "varied task",
			SolutionSummary: "varied solution",
			EpisodeType:     domain.EpisodeTask,
			Outcome:         outcome,
			SuccessScore:    domain.SuccessScore(outcome),
		}
		if err := episodeStore.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	c := newConsolidator(episodeStore, unitStore, patternStore, mc)
	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.EpisodesProcessed != 150 {
		t.Errorf("episodes_processed = %d, want 150", report.EpisodesProcessed)
	}

	stats, err := episodeStore.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if stats.Total != 150 {
		t.Errorf("store still reports %d episodes, want 150 (consolidate must not delete)", stats.Total)
	}

	again, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.GroupsFormed != 0 {
		t.Errorf("second run groups_formed = %d, want 0 (no new writes since first run)", again.GroupsFormed)
	}
	if again.SummariesWritten != 0 {
		t.Errorf("second run summaries_written = %d, want 0 (no new writes since first run)", again.SummariesWritten)
	}
}

// TestRepeatConsolidateWithNoNewWritesIsIdempotent exercises spec.md §8's
// idempotence property directly: episodes old enough for Stage A and
// recent enough for Stage C's pattern window get grouped, summarised and
// distilled once; a second run with nothing new added must find no
// further groups or summaries because Stage A's candidate filter now
// excludes episodes distil already captured into a pattern.
func TestRepeatConsolidateWithNoNewWritesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	episodeStore := memstore.NewEpisodic()
	unitStore := memstore.NewSemantic()
	patternStore := memstore.NewProcedural()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	project := uuid.New()
	for i := 0; i < 5; i++ {
		e := &domain.Episode{
			ID:              uuid.New(),
			CreatedAt:       mc.Now().Add(-40 * 24 * time.Hour),
			AgentID:         uuid.New(),
			ProjectID:       project,
			TaskDescription: "extract helper function from the login handler",
			SolutionSummary: "extract helper; add test; reformat",
			EpisodeType:     domain.EpisodeRefactor,
			FilesTouched:    []string{"login.go"},
			Outcome:         domain.OutcomeSuccess,
			SuccessScore:    domain.SuccessScore(domain.OutcomeSuccess),
		}
		if err := episodeStore.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	c := newConsolidator(episodeStore, unitStore, patternStore, mc)

	first, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.GroupsFormed == 0 {
		t.Fatalf("first run groups_formed = 0, want > 0")
	}
	if first.SummariesWritten == 0 {
		t.Fatalf("first run summaries_written = 0, want > 0")
	}
	if first.PatternsCreatedOrUpdated == 0 {
		t.Fatalf("first run patterns_created_or_updated = 0, want > 0")
	}

	all, err := episodeStore.List(ctx, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, e := range all {
		if e.PatternValue == 0 {
			t.Errorf("episode %s pattern_value not raised after first run", e.ID)
		}
	}

	second, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.GroupsFormed != 0 {
		t.Errorf("second run groups_formed = %d, want 0", second.GroupsFormed)
	}
	if second.SummariesWritten != 0 {
		t.Errorf("second run summaries_written = %d, want 0", second.SummariesWritten)
	}
}

func TestDistillationProducesOnePatternFromFourSuccesses(t *testing.T) {
	ctx := context.Background()
	episodeStore := memstore.NewEpisodic()
	unitStore := memstore.NewSemantic()
	patternStore := memstore.NewProcedural()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 4; i++ {
		e := &domain.Episode{
			ID:              uuid.New(),
			CreatedAt:       mc.Now().Add(-1 * time.Hour),
			AgentID:         uuid.New(),
			ProjectID:       uuid.New(),
			TaskDescription: "extract helper function from the login handler",
			SolutionSummary: "extract helper; add test; reformat",
			EpisodeType:     domain.EpisodeRefactor,
			Outcome:         domain.OutcomeSuccess,
			SuccessScore:    domain.SuccessScore(domain.OutcomeSuccess),
		}
		if err := episodeStore.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	c := newConsolidator(episodeStore, unitStore, patternStore, mc)
	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.PatternsCreatedOrUpdated != 1 {
		t.Fatalf("patterns_created_or_updated = %d, want 1", report.PatternsCreatedOrUpdated)
	}

	all, err := patternStore.All(ctx)
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

	again, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.GroupsFormed != 0 {
		t.Errorf("second run groups_formed = %d, want 0", again.GroupsFormed)
	}
	if again.SummariesWritten != 0 {
		t.Errorf("second run summaries_written = %d, want 0", again.SummariesWritten)
	}
}

func TestDreamRunsOnlyPatternExtraction(t *testing.T) {
	ctx := context.Background()
	episodeStore := memstore.NewEpisodic()
	unitStore := memstore.NewSemantic()
	patternStore := memstore.NewProcedural()
	mc := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		e := &domain.Episode{
			ID:              uuid.New(),
			CreatedAt:       mc.Now(),
			AgentID:         uuid.New(),
			ProjectID:       uuid.New(),
			TaskDescription: "add caching layer to the query path",
			SolutionSummary: "introduced an LRU cache",
			EpisodeType:     domain.EpisodeFeature,
			Outcome:         domain.OutcomeSuccess,
			SuccessScore:    domain.SuccessScore(domain.OutcomeSuccess),
		}
		if err := episodeStore.Create(ctx, e); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	c := newConsolidator(episodeStore, unitStore, patternStore, mc)
	ids, err := c.Dream(ctx)
	if err != nil {
		t.Fatalf("dream: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("dream returned %d pattern ids, want 1", len(ids))
	}
	if _, err := patternStore.GetByID(ctx, ids[0]); err != nil {
		t.Errorf("pattern id did not round-trip through the store: %v", err)
	}

	units, err := unitStore.AllUnits(ctx, uuid.Nil)
	if err != nil {
		t.Fatalf("all_units: %v", err)
	}
	if len(units) != 0 {
		t.Errorf("dream must not write semantic units, got %d", len(units))
	}
}
