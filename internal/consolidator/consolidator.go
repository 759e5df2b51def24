// Package consolidator implements the Consolidator: a resumable four-stage
// pipeline (Group, Summarise, Distil, Prune) that turns aging episodes into
// semantic summaries and distilled patterns.
package consolidator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cogmem/cogmem/internal/domain"
)

// Config holds the tunables Stage A-C read, mirrored from config.Consolidator.
type Config struct {
	CompressAfter      time.Duration
	GroupSimilarity    float64
	PatternWindow      time.Duration
	MinSupport         int
	RateLimitPerMinute int
}

// Consolidator runs the pipeline against an EpisodicStore/SemanticStore/
// ProceduralStore triple, optionally delegating summarization to an LLM
// Summarizer with an always-available extractive fallback.
type Consolidator struct {
	episodes   domain.EpisodicStore
	units      domain.SemanticStore
	patterns   domain.ProceduralStore
	summarizer domain.Summarizer // optional; nil means extractive-only
	extractive domain.Summarizer
	clock      domain.Clock
	ids        domain.IdGen
	logger     *zap.Logger
	cfg        Config

	limiter *rate.Limiter

	mu          sync.Mutex
	lastRun     time.Time
	stopCh      chan struct{}
	wg          sync.WaitGroup
	interval    time.Duration
	tickerBatch int
}

func New(episodes domain.EpisodicStore, units domain.SemanticStore, patterns domain.ProceduralStore,
	summarizer, extractive domain.Summarizer, clk domain.Clock, ids domain.IdGen, logger *zap.Logger, cfg Config) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	rps := float64(cfg.RateLimitPerMinute) / 60
	if rps <= 0 {
		rps = 0.1
	}
	return &Consolidator{
		episodes:   episodes,
		units:      units,
		patterns:   patterns,
		summarizer: summarizer,
		extractive: extractive,
		clock:      clk,
		ids:        ids,
		logger:     logger,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Start launches a background worker that calls RunIncremental every
// interval, bounding each tick to batch episodes. Mirrors the teacher's
// ticker + stopCh + WaitGroup shape.
func (c *Consolidator) Start(ctx context.Context, interval time.Duration, batch int) {
	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	c.interval = interval
	c.tickerBatch = batch
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		c.logger.Info("consolidation worker started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				report, err := c.RunIncremental(ctx, batch)
				if err != nil {
					c.logger.Error("consolidation tick failed", zap.Error(err))
					continue
				}
				c.logger.Info("consolidation tick complete",
					zap.Int("episodes_processed", report.EpisodesProcessed),
					zap.Int("groups_formed", report.GroupsFormed),
					zap.Int("patterns_created_or_updated", report.PatternsCreatedOrUpdated))
			}
		}
	}()
}

// Stop halts the background worker and waits for it to exit.
func (c *Consolidator) Stop() {
	c.mu.Lock()
	if c.stopCh == nil {
		c.mu.Unlock()
		return
	}
	close(c.stopCh)
	c.mu.Unlock()
	c.wg.Wait()
	c.mu.Lock()
	c.stopCh = nil
	c.mu.Unlock()
}

// Run executes the full pipeline over every episode, unbounded.
func (c *Consolidator) Run(ctx context.Context) (domain.ConsolidationReport, error) {
	return c.run(ctx, 0)
}

// RunIncremental executes the pipeline capped to the oldest `batch`
// qualifying episodes, rate-limited per spec.md §5 backpressure.
func (c *Consolidator) RunIncremental(ctx context.Context, batch int) (domain.ConsolidationReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ConsolidationReport{}, err
	}
	return c.run(ctx, batch)
}

// Dream runs only Stage C (pattern extraction) and returns the resulting
// pattern ids.
func (c *Consolidator) Dream(ctx context.Context) ([]uuid.UUID, error) {
	now := c.clock.Now()
	episodes, err := c.episodes.List(ctx, time.Time{})
	if err != nil {
		return nil, &domain.StoreError{Op: "consolidator.dream.list", Attempts: 1, Err: err}
	}
	windowed := filterWithinWindow(episodes, now.Add(-c.cfg.PatternWindow))
	_, ids, err := c.distil(ctx, windowed)
	return ids, err
}

func (c *Consolidator) run(ctx context.Context, batch int) (domain.ConsolidationReport, error) {
	start := c.clock.Now()
	report := domain.ConsolidationReport{}

	all, err := c.episodes.List(ctx, time.Time{})
	if err != nil {
		return report, &domain.StoreError{Op: "consolidator.run.list", Attempts: 1, Err: err}
	}

	cutoff := start.Add(-c.cfg.CompressAfter)
	candidates := filterUnconsolidated(filterOlderThan(all, cutoff))
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	if batch > 0 && len(candidates) > batch {
		candidates = candidates[:batch]
	}
	report.EpisodesProcessed = len(candidates)

	groups := c.group(candidates)
	report.GroupsFormed = len(groups)

	written, err := c.summarise(ctx, groups)
	report.SummariesWritten = written
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	windowed := filterWithinWindow(all, start.Add(-c.cfg.PatternWindow))
	n, _, err := c.distil(ctx, windowed)
	report.PatternsCreatedOrUpdated = n
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	// Stage D (Prune) defaults to a no-op: episode deletion only happens
	// via the manager's explicit forget(), never as a side effect of
	// consolidate().
	report.EpisodesPruned = 0

	if ctx.Err() != nil {
		report.Cancelled = true
	}

	c.mu.Lock()
	c.lastRun = c.clock.Now()
	c.mu.Unlock()

	report.DurationMs = c.clock.Now().Sub(start).Milliseconds()
	return report, nil
}

func (c *Consolidator) LastRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

// filterOlderThan returns episodes created before cutoff, used by Stage A
// (Group), which only compresses episodes past compress_age.
func filterOlderThan(episodes []domain.Episode, cutoff time.Time) []domain.Episode {
	var out []domain.Episode
	for _, e := range episodes {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// filterWithinWindow returns episodes created at or after cutoff, used by
// Stage C (Distil), which scans the last pattern_window of activity.
func filterWithinWindow(episodes []domain.Episode, cutoff time.Time) []domain.Episode {
	var out []domain.Episode
	for _, e := range episodes {
		if !e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// filterUnconsolidated drops episodes whose pattern_value has already been
// raised by a prior Stage C pass. A raised pattern_value means consolidation
// has already found this episode inside a pattern, so Stage A/B have
// nothing new to do with it; this is what makes a repeat run with no new
// writes report groups_formed = 0 and summaries_written = 0.
func filterUnconsolidated(episodes []domain.Episode) []domain.Episode {
	var out []domain.Episode
	for _, e := range episodes {
		if e.PatternValue == 0 {
			out = append(out, e)
		}
	}
	return out
}

// group implements Stage A: union-find clustering by embedding cosine >=
// GroupSimilarity, or (lacking embeddings) file-path Jaccard >= 0.5 with
// matching episode type.
func (c *Consolidator) group(episodes []domain.Episode) [][]domain.Episode {
	if len(episodes) == 0 {
		return nil
	}
	uf := newUnionFind(len(episodes))
	for i := 0; i < len(episodes); i++ {
		for j := i + 1; j < len(episodes); j++ {
			if c.similarEnough(episodes[i], episodes[j]) {
				uf.union(i, j)
			}
		}
	}
	var groups [][]domain.Episode
	for _, members := range uf.groups() {
		g := make([]domain.Episode, len(members))
		for i, idx := range members {
			g[i] = episodes[idx]
		}
		groups = append(groups, g)
	}
	return groups
}

func (c *Consolidator) similarEnough(a, b domain.Episode) bool {
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		return cosineSimilarity(a.Embedding, b.Embedding) >= c.cfg.GroupSimilarity
	}
	return a.EpisodeType == b.EpisodeType && jaccardPaths(a.FilesTouched, b.FilesTouched) >= 0.5
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

func jaccardPaths(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, x := range a {
		setA[x] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, x := range b {
		setB[x] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for x := range setA {
		if _, ok := setB[x]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// summarise implements Stage B: build one SemanticUnit per group of size
// >= 2, with an extractive summary, optionally replaced by the configured
// Summarizer (whose failure falls back to extractive).
func (c *Consolidator) summarise(ctx context.Context, groups [][]domain.Episode) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	written := make([]int32, len(groups))

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			summaryText, err := c.buildSummary(gctx, group)
			if err != nil {
				c.logger.Warn("group summary failed", zap.Error(err))
				return nil
			}
			unit := extractiveUnit(group, summaryText)
			unit.ID = c.ids.NewID()
			now := c.clock.Now()
			unit.CreatedAt, unit.UpdatedAt = now, now
			if err := unit.Validate(); err != nil {
				return nil
			}
			if err := c.units.UpsertUnit(gctx, &unit); err != nil {
				c.logger.Warn("group summary upsert failed", zap.Error(err))
				return nil
			}
			written[i] = 1
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, w := range written {
		total += int(w)
	}
	return total, nil
}

func (c *Consolidator) buildSummary(ctx context.Context, group []domain.Episode) (string, error) {
	texts := make([]string, len(group))
	for i, e := range group {
		texts[i] = e.TaskDescription
	}
	if c.summarizer != nil {
		if text, err := c.summarizer.Summarize(ctx, texts); err == nil {
			return text, nil
		}
		c.logger.Warn("llm summarizer failed, falling back to extractive")
	}
	return c.extractive.Summarize(ctx, texts)
}

func extractiveUnit(group []domain.Episode, summary string) domain.SemanticUnit {
	fileSet := make(map[string]struct{})
	toolSet := make(map[string]struct{})
	var successSum float64
	var tokenSum int64
	var projectID uuid.UUID
	for _, e := range group {
		projectID = e.ProjectID
		for _, f := range e.FilesTouched {
			fileSet[f] = struct{}{}
		}
		for _, tu := range e.ToolsUsed {
			toolSet[tu.Tool] = struct{}{}
		}
		successSum += float64(e.SuccessScore)
		tokenSum += int64(e.TokensUsed)
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)

	avgTokens := tokenSum / int64(len(group))
	avgSuccess := successSum / float64(len(group))

	qname := fmt.Sprintf("consolidated/%s", summary)
	if len(qname) > 120 {
		qname = qname[:120]
	}

	return domain.SemanticUnit{
		ProjectID:     projectID,
		UnitType:      domain.UnitModule,
		Name:          summary,
		QualifiedName: qname,
		FilePath:      strings.Join(files, ","),
		Summary:       summary,
		Purpose: fmt.Sprintf("consolidated from %d episodes, avg success %.2f, avg tokens %d",
			len(group), avgSuccess, avgTokens),
	}
}

var shingleWordRe = regexp.MustCompile(`[a-z0-9]+`)

// normalizeShingles lowercases, tokenizes and builds sorted 3-word shingles
// so the grouping key is agent-independent and order-insensitive to
// superficial phrasing differences.
func normalizeShingles(text string) string {
	words := shingleWordRe.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return ""
	}
	var shingles []string
	const n = 3
	if len(words) < n {
		shingles = []string{strings.Join(words, " ")}
	} else {
		for i := 0; i+n <= len(words); i++ {
			shingles = append(shingles, strings.Join(words[i:i+n], " "))
		}
	}
	sort.Strings(shingles)
	return strings.Join(shingles, "|")
}

// distil implements Stage C: frequency pass over task_description shingles,
// yielding or updating a Pattern for every group with >= MinSupport
// successes.
func (c *Consolidator) distil(ctx context.Context, episodes []domain.Episode) (int, []uuid.UUID, error) {
	groups := make(map[string][]domain.Episode)
	for _, e := range episodes {
		key := normalizeShingles(e.TaskDescription)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], e)
	}

	var keys []string
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	touched := 0
	var ids []uuid.UUID
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		members := groups[key]
		succeeded := 0
		for _, e := range members {
			if e.Outcome == domain.OutcomeSuccess {
				succeeded++
			}
		}
		if succeeded < c.cfg.MinSupport {
			continue
		}

		supporting := make([]uuid.UUID, 0, len(members))
		for _, e := range members {
			supporting = append(supporting, e.ID)
		}
		successRate := float64(succeeded) / float64(len(members))

		existing, err := c.patterns.FindByContext(ctx, members[0].TaskDescription, 1)
		now := c.clock.Now()
		if err == nil && len(existing) > 0 {
			p := existing[0]
			p.SupportingEpisodeIDs = unionIDs(p.SupportingEpisodeIDs, supporting)
			p.TimesApplied = len(p.SupportingEpisodeIDs)
			p.TimesSucceeded = succeeded
			p.RecomputeSuccessRate()
			p.Confidence = successRate * math.Min(1, float64(succeeded)/10)
			p.UpdatedAt = now
			if err := c.patterns.Update(ctx, &p); err == nil {
				touched++
				ids = append(ids, p.ID)
				c.raisePatternValue(ctx, supporting, p.Confidence)
			}
			continue
		}

		p := domain.Pattern{
			ID:                   c.ids.NewID(),
			PatternType:          domain.PatternCode,
			Name:                 members[0].TaskDescription,
			Description:          members[0].SolutionSummary,
			Context:              members[0].TaskDescription,
			SupportingEpisodeIDs: supporting,
			TimesApplied:         len(members),
			TimesSucceeded:       succeeded,
			Confidence:           successRate * math.Min(1, float64(succeeded)/10),
			LastAppliedAt:        &now,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		p.RecomputeSuccessRate()
		if err := p.Validate(); err != nil {
			continue
		}
		if err := c.patterns.Create(ctx, &p); err == nil {
			touched++
			ids = append(ids, p.ID)
			c.raisePatternValue(ctx, supporting, p.Confidence)
		}
	}
	return touched, ids, nil
}

// raisePatternValue marks every episode a pattern just captured, per
// spec.md §3: pattern_value is raised when consolidation finds the episode
// inside a pattern. RaisePatternValue takes the max against the episode's
// current value at the store layer, so an episode captured by several
// patterns (across this run or prior ones) ends up with the highest
// confidence among all patterns that captured it.
func (c *Consolidator) raisePatternValue(ctx context.Context, episodeIDs []uuid.UUID, value float32) {
	for _, id := range episodeIDs {
		if err := c.episodes.RaisePatternValue(ctx, id, value); err != nil {
			c.logger.Warn("raise pattern value failed", zap.Error(err), zap.String("episode_id", id.String()))
		}
	}
}

func unionIDs(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
