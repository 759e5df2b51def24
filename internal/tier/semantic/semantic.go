// Package semantic implements SemanticMemory: units and dependency edges,
// cycle detection via DFS with a recursion stack, and impact analysis via
// BFS over reverse edges. Both algorithms iterate nodes in a fixed sorted
// order so that results are deterministic for a given graph.
package semantic

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/domain"
)

// Memory is the SemanticMemory component.
type Memory struct {
	store    domain.SemanticStore
	embedder domain.Embedder // optional
	logger   *zap.Logger
}

func New(store domain.SemanticStore, embedder domain.Embedder, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{store: store, embedder: embedder, logger: logger}
}

// UpsertUnit writes u by qualified_name, computing an embedding from its
// purpose/summary/signature if the memory has an Embedder and u has none.
func (m *Memory) UpsertUnit(ctx context.Context, u *domain.SemanticUnit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if len(u.Embedding) == 0 && m.embedder != nil {
		text := u.Purpose
		if text == "" {
			text = u.Summary
		}
		if text == "" {
			text = u.Signature
		}
		if text != "" {
			vec, err := m.embedder.Embed(ctx, text)
			if err != nil {
				m.logger.Warn("unit embedding failed, writing without vector",
					zap.String("qualified_name", u.QualifiedName), zap.Error(err))
			} else {
				u.Embedding = vec
			}
		}
	}
	if err := m.store.UpsertUnit(ctx, u); err != nil {
		return &domain.StoreError{Op: "semantic.upsert_unit", Attempts: 1, Err: err}
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*domain.SemanticUnit, error) {
	return m.store.GetUnit(ctx, id)
}

func (m *Memory) FindByQualifiedName(ctx context.Context, projectID uuid.UUID, name string) (*domain.SemanticUnit, error) {
	return m.store.FindByQualifiedName(ctx, projectID, name)
}

func (m *Memory) UnitsInFile(ctx context.Context, projectID uuid.UUID, path string) ([]domain.SemanticUnit, error) {
	return m.store.UnitsInFile(ctx, projectID, path)
}

func (m *Memory) SearchSimilar(ctx context.Context, queryVec []float32, k int, threshold float64) ([]domain.UnitWithScore, error) {
	if threshold <= 0 {
		threshold = 0.7
	}
	out, err := m.store.SearchSimilar(ctx, queryVec, k, threshold)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.search_similar", Attempts: 1, Err: err}
	}
	return out, nil
}

func (m *Memory) AddDependency(ctx context.Context, d *domain.Dependency) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := m.store.AddDependency(ctx, d); err != nil {
		return &domain.StoreError{Op: "semantic.add_dependency", Attempts: 1, Err: err}
	}
	return nil
}

func (m *Memory) DependenciesOf(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	return m.store.DependenciesOf(ctx, id)
}

func (m *Memory) DependentsOf(ctx context.Context, id uuid.UUID) ([]domain.Dependency, error) {
	return m.store.DependentsOf(ctx, id)
}

// BuildGraph returns the forward adjacency map restricted to ids.
func (m *Memory) BuildGraph(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	adj := make(map[uuid.UUID][]uuid.UUID, len(ids))
	for _, id := range ids {
		deps, err := m.store.DependenciesOf(ctx, id)
		if err != nil {
			return nil, &domain.StoreError{Op: "semantic.build_graph", Attempts: 1, Err: err}
		}
		for _, d := range deps {
			if len(want) == 0 || want[d.TargetID] {
				adj[id] = append(adj[id], d.TargetID)
			}
		}
		sort.Slice(adj[id], func(i, j int) bool { return adj[id][i].String() < adj[id][j].String() })
	}
	return adj, nil
}

// FindCycles runs DFS with a recursion stack over every unit in the project,
// reporting each distinct cycle once as the id list from its re-entry
// point. Node and neighbor iteration order is sorted by id string so the
// result is deterministic.
func (m *Memory) FindCycles(ctx context.Context, projectID uuid.UUID) ([]domain.Cycle, error) {
	units, err := m.store.AllUnits(ctx, projectID)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.find_cycles.units", Attempts: 1, Err: err}
	}
	deps, err := m.store.AllDependencies(ctx, projectID)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.find_cycles.deps", Attempts: 1, Err: err}
	}

	adj := make(map[uuid.UUID][]uuid.UUID)
	nodes := make([]uuid.UUID, 0, len(units))
	for _, u := range units {
		nodes = append(nodes, u.ID)
	}
	for _, d := range deps {
		adj[d.SourceID] = append(adj[d.SourceID], d.TargetID)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].String() < nodes[j].String() })
	for id := range adj {
		sort.Slice(adj[id], func(i, j int) bool { return adj[id][i].String() < adj[id][j].String() })
	}

	visited := make(map[uuid.UUID]bool)
	onStack := make(map[uuid.UUID]bool)
	var path []uuid.UUID
	seen := make(map[string]bool)
	var cycles []domain.Cycle

	var dfs func(uuid.UUID)
	dfs = func(u uuid.UUID) {
		visited[u] = true
		onStack[u] = true
		path = append(path, u)

		for _, v := range adj[u] {
			if onStack[v] {
				cycle := cycleFrom(path, v)
				key := canonicalKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, domain.Cycle{
						UnitIDs:  cycle,
						Severity: domain.SeverityForCycleLength(len(cycle)),
					})
				}
				continue
			}
			if !visited[v] {
				dfs(v)
			}
		}

		path = path[:len(path)-1]
		onStack[u] = false
	}

	for _, n := range nodes {
		if ctx.Err() != nil {
			break
		}
		if !visited[n] {
			dfs(n)
		}
	}
	return cycles, nil
}

func cycleFrom(path []uuid.UUID, reentry uuid.UUID) []uuid.UUID {
	for i, id := range path {
		if id == reentry {
			cp := make([]uuid.UUID, len(path)-i)
			copy(cp, path[i:])
			return cp
		}
	}
	return nil
}

// canonicalKey normalizes a cycle to the rotation starting at its
// lexicographically smallest id, so the same cycle found from different
// entry points dedupes to one report.
func canonicalKey(cycle []uuid.UUID) string {
	if len(cycle) == 0 {
		return ""
	}
	minIdx := 0
	for i, id := range cycle {
		if id.String() < cycle[minIdx].String() {
			minIdx = i
		}
	}
	var b []byte
	for i := 0; i < len(cycle); i++ {
		b = append(b, []byte(cycle[(minIdx+i)%len(cycle)].String())...)
		b = append(b, ',')
	}
	return string(b)
}

// ImpactOf runs BFS over reverse edges from changedIDs, marking reachable
// nodes as Affected. risk_score = min(1, |affected|/100); the critical path
// is the longest reverse path (by edge count) restricted to the affected
// set, computed by a topological longest-path pass.
func (m *Memory) ImpactOf(ctx context.Context, changedIDs []uuid.UUID) (domain.ImpactResult, error) {
	changed := make(map[uuid.UUID]bool, len(changedIDs))
	for _, id := range changedIDs {
		changed[id] = true
	}

	visited := make(map[uuid.UUID]bool)
	queue := make([]uuid.UUID, 0, len(changedIDs))
	sorted := append([]uuid.UUID(nil), changedIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })
	queue = append(queue, sorted...)
	for _, id := range sorted {
		visited[id] = true
	}

	reverseAdj := make(map[uuid.UUID][]uuid.UUID)
	var affected []uuid.UUID
	for len(queue) > 0 {
		if ctx.Err() != nil {
			break
		}
		cur := queue[0]
		queue = queue[1:]

		dependents, err := m.store.DependentsOf(ctx, cur)
		if err != nil {
			return domain.ImpactResult{}, &domain.StoreError{Op: "semantic.impact_of", Attempts: 1, Err: err}
		}
		sort.Slice(dependents, func(i, j int) bool { return dependents[i].SourceID.String() < dependents[j].SourceID.String() })
		for _, dep := range dependents {
			reverseAdj[cur] = append(reverseAdj[cur], dep.SourceID)
			if !visited[dep.SourceID] {
				visited[dep.SourceID] = true
				queue = append(queue, dep.SourceID)
				if !changed[dep.SourceID] {
					affected = append(affected, dep.SourceID)
				}
			}
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].String() < affected[j].String() })

	riskScore := float64(len(affected)) / 100
	if riskScore > 1 {
		riskScore = 1
	}

	critical := longestPath(reverseAdj, sorted)

	return domain.ImpactResult{
		Affected:     affected,
		RiskScore:    riskScore,
		CriticalPath: critical,
	}, nil
}

// longestPath returns the longest simple path (by edge count, weight 1.0
// each) reachable from roots over adj, chosen deterministically by
// preferring the lexicographically smallest id among equal-length paths.
func longestPath(adj map[uuid.UUID][]uuid.UUID, roots []uuid.UUID) []uuid.UUID {
	memo := make(map[uuid.UUID][]uuid.UUID)
	var longestFrom func(uuid.UUID, map[uuid.UUID]bool) []uuid.UUID
	longestFrom = func(u uuid.UUID, onPath map[uuid.UUID]bool) []uuid.UUID {
		if cached, ok := memo[u]; ok {
			return cached
		}
		var best []uuid.UUID
		onPath[u] = true
		for _, v := range adj[u] {
			if onPath[v] {
				continue
			}
			candidate := longestFrom(v, onPath)
			if len(candidate)+1 > len(best) || (len(candidate)+1 == len(best) && len(best) > 0 && v.String() < best[0].String()) {
				best = append([]uuid.UUID{v}, candidate...)
			}
		}
		onPath[u] = false
		result := append([]uuid.UUID{u}, best...)
		memo[u] = result
		return result
	}

	var best []uuid.UUID
	for _, r := range roots {
		p := longestFrom(r, make(map[uuid.UUID]bool))
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

func (m *Memory) FindComplex(ctx context.Context, projectID uuid.UUID, threshold uint32) ([]domain.SemanticUnit, error) {
	units, err := m.store.AllUnits(ctx, projectID)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.find_complex", Attempts: 1, Err: err}
	}
	var out []domain.SemanticUnit
	for _, u := range units {
		if u.Complexity.Cyclomatic > threshold {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Complexity.Cyclomatic > out[j].Complexity.Cyclomatic })
	return out, nil
}

func (m *Memory) FindUntested(ctx context.Context, projectID uuid.UUID) ([]domain.SemanticUnit, error) {
	units, err := m.store.AllUnits(ctx, projectID)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.find_untested", Attempts: 1, Err: err}
	}
	var out []domain.SemanticUnit
	for _, u := range units {
		if !u.HasTests {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Memory) FindUndocumented(ctx context.Context, projectID uuid.UUID) ([]domain.SemanticUnit, error) {
	units, err := m.store.AllUnits(ctx, projectID)
	if err != nil {
		return nil, &domain.StoreError{Op: "semantic.find_undocumented", Attempts: 1, Err: err}
	}
	var out []domain.SemanticUnit
	for _, u := range units {
		if !u.HasDocumentation {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Memory) Statistics(ctx context.Context, projectID uuid.UUID) (domain.SemanticStats, error) {
	return m.store.Stats(ctx, projectID)
}
