package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock is the injected wall-clock/monotonic-clock capability. Production
// uses the real clock; tests inject a controllable one so relevance-decay
// and eviction-ordering scenarios are deterministic.
type Clock interface {
	Now() time.Time
}

// IdGen produces opaque 128-bit identifiers.
type IdGen interface {
	NewID() uuid.UUID
}

// Embedder maps text to a fixed-length vector. Implementations must report
// their dimension and be deterministic for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Summarizer is the optional capability the Consolidator delegates
// "summarize this group of episodes" to. When absent, a deterministic
// extractive summary is used instead (internal/summarizer.Extractive).
type Summarizer interface {
	Summarize(ctx context.Context, items []string) (string, error)
}

// EpisodicStore is the persistence capability EpisodicMemory is built on.
// A concrete implementation may be in-memory (internal/memstore, for tests)
// or Postgres/pgvector-backed (internal/pgstore, for production).
type EpisodicStore interface {
	Create(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, id uuid.UUID) (*Episode, error)
	// FindSimilar returns the k nearest episodes to queryVec by cosine
	// similarity together with their similarity score, already filtered to
	// success_score >= minSuccessScore.
	FindSimilar(ctx context.Context, queryVec []float32, k int, minSuccessScore float32) ([]EpisodeWithScore, error)
	// FindByKeyword returns up to k episodes whose task_description or
	// solution_summary case-insensitively contains any of tokens.
	FindByKeyword(ctx context.Context, tokens []string, k int) ([]Episode, error)
	// FindByEntities returns up to k episodes whose files_touched or
	// entities_modified intersects paths.
	FindByEntities(ctx context.Context, paths []string, k int) ([]Episode, error)
	// FindByFilesTouched returns episodes (other than excludeID) sharing any
	// file in files, used by find_related.
	FindByFilesTouched(ctx context.Context, files []string, excludeID uuid.UUID, k int) ([]Episode, error)
	// List returns every episode older than olderThan (zero value = no bound),
	// used by the consolidator's Group stage and by cleanup/forget.
	List(ctx context.Context, olderThan time.Time) ([]Episode, error)
	IncrementAccessCount(ctx context.Context, id uuid.UUID) error
	// RaisePatternValue sets pattern_value if newValue is greater than the
	// stored value (max-over-capturing-patterns semantics).
	RaisePatternValue(ctx context.Context, id uuid.UUID, newValue float32) error
	Delete(ctx context.Context, id uuid.UUID) error
	LinkToSymbols(ctx context.Context, episodeID uuid.UUID, unitIDs []uuid.UUID) error
	Count(ctx context.Context) (EpisodicStats, error)
}

// EpisodeWithScore pairs an Episode with its similarity score from an ANN query.
type EpisodeWithScore struct {
	Episode
	Score float64 `json:"score"`
}

// SemanticStore is the persistence capability SemanticMemory is built on.
type SemanticStore interface {
	UpsertUnit(ctx context.Context, u *SemanticUnit) error
	GetUnit(ctx context.Context, id uuid.UUID) (*SemanticUnit, error)
	FindByQualifiedName(ctx context.Context, projectID uuid.UUID, name string) (*SemanticUnit, error)
	UnitsInFile(ctx context.Context, projectID uuid.UUID, path string) ([]SemanticUnit, error)
	SearchSimilar(ctx context.Context, queryVec []float32, k int, threshold float64) ([]UnitWithScore, error)
	AllUnits(ctx context.Context, projectID uuid.UUID) ([]SemanticUnit, error)

	AddDependency(ctx context.Context, d *Dependency) error
	DependenciesOf(ctx context.Context, id uuid.UUID) ([]Dependency, error)
	DependentsOf(ctx context.Context, id uuid.UUID) ([]Dependency, error)
	AllDependencies(ctx context.Context, projectID uuid.UUID) ([]Dependency, error)

	Stats(ctx context.Context, projectID uuid.UUID) (SemanticStats, error)
}

// UnitWithScore pairs a SemanticUnit with its combined similarity+bonus score.
type UnitWithScore struct {
	SemanticUnit
	Score float64 `json:"score"`
}

// ProceduralStore is the persistence capability ProceduralMemory is built on.
type ProceduralStore interface {
	Create(ctx context.Context, p *Pattern) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pattern, error)
	// FindByContext returns patterns whose Context best matches query,
	// ranked by the store's own similarity notion (word-overlap Jaccard in
	// internal/memstore, full-text rank in internal/pgstore).
	FindByContext(ctx context.Context, query string, limit int) ([]Pattern, error)
	Update(ctx context.Context, p *Pattern) error
	All(ctx context.Context) ([]Pattern, error)
	Stats(ctx context.Context) (ProceduralStats, error)
}
