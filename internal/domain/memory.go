package domain

import (
	"time"

	"github.com/google/uuid"
)

// TierKind names which tier component produced a retrieval result.
type TierKind string

const (
	TierWorking    TierKind = "working"
	TierEpisodic   TierKind = "episodic"
	TierSemantic   TierKind = "semantic"
	TierProcedural TierKind = "procedural"
)

// Memory is the ranked result envelope CognitiveManager.Retrieve returns,
// regardless of which tier produced it. Content holds the tier-specific
// payload (Episode, SemanticUnit or Pattern) so callers can type-switch on
// Tier to recover it.
type Memory struct {
	ID             uuid.UUID `json:"id"`
	Tier           TierKind  `json:"tier"`
	Content        any       `json:"content"`
	RelevanceScore float64   `json:"relevance_score"`
	Similarity     float64   `json:"similarity"`
	Recency        float64   `json:"recency"`
	Timestamp      time.Time `json:"timestamp"`
}

// Statistics snapshots per-tier counts and system health for
// CognitiveManager.Statistics.
type Statistics struct {
	CoreMemoryTokens     int           `json:"core_memory_tokens"`
	WorkingMemoryItems   int           `json:"working_memory_items"`
	WorkingMemoryBytes   int64         `json:"working_memory_bytes"`
	Episodic             EpisodicStats `json:"episodic"`
	SemanticUnitCount    int           `json:"semantic_unit_count"`
	DependencyEdgeCount  int           `json:"dependency_edge_count"`
	ProceduralCount      int           `json:"procedural_count"`
	LastConsolidationAt  *time.Time    `json:"last_consolidation_at,omitempty"`
	IndexCorruptionWarns []string      `json:"index_corruption_warnings,omitempty"`
}

// ConsolidationReport is the outcome of one Consolidator run.
type ConsolidationReport struct {
	EpisodesProcessed       int           `json:"episodes_processed"`
	GroupsFormed            int           `json:"groups_formed"`
	SummariesWritten        int           `json:"summaries_written"`
	PatternsCreatedOrUpdated int          `json:"patterns_created_or_updated"`
	EpisodesPruned          int           `json:"episodes_pruned"`
	DurationMs              int64         `json:"duration_ms"`
	Errors                  []string      `json:"errors,omitempty"`
	Cancelled               bool          `json:"cancelled"`
}
