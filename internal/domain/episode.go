package domain

import (
	"time"

	"github.com/google/uuid"
)

// EpisodeType classifies the kind of task an episode records.
type EpisodeType string

const (
	EpisodeFeature  EpisodeType = "feature"
	EpisodeRefactor EpisodeType = "refactor"
	EpisodeBugfix   EpisodeType = "bugfix"
	EpisodeTask     EpisodeType = "task"
)

func ValidEpisodeType(t EpisodeType) bool {
	switch t {
	case EpisodeFeature, EpisodeRefactor, EpisodeBugfix, EpisodeTask:
		return true
	default:
		return false
	}
}

// Outcome is the end state of an episode.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePartial   Outcome = "partial"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeFailure   Outcome = "failure"
)

func ValidOutcome(o Outcome) bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeAbandoned, OutcomeFailure:
		return true
	default:
		return false
	}
}

// SuccessScore derives the [0,1] score an outcome contributes to relevance
// and pattern-extraction eligibility. Success=1, Partial=0.5, others=0.
func SuccessScore(o Outcome) float32 {
	switch o {
	case OutcomeSuccess:
		return 1.0
	case OutcomePartial:
		return 0.5
	default:
		return 0.0
	}
}

// ToolUsage records one tool invocation inside an episode.
type ToolUsage struct {
	Tool       string         `json:"tool"`
	Count      int            `json:"count"`
	DurationMs int64          `json:"duration_ms"`
	Params     map[string]any `json:"params,omitempty"`
}

// Episode is an immutable record of one agent task. Once written, content
// fields never change; only AccessCount and PatternValue are mutable.
type Episode struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	AgentID   uuid.UUID `json:"agent_id"`
	ProjectID uuid.UUID `json:"project_id"`

	TaskDescription string      `json:"task_description"`
	SolutionSummary string      `json:"solution_summary"`
	SolutionDetail  string      `json:"solution_detail,omitempty"`
	EpisodeType     EpisodeType `json:"episode_type"`
	Outcome         Outcome     `json:"outcome"`
	SuccessScore    float32     `json:"success_score"`

	DurationMs int64 `json:"duration_ms"`
	TokensUsed int   `json:"tokens_used"`

	FilesTouched     []string    `json:"files_touched,omitempty"`
	EntitiesCreated  []string    `json:"entities_created,omitempty"`
	EntitiesModified []string    `json:"entities_modified,omitempty"`
	QueriesMade      []string    `json:"queries_made,omitempty"`
	ToolsUsed        []ToolUsage `json:"tools_used,omitempty"`

	// Embedding is nil when none was computed or supplied; still retrievable
	// by keyword and by entity per the no-embedding invariant.
	Embedding []float32 `json:"embedding,omitempty"`

	// Mutable fields. AccessCount is bumped by retrieval; PatternValue is
	// raised by consolidation to the max over all capturing patterns.
	AccessCount  int     `json:"access_count"`
	PatternValue float32 `json:"pattern_value"`
}

// ReferenceText is the canonical text embedded for similarity search:
// task_description ⊕ " " ⊕ solution_summary.
func (e *Episode) ReferenceText() string {
	if e.SolutionSummary == "" {
		return e.TaskDescription
	}
	return e.TaskDescription + " " + e.SolutionSummary
}

// Validate checks Episode invariants that are cheap and local (does not
// check cross-record uniqueness, which is the store's responsibility).
func (e *Episode) Validate() error {
	if e.TaskDescription == "" {
		return &ValidationError{Field: "task_description", Reason: "must not be empty"}
	}
	if !ValidEpisodeType(e.EpisodeType) {
		return &ValidationError{Field: "episode_type", Reason: "unrecognized episode type"}
	}
	if !ValidOutcome(e.Outcome) {
		return &ValidationError{Field: "outcome", Reason: "unrecognized outcome"}
	}
	return nil
}

// TotalToolDuration sums DurationMs across all tool usages.
func (e *Episode) TotalToolDuration() int64 {
	var total int64
	for _, t := range e.ToolsUsed {
		total += t.DurationMs
	}
	return total
}

// MostUsedTool returns the tool name with the highest Count, or "" if none.
func (e *Episode) MostUsedTool() string {
	best := ""
	bestCount := 0
	for _, t := range e.ToolsUsed {
		if t.Count > bestCount {
			best = t.Tool
			bestCount = t.Count
		}
	}
	return best
}

// EpisodicStats summarizes the episode population for CognitiveManager.statistics.
type EpisodicStats struct {
	Total              int     `json:"total"`
	Successful         int     `json:"successful"`
	Failed             int     `json:"failed"`
	AverageSuccessRate float64 `json:"average_success_rate"`
}
