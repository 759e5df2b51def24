package domain

import (
	"time"

	"github.com/google/uuid"
)

// PatternType classifies a distilled reusable procedure.
type PatternType string

const (
	PatternOptimization PatternType = "optimization"
	PatternRefactor      PatternType = "refactor"
	PatternCode          PatternType = "code"
	PatternArchitecture  PatternType = "architecture"
	PatternTest          PatternType = "test"
)

func ValidPatternType(t PatternType) bool {
	switch t {
	case PatternOptimization, PatternRefactor, PatternCode, PatternArchitecture, PatternTest:
		return true
	default:
		return false
	}
}

// Pattern is a reusable procedure abstracted from repeated successful
// episodes. Patterns may be superseded but are never silently mutated;
// explicit updates bump UpdatedAt.
type Pattern struct {
	ID          uuid.UUID   `json:"id"`
	PatternType PatternType `json:"pattern_type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Context     string      `json:"context"`

	SupportingEpisodeIDs []uuid.UUID `json:"supporting_episode_ids"`
	TimesApplied         int         `json:"times_applied"`
	TimesSucceeded       int         `json:"times_succeeded"`
	SuccessRate          float64     `json:"success_rate"`

	Confidence    float64    `json:"confidence"`
	LastAppliedAt *time.Time `json:"last_applied_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeSuccessRate recalculates SuccessRate from the applied/succeeded
// counters, per the invariant success_rate = succeeded/applied (0 if never
// applied).
func (p *Pattern) RecomputeSuccessRate() {
	if p.TimesApplied == 0 {
		p.SuccessRate = 0
		return
	}
	p.SuccessRate = float64(p.TimesSucceeded) / float64(p.TimesApplied)
}

// Validate checks Pattern invariants.
func (p *Pattern) Validate() error {
	if p.Context == "" {
		return &ValidationError{Field: "context", Reason: "must not be empty"}
	}
	if !ValidPatternType(p.PatternType) {
		return &ValidationError{Field: "pattern_type", Reason: "unrecognized pattern type"}
	}
	if p.TimesSucceeded > p.TimesApplied {
		return &ValidationError{Field: "times_succeeded", Reason: "must be <= times_applied"}
	}
	return nil
}

// ProceduralStats summarizes the pattern population.
type ProceduralStats struct {
	Count               int     `json:"count"`
	AverageSuccessRate  float64 `json:"average_success_rate"`
	AverageConfidence   float64 `json:"average_confidence"`
}
