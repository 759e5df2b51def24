package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnitType classifies a code construct.
type UnitType string

const (
	UnitFunction UnitType = "function"
	UnitStruct   UnitType = "struct"
	UnitEnum     UnitType = "enum"
	UnitTrait    UnitType = "trait"
	UnitModule   UnitType = "module"
	UnitMethod   UnitType = "method"
	UnitClass    UnitType = "class"
)

func ValidUnitType(t UnitType) bool {
	switch t {
	case UnitFunction, UnitStruct, UnitEnum, UnitTrait, UnitModule, UnitMethod, UnitClass:
		return true
	default:
		return false
	}
}

// Complexity holds the static-complexity figures attached to a SemanticUnit.
type Complexity struct {
	Cyclomatic uint32 `json:"cyclomatic"`
	Cognitive  uint32 `json:"cognitive"`
	Nesting    uint32 `json:"nesting"`
	Lines      uint32 `json:"lines"`
}

// SemanticUnit is a code construct the agent has reasoned about.
// qualified_name is unique within ProjectID; an upsert with the same key
// replaces the existing record.
type SemanticUnit struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"project_id"`
	UnitType      UnitType  `json:"unit_type"`
	Name          string    `json:"name"`
	QualifiedName string    `json:"qualified_name"`
	FilePath      string    `json:"file_path"`
	StartLine     int       `json:"start_line"`
	EndLine       int       `json:"end_line"`
	StartColumn   int       `json:"start_column"`
	EndColumn     int       `json:"end_column"`

	Signature   string   `json:"signature"`
	Body        string   `json:"body,omitempty"`
	Docstring   string   `json:"docstring,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Modifiers   []string `json:"modifiers,omitempty"`
	Parameters  []string `json:"parameters,omitempty"`
	ReturnType  string   `json:"return_type,omitempty"`

	Summary string    `json:"summary,omitempty"`
	Purpose string    `json:"purpose,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`

	Complexity       Complexity `json:"complexity"`
	HasTests         bool       `json:"has_tests"`
	HasDocumentation bool       `json:"has_documentation"`
	TestCoverage     *float32   `json:"test_coverage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the local invariants spec.md §3 assigns to SemanticUnit.
func (u *SemanticUnit) Validate() error {
	if u.QualifiedName == "" {
		return &ValidationError{Field: "qualified_name", Reason: "must not be empty"}
	}
	if !ValidUnitType(u.UnitType) {
		return &ValidationError{Field: "unit_type", Reason: "unrecognized unit type"}
	}
	if u.StartLine > u.EndLine {
		return &ValidationError{Field: "start_line", Reason: "must be <= end_line"}
	}
	if u.TestCoverage != nil && (*u.TestCoverage < 0 || *u.TestCoverage > 1) {
		return &ValidationError{Field: "test_coverage", Reason: "must be in [0,1]"}
	}
	return nil
}

// DependencyType enumerates the directed relationship a Dependency edge carries.
type DependencyType string

const (
	DependencyCalls      DependencyType = "calls"
	DependencyImports    DependencyType = "imports"
	DependencyUsesType   DependencyType = "uses_type"
	DependencyReads      DependencyType = "reads"
	DependencyWrites     DependencyType = "writes"
	DependencyImplements DependencyType = "implements"
	DependencyExtends    DependencyType = "extends"
)

func ValidDependencyType(t DependencyType) bool {
	switch t {
	case DependencyCalls, DependencyImports, DependencyUsesType, DependencyReads,
		DependencyWrites, DependencyImplements, DependencyExtends:
		return true
	default:
		return false
	}
}

// Dependency is a directed edge between two semantic units. No self-loops;
// (SourceID, TargetID, DependencyType) is unique. Cycles across multiple
// edges are permitted and are a first-class query (SemanticMemory.FindCycles).
type Dependency struct {
	ID             uuid.UUID      `json:"id"`
	SourceID       uuid.UUID      `json:"source_id"`
	TargetID       uuid.UUID      `json:"target_id"`
	DependencyType DependencyType `json:"dependency_type"`
	IsDirect       bool           `json:"is_direct"`
	IsRuntime      bool           `json:"is_runtime"`
	IsDev          bool           `json:"is_dev"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks the local invariants spec.md §3 assigns to Dependency.
func (d *Dependency) Validate() error {
	if d.SourceID == d.TargetID {
		return &ValidationError{Field: "target_id", Reason: "self-loops are not permitted"}
	}
	if !ValidDependencyType(d.DependencyType) {
		return &ValidationError{Field: "dependency_type", Reason: "unrecognized dependency type"}
	}
	return nil
}

// CycleSeverity classifies a detected cycle by its length.
type CycleSeverity string

const (
	CycleLow    CycleSeverity = "low"
	CycleMedium CycleSeverity = "medium"
	CycleHigh   CycleSeverity = "high"
)

// SeverityForCycleLength implements spec.md §4.4's banding:
// Low for |cycle| <= 3, Medium for <= 5, High otherwise.
func SeverityForCycleLength(n int) CycleSeverity {
	switch {
	case n <= 3:
		return CycleLow
	case n <= 5:
		return CycleMedium
	default:
		return CycleHigh
	}
}

// Cycle is one distinct cycle reported by find_cycles, as the list of unit
// ids from the re-entry point.
type Cycle struct {
	UnitIDs  []uuid.UUID   `json:"unit_ids"`
	Severity CycleSeverity `json:"severity"`
}

// ImpactResult is the outcome of impact_of: the transitive reverse-dependency
// closure of a changed-unit set, plus a risk score and critical-path hint.
type ImpactResult struct {
	Affected     []uuid.UUID `json:"affected"`
	RiskScore    float64     `json:"risk_score"`
	CriticalPath []uuid.UUID `json:"critical_path,omitempty"`
}

// SemanticStats summarizes the unit/dependency population.
type SemanticStats struct {
	UnitCount       int `json:"unit_count"`
	DependencyCount int `json:"dependency_count"`
	UntestedCount   int `json:"untested_count"`
	UndocumentedCount int `json:"undocumented_count"`
}
