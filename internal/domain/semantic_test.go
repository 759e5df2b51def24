package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSemanticUnitValidate(t *testing.T) {
	base := func() SemanticUnit {
		return SemanticUnit{QualifiedName: "pkg.Func", UnitType: UnitFunction, StartLine: 1, EndLine: 10}
	}

	valid := base()
	assert.NoError(t, valid.Validate())

	empty := base()
	empty.QualifiedName = ""
	assert.Error(t, empty.Validate())

	badType := base()
	badType.UnitType = UnitType("nope")
	assert.Error(t, badType.Validate())

	badLines := base()
	badLines.StartLine, badLines.EndLine = 10, 1
	assert.Error(t, badLines.Validate())

	coverage := base()
	bad := float32(1.5)
	coverage.TestCoverage = &bad
	assert.Error(t, coverage.Validate())
}

func TestDependencyValidate(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	valid := Dependency{SourceID: a, TargetID: b, DependencyType: DependencyCalls}
	assert.NoError(t, valid.Validate())

	selfLoop := Dependency{SourceID: a, TargetID: a, DependencyType: DependencyCalls}
	assert.Error(t, selfLoop.Validate())

	badType := Dependency{SourceID: a, TargetID: b, DependencyType: DependencyType("nope")}
	assert.Error(t, badType.Validate())
}

func TestSeverityForCycleLength(t *testing.T) {
	assert.Equal(t, CycleLow, SeverityForCycleLength(2))
	assert.Equal(t, CycleLow, SeverityForCycleLength(3))
	assert.Equal(t, CycleMedium, SeverityForCycleLength(4))
	assert.Equal(t, CycleMedium, SeverityForCycleLength(5))
	assert.Equal(t, CycleHigh, SeverityForCycleLength(6))
}
