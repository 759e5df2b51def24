package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternValidate(t *testing.T) {
	base := func() Pattern {
		return Pattern{Context: "retry logic", PatternType: PatternCode}
	}

	valid := base()
	assert.NoError(t, valid.Validate())

	empty := base()
	empty.Context = ""
	assert.Error(t, empty.Validate())

	badType := base()
	badType.PatternType = PatternType("nonsense")
	assert.Error(t, badType.Validate())

	inconsistent := base()
	inconsistent.TimesApplied = 2
	inconsistent.TimesSucceeded = 3
	assert.Error(t, inconsistent.Validate())
}

func TestPatternRecomputeSuccessRate(t *testing.T) {
	p := Pattern{}
	p.RecomputeSuccessRate()
	assert.Equal(t, 0.0, p.SuccessRate)

	p.TimesApplied = 4
	p.TimesSucceeded = 3
	p.RecomputeSuccessRate()
	assert.InDelta(t, 0.75, p.SuccessRate, 1e-9)
}
