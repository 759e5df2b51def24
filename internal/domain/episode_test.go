package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpisodeValidate(t *testing.T) {
	base := func() Episode {
		return Episode{
			TaskDescription: "fix the bug",
			EpisodeType:     EpisodeBugfix,
			Outcome:         OutcomeSuccess,
		}
	}

	t.Run("valid episode passes", func(t *testing.T) {
		e := base()
		assert.NoError(t, e.Validate())
	})

	t.Run("empty task_description fails", func(t *testing.T) {
		e := base()
		e.TaskDescription = ""
		err := e.Validate()
		assert.Error(t, err)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
		assert.Equal(t, "task_description", ve.Field)
	})

	t.Run("unrecognized episode_type fails", func(t *testing.T) {
		e := base()
		e.EpisodeType = EpisodeType("not_a_type")
		assert.Error(t, e.Validate())
	})

	t.Run("unrecognized outcome fails", func(t *testing.T) {
		e := base()
		e.Outcome = Outcome("not_an_outcome")
		assert.Error(t, e.Validate())
	})
}

func TestEpisodeReferenceText(t *testing.T) {
	e := Episode{TaskDescription: "add caching", SolutionSummary: "used an LRU"}
	assert.Equal(t, "add caching used an LRU", e.ReferenceText())

	e.SolutionSummary = ""
	assert.Equal(t, "add caching", e.ReferenceText())
}

func TestSuccessScore(t *testing.T) {
	assert.Equal(t, float32(1.0), SuccessScore(OutcomeSuccess))
	assert.Equal(t, float32(0.5), SuccessScore(OutcomePartial))
	assert.Equal(t, float32(0), SuccessScore(OutcomeAbandoned))
	assert.Equal(t, float32(0), SuccessScore(OutcomeFailure))
}
