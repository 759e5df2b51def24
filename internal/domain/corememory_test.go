package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoreMemoryTokenEstimate(t *testing.T) {
	c := CoreMemory{
		AgentPersona:  "1234",
		UserPersona:   "12345678",
		SystemContext: "",
		KeyFacts:      []string{"1234", "12"},
	}
	// chars/4 heuristic: 4/4 + 8/4 + 0/4 + 4/4 + 2/4 = 1+2+0+1+0 = 4
	assert.Equal(t, 4, c.TokenEstimate(nil))
}

func TestCoreMemoryKeyFacts(t *testing.T) {
	c := CoreMemory{}
	c.AddKeyFact("uses go 1.22")
	c.AddKeyFact("uses go 1.22")
	assert.Len(t, c.KeyFacts, 1, "duplicate facts are not appended twice")

	c.AddKeyFact("runs on postgres")
	assert.Len(t, c.KeyFacts, 2)

	assert.True(t, c.RemoveKeyFact("uses go 1.22"))
	assert.False(t, c.RemoveKeyFact("uses go 1.22"))
	assert.Equal(t, []string{"runs on postgres"}, c.KeyFacts)
}
