package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// These assertions hold whether or not the cl100k_base encoder could be
// initialized (it may not be, without network access to fetch its ranks),
// since EstimateTokens falls back to the chars/4 heuristic on init failure.
func TestEstimateTokensNonEmptyText(t *testing.T) {
	e := New()
	n := e.EstimateTokens("the quick brown fox jumps over the lazy dog")
	assert.Greater(t, n, 0)
}

func TestEstimateTokensEmptyText(t *testing.T) {
	e := New()
	assert.Equal(t, 0, e.EstimateTokens(""))
}

func TestEstimateTokensIsStableAcrossCalls(t *testing.T) {
	e := New()
	text := "consolidate episodic memories into reusable patterns"
	first := e.EstimateTokens(text)
	second := e.EstimateTokens(text)
	assert.Equal(t, first, second)
}
