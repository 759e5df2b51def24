package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractiveSummarizeEmpty(t *testing.T) {
	s := NewExtractive()
	out, err := s.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestExtractiveSummarizeSingleItem(t *testing.T) {
	s := NewExtractive()
	out, err := s.Summarize(context.Background(), []string{"fixed the retry loop"})
	require.NoError(t, err)
	assert.Equal(t, "fixed the retry loop", out)
}

func TestExtractiveSummarizeMultipleItemsIsDeterministic(t *testing.T) {
	s := NewExtractive()
	items := []string{"rewrote the cache eviction", "fixed the retry loop", "added jittered backoff"}

	out1, err := s.Summarize(context.Background(), items)
	require.NoError(t, err)
	out2, err := s.Summarize(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, out1, out2)
	assert.Contains(t, out1, "(and 2 related)")
}
