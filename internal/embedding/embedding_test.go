package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClientIsDeterministicAndNormalized(t *testing.T) {
	c := NewMockClient()
	assert.Equal(t, mockDimension, c.Dimension())

	v1, err := c.Embed(context.Background(), "retry http client backoff")
	require.NoError(t, err)
	v2, err := c.Embed(context.Background(), "retry http client backoff")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	var norm float64
	for _, x := range v1 {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestMockClientDiffersForDifferentText(t *testing.T) {
	c := NewMockClient()
	v1, _ := c.Embed(context.Background(), "fix retry logic")
	v2, _ := c.Embed(context.Background(), "rewrite the consolidation pipeline")
	assert.NotEqual(t, v1, v2)
}

func TestMockClientEmptyTextReturnsZeroVector(t *testing.T) {
	c := NewMockClient()
	v, err := c.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		assert.Equal(t, float32(0), x)
	}
}

func TestNewClient(t *testing.T) {
	t.Run("mock provider needs no api key", func(t *testing.T) {
		e, err := NewClient(ProviderMock, "")
		require.NoError(t, err)
		assert.IsType(t, &MockClient{}, e)
	})

	t.Run("empty provider defaults to mock", func(t *testing.T) {
		e, err := NewClient("", "")
		require.NoError(t, err)
		assert.IsType(t, &MockClient{}, e)
	})

	t.Run("openai provider requires an api key", func(t *testing.T) {
		_, err := NewClient(ProviderOpenAI, "")
		assert.Error(t, err)
	})

	t.Run("openai provider with a key succeeds", func(t *testing.T) {
		e, err := NewClient(ProviderOpenAI, "sk-test")
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, e)
	})

	t.Run("unknown provider errors", func(t *testing.T) {
		_, err := NewClient("unknown", "key")
		assert.Error(t, err)
	})
}
