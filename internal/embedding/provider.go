// Package embedding provides concrete domain.Embedder implementations.
package embedding

import (
	"fmt"

	"github.com/cogmem/cogmem/internal/domain"
)

// Provider name constants accepted by NewClient.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewClient builds an Embedder for the named provider. Returns an error if
// the provider is unknown or a required API key is empty.
func NewClient(provider, apiKey string) (domain.Embedder, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock, "":
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock)", provider)
	}
}
