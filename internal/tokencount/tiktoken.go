// Package tokencount implements domain.TokenEstimator with a real BPE
// tokenizer, falling back to the spec's chars/4 heuristic when the encoder
// can't be initialized (e.g. no network access to fetch encoding data).
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/cogmem/cogmem/internal/domain"
)

// Estimator estimates tokens with the cl100k_base encoding, lazily
// initialized on first use.
type Estimator struct {
	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// New returns an Estimator. Initialization is deferred to the first call to
// EstimateTokens so construction never fails.
func New() *Estimator {
	return &Estimator{}
}

func (e *Estimator) init() error {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			e.initErr = err
			return
		}
		e.enc = enc
	})
	return e.initErr
}

// EstimateTokens implements domain.TokenEstimator. On encoder
// initialization failure it falls back to chars/4, the same heuristic
// spec.md §3 names as the baseline.
func (e *Estimator) EstimateTokens(text string) int {
	if err := e.init(); err != nil {
		return domain.DefaultTokenEstimator.EstimateTokens(text)
	}
	return len(e.enc.Encode(text, nil, nil))
}
