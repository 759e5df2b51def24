package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorUnwrapsToErrValidation(t *testing.T) {
	err := &ValidationError{Field: "outcome", Reason: "unrecognized outcome"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "outcome")
}

func TestStoreErrorUnwrapsToUnderlyingErr(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &StoreError{Op: "create episode", Attempts: 3, Err: underlying}
	assert.True(t, errors.Is(err, underlying))
	assert.Contains(t, err.Error(), "3 attempt")
}

func TestEmbeddingErrorUnwraps(t *testing.T) {
	underlying := errors.New("timeout")
	err := &EmbeddingError{Err: underlying, Fatal: false}
	assert.True(t, errors.Is(err, underlying))
}
