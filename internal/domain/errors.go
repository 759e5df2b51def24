package domain

import (
	"errors"
	"fmt"
)

// Error kinds form a closed sum type. Callers should use errors.Is/errors.As
// against these sentinels and wrapper types rather than string matching.
var (
	// ErrNotFound indicates no record exists for the given id/key.
	ErrNotFound = errors.New("domain: not found")

	// ErrValidation indicates an invariant was violated by caller input.
	ErrValidation = errors.New("domain: validation failed")

	// ErrCapacity indicates working memory could not accommodate a Critical item.
	ErrCapacity = errors.New("domain: capacity exceeded")

	// ErrCancelled indicates a long operation observed cancellation at a checkpoint.
	ErrCancelled = errors.New("domain: operation cancelled")
)

// ValidationError wraps ErrValidation with the specific invariant that failed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError wraps a persistence failure, optionally after retries.
type StoreError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// EmbeddingError wraps an embedding-capability failure. Fatal is true when the
// caller has no acceptable fallback (similarity-only retrieval); false when
// the operation can proceed without an embedding (writes).
type EmbeddingError struct {
	Err   error
	Fatal bool
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding: %v", e.Err) }

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CorruptionError indicates an on-disk index was unreadable; the caller
// rebuilds from the record store and surfaces this as a statistics warning,
// never as a fatal error.
type CorruptionError struct {
	Index string
	Err   error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corruption: %s: %v", e.Index, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
