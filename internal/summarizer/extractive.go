// Package summarizer implements domain.Summarizer: a deterministic
// extractive baseline that is always available, and an optional LLM-backed
// implementation the Consolidator may delegate to instead.
package summarizer

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Extractive is the deterministic fallback summarizer named in spec.md §1:
// "when absent, a deterministic extractive summary is used." It never
// fails and never calls out to a model, so the Consolidator's Stage B
// always has something to fall back to.
type Extractive struct{}

func NewExtractive() Extractive { return Extractive{} }

// Summarize joins items into a short, deterministic digest: the
// lexicographically smallest item verbatim (the representative
// description) followed by a count of the remaining ones. Group-level extractive summaries with richer structure
// (common files, aggregate success rate) are built directly by the
// consolidator from Episode fields; this method exists to satisfy
// domain.Summarizer for callers that only have raw text.
func (Extractive) Summarize(_ context.Context, items []string) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(sorted[0])
	if len(sorted) > 1 {
		fmt.Fprintf(&b, " (and %d related)", len(sorted)-1)
	}
	return b.String(), nil
}
