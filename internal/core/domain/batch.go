package domain

import (
	"fmt"
	"time"
)

// ItemResult is the outcome of one item in a batch operation.
type ItemResult struct {
	// Item names the input (usually a file name).
	Item string

	// Err is nil when the item succeeded.
	Err error

	// Details are human-readable lines describing what was produced.
	Details []string

	// Duration is how long the item took.
	Duration time.Duration
}

// OK reports whether the item succeeded.
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// BatchReport collects per-item outcomes. A failing item never aborts the batch.
type BatchReport struct {
	// Operation names the batch (e.g. "documents", "data").
	Operation string

	// RunID identifies the run.
	RunID string

	// Items are the per-item results.
	Items []ItemResult
}

// Succeeded returns the number of successful items.
func (r BatchReport) Succeeded() int {
	n := 0
	for _, it := range r.Items {
		if it.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed items.
func (r BatchReport) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// Failures returns the failed items.
func (r BatchReport) Failures() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if !it.OK() {
			out = append(out, it)
		}
	}
	return out
}

// Summary renders the one-line batch summary.
func (r BatchReport) Summary() string {
	return fmt.Sprintf("%d successful, %d failed", r.Succeeded(), r.Failed())
}
