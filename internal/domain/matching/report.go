package matching

import (
	"time"

	"github.com/google/uuid"
)

// SkipReason explains why an order was not auto-mapped
type SkipReason string

const (
	SkipAmbiguous     SkipReason = "ambiguous"
	SkipNoMatch       SkipReason = "no_match"
	SkipAlreadyMapped SkipReason = "already_mapped"
)

// RunError records a single order's terminal failure within a run. It never
// aborts the run itself.
type RunError struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// RunReport is the outcome of one auto-map or batch reconciliation run.
// Ephemeral: produced per invocation, not persisted as an entity.
type RunReport struct {
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       time.Time  `json:"finished_at"`
	Scanned          int        `json:"scanned"`
	SuccessCount     int        `json:"success_count"`
	SkippedAmbiguous int        `json:"skipped_ambiguous"`
	SkippedNoMatch   int        `json:"skipped_no_match"`
	SkippedConflict  int        `json:"skipped_conflict"`
	Errors           []RunError `json:"errors"`
	// Cursor is the resume position after the last fully-processed order.
	// Present only when the run stopped early (cancelled or errored); a
	// drained sweep has no resume point.
	Cursor    string `json:"cursor,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// NewRunReport starts a report clock
func NewRunReport() *RunReport {
	return &RunReport{
		StartedAt: time.Now(),
		Errors:    make([]RunError, 0),
	}
}

// RecordSuccess counts one committed mapping
func (r *RunReport) RecordSuccess() {
	r.Scanned++
	r.SuccessCount++
}

// RecordSkip counts one skipped order by reason. Lost optimistic races are
// benign and tracked separately from resolver skips.
func (r *RunReport) RecordSkip(reason SkipReason) {
	r.Scanned++
	switch reason {
	case SkipAmbiguous:
		r.SkippedAmbiguous++
	case SkipNoMatch:
		r.SkippedNoMatch++
	case SkipAlreadyMapped:
		r.SkippedConflict++
	}
}

// RecordError counts one order that failed after retries
func (r *RunReport) RecordError(orderID uuid.UUID, reason string) {
	r.Scanned++
	r.Errors = append(r.Errors, RunError{OrderID: orderID, Reason: reason})
}

// Finish stamps the end of the run and returns the report for chaining
func (r *RunReport) Finish() *RunReport {
	r.FinishedAt = time.Now()
	return r
}
