package model

import (
	"fmt"
	"strings"
	"time"
)

// RestoreMode selects the write operation used for each batch.
type RestoreMode string

const (
	ModeInsert RestoreMode = "insert"
	ModeUpdate RestoreMode = "update"
	ModeUpsert RestoreMode = "upsert"
)

// ParseRestoreMode parses a user-supplied mode string.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(strings.ToLower(s)) {
	case ModeInsert:
		return ModeInsert, nil
	case ModeUpdate:
		return ModeUpdate, nil
	case ModeUpsert:
		return ModeUpsert, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (expected insert, update or upsert)", s)
}

// DefaultBatchSize is the batch ceiling of the target write API.
const DefaultBatchSize = 200

// RestoreOptions configures one restore run. Immutable per run.
type RestoreOptions struct {
	BatchSize             int
	StopOnError           bool
	ValidateBeforeRestore bool
	ResolveRelationships  bool
	Mode                  RestoreMode
	ExternalIDField       string
	MaxRetries            int
	RetryDelay            time.Duration
	DryRun                bool
}

// DefaultRestoreOptions returns the option defaults.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{
		BatchSize:             DefaultBatchSize,
		StopOnError:           false,
		ValidateBeforeRestore: true,
		ResolveRelationships:  true,
		Mode:                  ModeInsert,
		MaxRetries:            3,
		RetryDelay:            2 * time.Second,
	}
}

// RestoreProgress is a snapshot of a running restore, handed by value to
// the progress callback so observers never share executor state.
type RestoreProgress struct {
	CurrentObject    string
	ProcessedRecords int
	TotalRecords     int
	SuccessCount     int
	FailureCount     int
	SkippedCount     int
	PercentComplete  float64
}

// WriteResult is the per-record outcome of one batch write call.
type WriteResult struct {
	SourceID string
	TargetID string
	Success  bool
	Error    string
}

// maxSummaryErrors caps the error list carried per object in summaries;
// the full list stays in ObjectResult.Errors.
const maxSummaryErrors = 10

// ObjectResult aggregates the outcome of restoring one object.
type ObjectResult struct {
	ObjectName   string
	TotalRecords int
	SuccessCount int
	FailureCount int
	SkippedCount int
	Errors       []string
	Skipped      bool // object was never attempted (aborted run or cancellation)
}

// AddError appends a record-level error message.
func (r *ObjectResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// SummaryErrors returns at most the first N errors plus a marker for the
// remainder.
func (r *ObjectResult) SummaryErrors() []string {
	if len(r.Errors) <= maxSummaryErrors {
		return r.Errors
	}
	capped := make([]string, 0, maxSummaryErrors+1)
	capped = append(capped, r.Errors[:maxSummaryErrors]...)
	capped = append(capped, fmt.Sprintf("... and %d more errors", len(r.Errors)-maxSummaryErrors))
	return capped
}

// RestoreResult is the immutable final snapshot of one restore run.
type RestoreResult struct {
	Objects      []ObjectResult
	TotalRecords int
	SuccessCount int
	FailureCount int
	SkippedCount int
	Completed    bool
}

// AddObjectResult folds a per-object result into the run totals.
func (r *RestoreResult) AddObjectResult(or ObjectResult) {
	r.Objects = append(r.Objects, or)
	r.TotalRecords += or.TotalRecords
	r.SuccessCount += or.SuccessCount
	r.FailureCount += or.FailureCount
	r.SkippedCount += or.SkippedCount
}

// Failed reports whether any record failed or any object was left
// unattempted.
func (r *RestoreResult) Failed() bool {
	if r.FailureCount > 0 || !r.Completed {
		return true
	}
	for _, or := range r.Objects {
		if or.Skipped {
			return true
		}
	}
	return false
}
