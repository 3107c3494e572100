package textclass

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports a malformed input record. Local, the caller can
// fix the input and retry.
type ValidationError struct {
	// Index is the record's position in the input batch
	Index int

	// ID is the record identifier, when present
	ID string

	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid record %q (index %d): %s", e.ID, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid record at index %d: %s", e.Index, e.Reason)
}

// StagingError reports a failure building or staging the artifact before any
// training request is made.
type StagingError struct {
	Reason string

	// Size and Limit are set when the artifact exceeded the size bound
	Size  int64
	Limit int64
}

func (e *StagingError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("staging failed: %s (%d bytes, limit %d)", e.Reason, e.Size, e.Limit)
	}
	return "staging failed: " + e.Reason
}

// TrainingError reports a training job that reached FAILED or CANCELLED, or
// that could not be submitted. The diagnostic comes from the backend.
type TrainingError struct {
	JobID      string
	State      JobState
	Diagnostic string
}

func (e *TrainingError) Error() string {
	msg := fmt.Sprintf("training job %q: %s", e.JobID, e.State)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

// TimeoutError reports that polling exceeded the configured maximum wait.
// Distinct from TrainingError: the job state is unknown and the job may
// still complete; re-check it later with the job ID.
type TimeoutError struct {
	JobID  string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("training job %q still not terminal after %s", e.JobID, e.Waited)
}

// PredictionError reports an inference failure, either for a whole batch or
// for a single item within one.
type PredictionError struct {
	ModelID string

	// Index is the failing item's position in the batch, -1 for
	// whole-batch failures
	Index int

	Reason string
}

func (e *PredictionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("prediction failed for input %d against model %q: %s", e.Index, e.ModelID, e.Reason)
	}
	return fmt.Sprintf("prediction failed against model %q: %s", e.ModelID, e.Reason)
}

// TransientError marks an error as retryable: a network or availability
// failure where the same call may succeed shortly. Backend adapters wrap
// such errors so the retry layer can recognize them.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is marked retryable anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
