package textclass

import "time"

// ClassificationType selects how the backend assigns labels to examples.
type ClassificationType string

const (
	// Multiclass assigns exactly one label per example
	Multiclass ClassificationType = "MULTICLASS"

	// Multilabel assigns one or more labels per example
	Multilabel ClassificationType = "MULTILABEL"
)

// Valid reports whether the classification type is one the backend accepts.
func (c ClassificationType) Valid() bool {
	return c == Multiclass || c == Multilabel
}

// Record is a single example: text plus a label for training records,
// text only for inference records.
type Record struct {
	// ID identifies the record within a batch. Optional; the formatter
	// assigns one when empty.
	ID string

	// Text is the raw input text. Must be non-empty valid UTF-8.
	Text string

	// Label is the ground-truth category. Required for training records,
	// must be empty for inference records.
	Label string
}

// Dataset is a validated, ordered collection of training records ready for
// staging. Produced by the Formatter; read-only afterwards.
type Dataset struct {
	// Name is the display name the backend dataset will carry
	Name string

	// Type is MULTICLASS or MULTILABEL
	Type ClassificationType

	Records []Record

	// Skipped counts records dropped under lenient validation
	Skipped int
}

// Labels returns the distinct labels present in the dataset.
func (d *Dataset) Labels() []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, rec := range d.Records {
		if _, ok := seen[rec.Label]; !ok {
			seen[rec.Label] = struct{}{}
			labels = append(labels, rec.Label)
		}
	}
	return labels
}

// StagedArtifact is the serialized, backend-ingestible form of a Dataset.
type StagedArtifact struct {
	// ID is a unique artifact name, used as the object name when staging
	ID string

	// Data is the serialized CSV payload
	Data []byte

	// Rows is the number of records serialized into Data
	Rows int

	// URI is the storage location after staging, empty until staged
	URI string
}

// JobState is the observed state of a backend training job.
type JobState string

const (
	JobSubmitted JobState = "SUBMITTED"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"

	// JobAbandoned means local polling stopped without reaching the
	// backend's cancellation path; the backend job may still be running.
	JobAbandoned JobState = "ABANDONED"
)

// Terminal reports whether the state is one the job cannot leave.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// TrainingJob is a snapshot of an asynchronous training job.
type TrainingJob struct {
	// ID is the backend operation/job identifier
	ID string

	State JobState

	// ModelID is set once State is SUCCEEDED
	ModelID string

	// Diagnostic carries the backend failure message for FAILED jobs
	Diagnostic string
}

// ModelHandle is an opaque reference to a successfully trained model.
// Immutable once issued; the underlying model may still expire if the
// backend deletes it.
type ModelHandle struct {
	// ID is the backend model identifier
	ID string

	// JobID is the training job that produced the model
	JobID string

	// CreatedAt is when training completed
	CreatedAt time.Time
}

// Valid reports whether the handle references a model at all.
func (m ModelHandle) Valid() bool {
	return m.ID != ""
}

// LabelScore is one label candidate returned by the backend for an input.
type LabelScore struct {
	Label string
	Score float64
}

// Prediction is the normalized outcome of applying a model to one input.
type Prediction struct {
	// InputID references the Record the prediction belongs to
	InputID string

	// Label is the top-scoring category
	Label string

	// Confidence is the top label's score, always within [0, 1]
	Confidence float64

	// Alternatives holds the remaining candidates in descending score
	// order. May be empty.
	Alternatives []LabelScore
}

// Evaluation summarizes one backend model evaluation entry.
type Evaluation struct {
	// Label is the annotation the evaluation applies to; empty for the
	// model-wide aggregate entry
	Label string

	// AUPRC is the area under the precision-recall curve
	AUPRC float64

	// ExampleCount is how many examples the evaluation used
	ExampleCount int
}

// ModelInfo describes the backend's view of a trained model.
type ModelInfo struct {
	ID       string
	Name     string
	Deployed bool
}
