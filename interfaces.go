package textclass

import "context"

// Backend is the managed classification service boundary. Implementations
// receive a pre-authenticated client; the core never handles credentials.
// Transient failures should be wrapped in TransientError so the retry layer
// can recognize them.
type Backend interface {
	// CreateDataset registers an empty dataset and returns its backend ID
	CreateDataset(ctx context.Context, name string, classification ClassificationType) (string, error)

	// ImportDataset ingests a staged artifact by URI into the dataset
	ImportDataset(ctx context.Context, datasetID, uri string) error

	// StartTraining begins asynchronous training and returns a job ID
	StartTraining(ctx context.Context, datasetID, modelName string) (string, error)

	// TrainingStatus fetches the current snapshot of a training job
	TrainingStatus(ctx context.Context, jobID string) (TrainingJob, error)

	// Predict runs one input through a deployed model and returns the raw
	// label candidates, unvalidated
	Predict(ctx context.Context, modelID, text string) ([]LabelScore, error)
}

// TrainingCanceller is implemented by backends that can cancel a running
// training job. Backends without it leave cancelled jobs as ABANDONED.
type TrainingCanceller interface {
	CancelTraining(ctx context.Context, jobID string) error
}

// ModelDeployer is implemented by backends that require an explicit deploy
// step before a trained model serves predictions.
type ModelDeployer interface {
	DeployModel(ctx context.Context, modelID string) error
	ModelInfo(ctx context.Context, modelID string) (ModelInfo, error)
}

// ModelEvaluator is implemented by backends that expose per-label
// evaluation metrics for a trained model.
type ModelEvaluator interface {
	Evaluations(ctx context.Context, modelID string) ([]Evaluation, error)
}

// ArtifactStore stages serialized artifacts where the backend can ingest
// them, returning the artifact's URI.
type ArtifactStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// ResultSink persists normalized predictions. Implementations own the
// storage format.
type ResultSink interface {
	Write(ctx context.Context, predictions []Prediction) error
}
