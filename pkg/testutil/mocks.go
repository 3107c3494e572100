// Package testutil provides mock implementations of the textclass
// collaborator interfaces for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/mossline/textclass"
)

// MockBackend is a mock implementation of the Backend interface. It does
// not implement TrainingCanceller; wrap it in CancellableBackend for
// cancellation paths.
type MockBackend struct {
	CreateDatasetFunc  func(ctx context.Context, name string, classification textclass.ClassificationType) (string, error)
	ImportDatasetFunc  func(ctx context.Context, datasetID, uri string) error
	StartTrainingFunc  func(ctx context.Context, datasetID, modelName string) (string, error)
	TrainingStatusFunc func(ctx context.Context, jobID string) (textclass.TrainingJob, error)
	PredictFunc        func(ctx context.Context, modelID, text string) ([]textclass.LabelScore, error)

	mu                  sync.Mutex
	CreateDatasetCalls  int
	ImportDatasetCalls  int
	StartTrainingCalls  int
	TrainingStatusCalls int
	PredictCalls        int
	LastDatasetID       string
	LastImportURI       string
	LastJobID           string
}

func (m *MockBackend) CreateDataset(ctx context.Context, name string, classification textclass.ClassificationType) (string, error) {
	m.mu.Lock()
	m.CreateDatasetCalls++
	m.mu.Unlock()

	if m.CreateDatasetFunc != nil {
		return m.CreateDatasetFunc(ctx, name, classification)
	}
	return "dataset-123", nil
}

func (m *MockBackend) ImportDataset(ctx context.Context, datasetID, uri string) error {
	m.mu.Lock()
	m.ImportDatasetCalls++
	m.LastDatasetID = datasetID
	m.LastImportURI = uri
	m.mu.Unlock()

	if m.ImportDatasetFunc != nil {
		return m.ImportDatasetFunc(ctx, datasetID, uri)
	}
	return nil
}

func (m *MockBackend) StartTraining(ctx context.Context, datasetID, modelName string) (string, error) {
	m.mu.Lock()
	m.StartTrainingCalls++
	m.LastDatasetID = datasetID
	m.mu.Unlock()

	if m.StartTrainingFunc != nil {
		return m.StartTrainingFunc(ctx, datasetID, modelName)
	}
	return "job-123", nil
}

func (m *MockBackend) TrainingStatus(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
	m.mu.Lock()
	m.TrainingStatusCalls++
	m.LastJobID = jobID
	m.mu.Unlock()

	if m.TrainingStatusFunc != nil {
		return m.TrainingStatusFunc(ctx, jobID)
	}
	return textclass.TrainingJob{ID: jobID, State: textclass.JobSucceeded, ModelID: "model-123"}, nil
}

func (m *MockBackend) Predict(ctx context.Context, modelID, text string) ([]textclass.LabelScore, error) {
	m.mu.Lock()
	m.PredictCalls++
	m.mu.Unlock()

	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, modelID, text)
	}
	return []textclass.LabelScore{{Label: "affection", Score: 0.9}}, nil
}

// StatusCalls returns the number of TrainingStatus calls so far.
func (m *MockBackend) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TrainingStatusCalls
}

// CancellableBackend extends MockBackend with a cancellation path.
type CancellableBackend struct {
	*MockBackend

	CancelTrainingFunc  func(ctx context.Context, jobID string) error
	cancelMu            sync.Mutex
	CancelTrainingCalls int
}

func (m *CancellableBackend) CancelTraining(ctx context.Context, jobID string) error {
	m.cancelMu.Lock()
	m.CancelTrainingCalls++
	m.cancelMu.Unlock()

	if m.CancelTrainingFunc != nil {
		return m.CancelTrainingFunc(ctx, jobID)
	}
	return nil
}

// DeployableBackend extends MockBackend with deploy and model-info paths.
type DeployableBackend struct {
	*MockBackend

	DeployModelFunc func(ctx context.Context, modelID string) error
	ModelInfoFunc   func(ctx context.Context, modelID string) (textclass.ModelInfo, error)

	deployMu         sync.Mutex
	DeployModelCalls int
	ModelInfoCalls   int
}

func (m *DeployableBackend) DeployModel(ctx context.Context, modelID string) error {
	m.deployMu.Lock()
	m.DeployModelCalls++
	m.deployMu.Unlock()

	if m.DeployModelFunc != nil {
		return m.DeployModelFunc(ctx, modelID)
	}
	return nil
}

func (m *DeployableBackend) ModelInfo(ctx context.Context, modelID string) (textclass.ModelInfo, error) {
	m.deployMu.Lock()
	m.ModelInfoCalls++
	m.deployMu.Unlock()

	if m.ModelInfoFunc != nil {
		return m.ModelInfoFunc(ctx, modelID)
	}
	return textclass.ModelInfo{ID: modelID, Name: "mock-model", Deployed: true}, nil
}

// EvaluatingBackend extends MockBackend with evaluation listing.
type EvaluatingBackend struct {
	*MockBackend

	EvaluationsFunc func(ctx context.Context, modelID string) ([]textclass.Evaluation, error)

	evalMu           sync.Mutex
	EvaluationsCalls int
}

func (m *EvaluatingBackend) Evaluations(ctx context.Context, modelID string) ([]textclass.Evaluation, error) {
	m.evalMu.Lock()
	m.EvaluationsCalls++
	m.evalMu.Unlock()

	if m.EvaluationsFunc != nil {
		return m.EvaluationsFunc(ctx, modelID)
	}
	return []textclass.Evaluation{{Label: "", AUPRC: 0.95, ExampleCount: 100}}, nil
}

// MockArtifactStore is a mock implementation of ArtifactStore.
type MockArtifactStore struct {
	PutFunc func(ctx context.Context, name string, data []byte) (string, error)

	mu       sync.Mutex
	PutCalls int
	Objects  map[string][]byte
}

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{Objects: make(map[string][]byte)}
}

func (m *MockArtifactStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	m.PutCalls++
	m.Objects[name] = data
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, name, data)
	}
	return "gs://mock-bucket/" + name, nil
}

// MockSink is a mock implementation of ResultSink.
type MockSink struct {
	WriteFunc func(ctx context.Context, predictions []textclass.Prediction) error

	mu         sync.Mutex
	WriteCalls int
	Written    []textclass.Prediction
}

func (m *MockSink) Write(ctx context.Context, predictions []textclass.Prediction) error {
	m.mu.Lock()
	m.WriteCalls++
	m.Written = append(m.Written, predictions...)
	m.mu.Unlock()

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, predictions)
	}
	return nil
}
