package textclass_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossline/textclass"
	"github.com/mossline/textclass/pkg/testutil"
)

func fastConfig() textclass.Config {
	return textclass.Config{
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
		MaxRetries:   2,
	}
}

func stagedArtifact() *textclass.StagedArtifact {
	return &textclass.StagedArtifact{
		ID:   "ds-test.csv",
		Data: []byte("text,label\n"),
		Rows: 1,
		URI:  "gs://bucket/ds-test.csv",
	}
}

func spec() textclass.TrainingSpec {
	return textclass.TrainingSpec{
		DatasetName:    "happy-moments",
		ModelName:      "happy-model",
		Classification: textclass.Multiclass,
	}
}

func TestTrainer_SucceedsAfterThreePolls(t *testing.T) {
	backend := &testutil.MockBackend{}
	backend.TrainingStatusFunc = func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
		switch backend.StatusCalls() {
		case 1:
			return textclass.TrainingJob{ID: jobID, State: textclass.JobSubmitted}, nil
		case 2:
			return textclass.TrainingJob{ID: jobID, State: textclass.JobRunning}, nil
		default:
			return textclass.TrainingJob{ID: jobID, State: textclass.JobSucceeded, ModelID: "model-789"}, nil
		}
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	handle, err := trainer.Train(context.Background(), stagedArtifact(), spec())
	require.NoError(t, err)

	assert.Equal(t, "model-789", handle.ID)
	assert.Equal(t, "job-123", handle.JobID)
	assert.True(t, handle.Valid())
	assert.Equal(t, 3, backend.StatusCalls())
	assert.Equal(t, 1, backend.StartTrainingCalls)
	assert.Equal(t, "gs://bucket/ds-test.csv", backend.LastImportURI)
}

func TestTrainer_TimeoutIsNotTrainingError(t *testing.T) {
	backend := &testutil.MockBackend{
		TrainingStatusFunc: func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
			return textclass.TrainingJob{ID: jobID, State: textclass.JobRunning}, nil
		},
	}

	cfg := fastConfig()
	cfg.MaxWait = 10 * time.Millisecond

	trainer := textclass.NewTrainer(backend, cfg, nil)
	_, err := trainer.Train(context.Background(), stagedArtifact(), spec())

	var toerr *textclass.TimeoutError
	require.ErrorAs(t, err, &toerr)
	assert.Equal(t, "job-123", toerr.JobID)

	var terr *textclass.TrainingError
	assert.False(t, errors.As(err, &terr), "timeout must not be a TrainingError")

	// The job remains checkable after the timeout.
	job, err := trainer.Status(context.Background(), toerr.JobID)
	require.NoError(t, err)
	assert.Equal(t, textclass.JobRunning, job.State)
}

func TestTrainer_BackendFailure(t *testing.T) {
	backend := &testutil.MockBackend{
		TrainingStatusFunc: func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
			return textclass.TrainingJob{
				ID:         jobID,
				State:      textclass.JobFailed,
				Diagnostic: "not enough examples for label rare_label",
			}, nil
		},
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	_, err := trainer.Train(context.Background(), stagedArtifact(), spec())

	var terr *textclass.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, textclass.JobFailed, terr.State)
	assert.Contains(t, terr.Diagnostic, "rare_label")
}

func TestTrainer_ExternalCancellation(t *testing.T) {
	backend := &testutil.MockBackend{
		TrainingStatusFunc: func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
			return textclass.TrainingJob{ID: jobID, State: textclass.JobCancelled}, nil
		},
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	_, err := trainer.Train(context.Background(), stagedArtifact(), spec())

	var terr *textclass.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, textclass.JobCancelled, terr.State)
}

func TestTrainer_CallerCancellationPropagates(t *testing.T) {
	backend := &testutil.CancellableBackend{
		MockBackend: &testutil.MockBackend{
			TrainingStatusFunc: func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
				return textclass.TrainingJob{ID: jobID, State: textclass.JobRunning}, nil
			},
		},
	}

	cfg := fastConfig()
	cfg.PollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	trainer := textclass.NewTrainer(backend, cfg, nil)
	_, err := trainer.Train(ctx, stagedArtifact(), spec())

	var terr *textclass.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, textclass.JobCancelled, terr.State)
	assert.Equal(t, 1, backend.CancelTrainingCalls)
}

func TestTrainer_CallerCancellationWithoutBackendSupport(t *testing.T) {
	backend := &testutil.MockBackend{
		TrainingStatusFunc: func(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
			return textclass.TrainingJob{ID: jobID, State: textclass.JobRunning}, nil
		},
	}

	cfg := fastConfig()
	cfg.PollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	trainer := textclass.NewTrainer(backend, cfg, nil)
	_, err := trainer.Train(ctx, stagedArtifact(), spec())

	var terr *textclass.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, textclass.JobAbandoned, terr.State)
}

func TestTrainer_TransientSubmissionRetried(t *testing.T) {
	attempts := 0
	backend := &testutil.MockBackend{
		CreateDatasetFunc: func(ctx context.Context, name string, classification textclass.ClassificationType) (string, error) {
			attempts++
			if attempts < 3 {
				return "", &textclass.TransientError{Err: errors.New("connection reset")}
			}
			return "dataset-456", nil
		},
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	handle, err := trainer.Train(context.Background(), stagedArtifact(), spec())
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	assert.True(t, handle.Valid())
	assert.Equal(t, "dataset-456", backend.LastDatasetID)
}

func TestTrainer_PermanentSubmissionNotRetried(t *testing.T) {
	backend := &testutil.MockBackend{
		StartTrainingFunc: func(ctx context.Context, datasetID, modelName string) (string, error) {
			return "", errors.New("permission denied")
		},
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	_, err := trainer.Train(context.Background(), stagedArtifact(), spec())

	var terr *textclass.TrainingError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Diagnostic, "permission denied")
	assert.Equal(t, 1, backend.StartTrainingCalls)
	assert.Equal(t, 0, backend.TrainingStatusCalls)
}

func TestTrainer_RejectsUnstagedArtifact(t *testing.T) {
	trainer := textclass.NewTrainer(&testutil.MockBackend{}, fastConfig(), nil)

	_, err := trainer.Train(context.Background(), &textclass.StagedArtifact{ID: "a.csv"}, spec())
	var serr *textclass.StagingError
	require.ErrorAs(t, err, &serr)
}

func TestTrainer_DeployUndeployedModel(t *testing.T) {
	backend := &testutil.DeployableBackend{MockBackend: &testutil.MockBackend{}}
	backend.ModelInfoFunc = func(ctx context.Context, modelID string) (textclass.ModelInfo, error) {
		deployed := backend.DeployModelCalls > 0
		return textclass.ModelInfo{ID: modelID, Name: "happy-model", Deployed: deployed}, nil
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	info, err := trainer.Deploy(context.Background(), textclass.ModelHandle{ID: "model-123", JobID: "job-123"})
	require.NoError(t, err)

	assert.True(t, info.Deployed)
	assert.Equal(t, "model-123", info.ID)
	assert.Equal(t, 1, backend.DeployModelCalls)
	assert.Equal(t, 2, backend.ModelInfoCalls)
}

func TestTrainer_DeployAlreadyDeployedModel(t *testing.T) {
	backend := &testutil.DeployableBackend{MockBackend: &testutil.MockBackend{}}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	info, err := trainer.Deploy(context.Background(), textclass.ModelHandle{ID: "model-123", JobID: "job-123"})
	require.NoError(t, err)

	assert.True(t, info.Deployed)
	assert.Equal(t, 0, backend.DeployModelCalls, "a deployed model must not be redeployed")
	assert.Equal(t, 1, backend.ModelInfoCalls)
}

func TestTrainer_DeployUnsupportedBackend(t *testing.T) {
	trainer := textclass.NewTrainer(&testutil.MockBackend{}, fastConfig(), nil)

	_, err := trainer.Deploy(context.Background(), textclass.ModelHandle{ID: "model-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support deployment")
}

func TestTrainer_DeployInvalidHandle(t *testing.T) {
	backend := &testutil.DeployableBackend{MockBackend: &testutil.MockBackend{}}
	trainer := textclass.NewTrainer(backend, fastConfig(), nil)

	_, err := trainer.Deploy(context.Background(), textclass.ModelHandle{})
	require.Error(t, err)
	assert.Equal(t, 0, backend.ModelInfoCalls)
}

func TestTrainer_DeployRetriesTransientModelInfo(t *testing.T) {
	backend := &testutil.DeployableBackend{MockBackend: &testutil.MockBackend{}}
	backend.ModelInfoFunc = func(ctx context.Context, modelID string) (textclass.ModelInfo, error) {
		if backend.ModelInfoCalls == 1 {
			return textclass.ModelInfo{}, &textclass.TransientError{Err: errors.New("unavailable")}
		}
		return textclass.ModelInfo{ID: modelID, Deployed: true}, nil
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	info, err := trainer.Deploy(context.Background(), textclass.ModelHandle{ID: "model-123", JobID: "job-123"})
	require.NoError(t, err)

	assert.True(t, info.Deployed)
	assert.Equal(t, 2, backend.ModelInfoCalls)
}

func TestTrainer_Evaluations(t *testing.T) {
	backend := &testutil.EvaluatingBackend{MockBackend: &testutil.MockBackend{}}
	backend.EvaluationsFunc = func(ctx context.Context, modelID string) ([]textclass.Evaluation, error) {
		return []textclass.Evaluation{
			{Label: "", AUPRC: 0.91, ExampleCount: 300},
			{Label: "exercise", AUPRC: 0.88, ExampleCount: 120},
		}, nil
	}

	trainer := textclass.NewTrainer(backend, fastConfig(), nil)
	evals, err := trainer.Evaluations(context.Background(), textclass.ModelHandle{ID: "model-123", JobID: "job-123"})
	require.NoError(t, err)

	require.Len(t, evals, 2)
	assert.Equal(t, "exercise", evals[1].Label)
	assert.Equal(t, 0.88, evals[1].AUPRC)
	assert.Equal(t, 1, backend.EvaluationsCalls)
}

func TestTrainer_EvaluationsUnsupportedBackend(t *testing.T) {
	trainer := textclass.NewTrainer(&testutil.MockBackend{}, fastConfig(), nil)

	_, err := trainer.Evaluations(context.Background(), textclass.ModelHandle{ID: "model-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not expose evaluations")
}

func TestTrainer_ConcurrentJobs(t *testing.T) {
	backend := &testutil.MockBackend{}
	trainer := textclass.NewTrainer(backend, fastConfig(), nil)

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := trainer.Train(context.Background(), stagedArtifact(), spec())
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, 2, backend.StartTrainingCalls)
}
