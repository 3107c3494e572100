package textclass

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mossline/textclass/internal/retry"
)

// TrainingSpec names the backend dataset and model a training run creates.
type TrainingSpec struct {
	// DatasetName is the display name for the backend dataset
	DatasetName string

	// ModelName is the display name for the trained model
	ModelName string

	// Classification is MULTICLASS or MULTILABEL
	Classification ClassificationType
}

// Trainer submits staged artifacts to the backend and drives the
// asynchronous training lifecycle to a terminal state.
//
// A Trainer holds no per-job state, so one Trainer may run multiple
// training jobs concurrently on distinct datasets.
type Trainer struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewTrainer creates a Trainer. A nil logger disables logging.
func NewTrainer(backend Backend, cfg Config, logger *zap.Logger) *Trainer {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{backend: backend, cfg: cfg, logger: logger, now: time.Now}
}

// Train creates a backend dataset, ingests the staged artifact, starts
// training and polls until the job reaches a terminal state.
//
// Transient submission failures are retried with bounded backoff; once the
// job is submitted it is never resubmitted, since training consumes backend
// quota. Exceeding MaxWait returns a TimeoutError rather than a
// TrainingError: the job may still complete and remains checkable through
// Status with the job ID carried by the error.
func (t *Trainer) Train(ctx context.Context, artifact *StagedArtifact, spec TrainingSpec) (*ModelHandle, error) {
	if artifact == nil || artifact.URI == "" {
		return nil, &StagingError{Reason: "artifact has not been staged"}
	}
	if !spec.Classification.Valid() {
		return nil, &TrainingError{Diagnostic: fmt.Sprintf("classification type must be %q or %q, got %q", Multiclass, Multilabel, spec.Classification)}
	}

	var datasetID string
	err := t.call(ctx, "create dataset", func(cctx context.Context) error {
		var err error
		datasetID, err = t.backend.CreateDataset(cctx, spec.DatasetName, spec.Classification)
		return err
	})
	if err != nil {
		return nil, &TrainingError{Diagnostic: fmt.Sprintf("creating dataset %q: %v", spec.DatasetName, err)}
	}
	t.logger.Info("created backend dataset",
		zap.String("dataset", spec.DatasetName),
		zap.String("dataset_id", datasetID))

	err = t.call(ctx, "import dataset", func(cctx context.Context) error {
		return t.backend.ImportDataset(cctx, datasetID, artifact.URI)
	})
	if err != nil {
		return nil, &TrainingError{Diagnostic: fmt.Sprintf("importing %q into dataset %q: %v", artifact.URI, datasetID, err)}
	}
	t.logger.Info("imported artifact",
		zap.String("dataset_id", datasetID),
		zap.String("uri", artifact.URI),
		zap.Int("rows", artifact.Rows))

	var jobID string
	err = t.call(ctx, "start training", func(cctx context.Context) error {
		var err error
		jobID, err = t.backend.StartTraining(cctx, datasetID, spec.ModelName)
		return err
	})
	if err != nil {
		return nil, &TrainingError{Diagnostic: fmt.Sprintf("starting training on dataset %q: %v", datasetID, err)}
	}
	t.logger.Info("training submitted",
		zap.String("job_id", jobID),
		zap.String("state", string(JobSubmitted)))

	return t.poll(ctx, jobID)
}

// poll drives the job state machine SUBMITTED -> RUNNING -> terminal.
func (t *Trainer) poll(ctx context.Context, jobID string) (*ModelHandle, error) {
	deadline := t.now().Add(t.cfg.MaxWait)
	lastState := JobSubmitted

	for {
		job, err := t.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, t.stopPolling(ctx, jobID)
			}
			return nil, &TrainingError{JobID: jobID, State: lastState, Diagnostic: fmt.Sprintf("status check failed: %v", err)}
		}

		if job.State != lastState {
			t.logger.Info("training state changed",
				zap.String("job_id", jobID),
				zap.String("from", string(lastState)),
				zap.String("to", string(job.State)))
			lastState = job.State
		}

		switch job.State {
		case JobSucceeded:
			return &ModelHandle{ID: job.ModelID, JobID: jobID, CreatedAt: t.now()}, nil
		case JobFailed:
			return nil, &TrainingError{JobID: jobID, State: JobFailed, Diagnostic: job.Diagnostic}
		case JobCancelled:
			diagnostic := job.Diagnostic
			if diagnostic == "" {
				diagnostic = "cancelled on the backend"
			}
			return nil, &TrainingError{JobID: jobID, State: JobCancelled, Diagnostic: diagnostic}
		}

		if t.now().After(deadline) {
			return nil, &TimeoutError{JobID: jobID, Waited: t.cfg.MaxWait}
		}

		timer := time.NewTimer(t.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, t.stopPolling(ctx, jobID)
		case <-timer.C:
		}
	}
}

// stopPolling handles caller-initiated cancellation. When the backend
// supports cancellation the request is propagated; otherwise the job is
// reported ABANDONED, since it may keep running on the backend.
func (t *Trainer) stopPolling(ctx context.Context, jobID string) error {
	canceller, ok := t.backend.(TrainingCanceller)
	if !ok {
		t.logger.Warn("polling stopped, backend does not support cancellation",
			zap.String("job_id", jobID))
		return &TrainingError{JobID: jobID, State: JobAbandoned, Diagnostic: "polling stopped by caller; backend job may still be running"}
	}

	// The caller's context is already done, so the cancel request gets its
	// own bounded context.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.CallTimeout)
	defer cancel()

	if err := canceller.CancelTraining(cctx, jobID); err != nil {
		t.logger.Warn("backend cancellation failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		return &TrainingError{JobID: jobID, State: JobAbandoned, Diagnostic: fmt.Sprintf("cancellation request failed: %v; backend job may still be running", err)}
	}

	t.logger.Info("training cancelled", zap.String("job_id", jobID))
	return &TrainingError{JobID: jobID, State: JobCancelled, Diagnostic: "cancelled by caller"}
}

// Status fetches the current snapshot of a training job. Useful after a
// TimeoutError, where the job may still reach SUCCEEDED.
func (t *Trainer) Status(ctx context.Context, jobID string) (TrainingJob, error) {
	var job TrainingJob
	err := t.call(ctx, "training status", func(cctx context.Context) error {
		var err error
		job, err = t.backend.TrainingStatus(cctx, jobID)
		return err
	})
	return job, err
}

// Deploy makes a trained model servable, for backends with an explicit
// deploy step. Returns the backend's model info afterwards.
func (t *Trainer) Deploy(ctx context.Context, handle ModelHandle) (ModelInfo, error) {
	deployer, ok := t.backend.(ModelDeployer)
	if !ok {
		return ModelInfo{}, fmt.Errorf("backend does not support deployment")
	}
	if !handle.Valid() {
		return ModelInfo{}, fmt.Errorf("invalid model handle")
	}

	info, err := t.modelInfo(ctx, deployer, handle.ID)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("fetching model %q: %w", handle.ID, err)
	}
	if info.Deployed {
		return info, nil
	}

	err = t.call(ctx, "deploy model", func(cctx context.Context) error {
		return deployer.DeployModel(cctx, handle.ID)
	})
	if err != nil {
		return ModelInfo{}, fmt.Errorf("deploying model %q: %w", handle.ID, err)
	}

	info, err = t.modelInfo(ctx, deployer, handle.ID)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("fetching model %q after deploy: %w", handle.ID, err)
	}
	return info, nil
}

func (t *Trainer) modelInfo(ctx context.Context, deployer ModelDeployer, modelID string) (ModelInfo, error) {
	var info ModelInfo
	err := t.call(ctx, "model info", func(cctx context.Context) error {
		var err error
		info, err = deployer.ModelInfo(cctx, modelID)
		return err
	})
	return info, err
}

// Evaluations fetches per-label evaluation metrics for a trained model.
func (t *Trainer) Evaluations(ctx context.Context, handle ModelHandle) ([]Evaluation, error) {
	evaluator, ok := t.backend.(ModelEvaluator)
	if !ok {
		return nil, fmt.Errorf("backend does not expose evaluations")
	}
	if !handle.Valid() {
		return nil, fmt.Errorf("invalid model handle")
	}

	var evals []Evaluation
	err := t.call(ctx, "list evaluations", func(cctx context.Context) error {
		var err error
		evals, err = evaluator.Evaluations(cctx, handle.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing evaluations for model %q: %w", handle.ID, err)
	}
	return evals, nil
}

// call runs one backend call with a per-call timeout and bounded retry of
// transient failures.
func (t *Trainer) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	rcfg := retry.DefaultConfig()
	rcfg.MaxRetries = t.cfg.MaxRetries

	return retry.Do(ctx, rcfg, t.logger, operation, IsTransient, func() error {
		cctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		defer cancel()
		return fn(cctx)
	})
}
