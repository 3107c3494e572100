// Package automl adapts Google Cloud AutoML Natural Language to the
// textclass backend interfaces.
package automl

import (
	"context"
	"fmt"
	"strings"

	automl "cloud.google.com/go/automl/apiv1"
	"cloud.google.com/go/automl/apiv1/automlpb"
	"cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mossline/textclass"
)

// Client implements the textclass backend interfaces on AutoML. The caller
// supplies authentication through client options; Client never reads
// credentials itself.
type Client struct {
	ml         *automl.Client
	prediction *automl.PredictionClient
	project    string
	region     string
}

// New creates an AutoML-backed client for the given project and region.
func New(ctx context.Context, project, region string, opts ...option.ClientOption) (*Client, error) {
	ml, err := automl.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating automl client: %w", err)
	}

	prediction, err := automl.NewPredictionClient(ctx, opts...)
	if err != nil {
		ml.Close()
		return nil, fmt.Errorf("creating prediction client: %w", err)
	}

	return &Client{ml: ml, prediction: prediction, project: project, region: region}, nil
}

// Close releases both underlying gRPC clients.
func (c *Client) Close() error {
	err := c.ml.Close()
	if perr := c.prediction.Close(); err == nil {
		err = perr
	}
	return err
}

// CreateDataset registers a text-classification dataset and returns its ID.
func (c *Client) CreateDataset(ctx context.Context, name string, classification textclass.ClassificationType) (string, error) {
	ct := automlpb.ClassificationType_MULTICLASS
	if classification == textclass.Multilabel {
		ct = automlpb.ClassificationType_MULTILABEL
	}

	op, err := c.ml.CreateDataset(ctx, &automlpb.CreateDatasetRequest{
		Parent: c.parent(),
		Dataset: &automlpb.Dataset{
			DisplayName: name,
			DatasetMetadata: &automlpb.Dataset_TextClassificationDatasetMetadata{
				TextClassificationDatasetMetadata: &automlpb.TextClassificationDatasetMetadata{
					ClassificationType: ct,
				},
			},
		},
	})
	if err != nil {
		return "", wrapTransient(err)
	}

	ds, err := op.Wait(ctx)
	if err != nil {
		return "", wrapTransient(err)
	}
	return lastSegment(ds.GetName()), nil
}

// ImportDataset ingests a staged CSV by URI into the dataset.
func (c *Client) ImportDataset(ctx context.Context, datasetID, uri string) error {
	op, err := c.ml.ImportData(ctx, &automlpb.ImportDataRequest{
		Name: c.datasetPath(datasetID),
		InputConfig: &automlpb.InputConfig{
			Source: &automlpb.InputConfig_GcsSource{
				GcsSource: &automlpb.GcsSource{InputUris: []string{uri}},
			},
		},
	})
	if err != nil {
		return wrapTransient(err)
	}
	if err := op.Wait(ctx); err != nil {
		return wrapTransient(err)
	}
	return nil
}

// StartTraining begins model creation and returns the operation name as the
// job ID. Training itself runs asynchronously on the backend.
func (c *Client) StartTraining(ctx context.Context, datasetID, modelName string) (string, error) {
	op, err := c.ml.CreateModel(ctx, &automlpb.CreateModelRequest{
		Parent: c.parent(),
		Model: &automlpb.Model{
			DisplayName: modelName,
			DatasetId:   datasetID,
			ModelMetadata: &automlpb.Model_TextClassificationModelMetadata{
				TextClassificationModelMetadata: &automlpb.TextClassificationModelMetadata{},
			},
		},
	})
	if err != nil {
		return "", wrapTransient(err)
	}
	return op.Name(), nil
}

// TrainingStatus polls the model-creation operation once and maps it onto
// the job state machine.
func (c *Client) TrainingStatus(ctx context.Context, jobID string) (textclass.TrainingJob, error) {
	op := c.ml.CreateModelOperation(jobID)

	model, err := op.Poll(ctx)
	if err != nil {
		if !op.Done() {
			// The poll RPC itself failed; the job state is unchanged.
			return textclass.TrainingJob{}, wrapTransient(err)
		}
		state := textclass.JobFailed
		if status.Code(err) == codes.Canceled {
			state = textclass.JobCancelled
		}
		return textclass.TrainingJob{ID: jobID, State: state, Diagnostic: err.Error()}, nil
	}

	if !op.Done() {
		return textclass.TrainingJob{ID: jobID, State: textclass.JobRunning}, nil
	}
	return textclass.TrainingJob{
		ID:      jobID,
		State:   textclass.JobSucceeded,
		ModelID: lastSegment(model.GetName()),
	}, nil
}

// CancelTraining asks the backend to cancel the model-creation operation.
func (c *Client) CancelTraining(ctx context.Context, jobID string) error {
	err := c.ml.LROClient.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: jobID})
	if err != nil {
		return wrapTransient(err)
	}
	return nil
}

// DeployModel makes a trained model servable. AutoML models must be
// deployed before Predict accepts requests.
func (c *Client) DeployModel(ctx context.Context, modelID string) error {
	op, err := c.ml.DeployModel(ctx, &automlpb.DeployModelRequest{Name: c.modelPath(modelID)})
	if err != nil {
		return wrapTransient(err)
	}
	if err := op.Wait(ctx); err != nil {
		return wrapTransient(err)
	}
	return nil
}

// ModelInfo fetches the backend's view of a model.
func (c *Client) ModelInfo(ctx context.Context, modelID string) (textclass.ModelInfo, error) {
	model, err := c.ml.GetModel(ctx, &automlpb.GetModelRequest{Name: c.modelPath(modelID)})
	if err != nil {
		return textclass.ModelInfo{}, wrapTransient(err)
	}
	return textclass.ModelInfo{
		ID:       modelID,
		Name:     model.GetDisplayName(),
		Deployed: model.GetDeploymentState() == automlpb.Model_DEPLOYED,
	}, nil
}

// Evaluations lists classification evaluation metrics for a model.
func (c *Client) Evaluations(ctx context.Context, modelID string) ([]textclass.Evaluation, error) {
	it := c.ml.ListModelEvaluations(ctx, &automlpb.ListModelEvaluationsRequest{
		Parent: c.modelPath(modelID),
	})

	var evals []textclass.Evaluation
	for {
		ev, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapTransient(err)
		}

		metrics := ev.GetClassificationEvaluationMetrics()
		if metrics == nil {
			continue
		}
		evals = append(evals, textclass.Evaluation{
			Label:        ev.GetDisplayName(),
			AUPRC:        float64(metrics.GetAuPrc()),
			ExampleCount: int(ev.GetEvaluatedExampleCount()),
		})
	}
	return evals, nil
}

// Predict runs one text snippet through a deployed model.
func (c *Client) Predict(ctx context.Context, modelID, text string) ([]textclass.LabelScore, error) {
	resp, err := c.prediction.Predict(ctx, &automlpb.PredictRequest{
		Name: c.modelPath(modelID),
		Payload: &automlpb.ExamplePayload{
			Payload: &automlpb.ExamplePayload_TextSnippet{
				TextSnippet: &automlpb.TextSnippet{
					Content:  text,
					MimeType: "text/plain",
				},
			},
		},
	})
	if err != nil {
		return nil, wrapTransient(err)
	}

	candidates := make([]textclass.LabelScore, 0, len(resp.GetPayload()))
	for _, payload := range resp.GetPayload() {
		candidates = append(candidates, textclass.LabelScore{
			Label: payload.GetDisplayName(),
			Score: float64(payload.GetClassification().GetScore()),
		})
	}
	return candidates, nil
}

func (c *Client) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.project, c.region)
}

func (c *Client) datasetPath(datasetID string) string {
	return fmt.Sprintf("%s/datasets/%s", c.parent(), datasetID)
}

func (c *Client) modelPath(modelID string) string {
	return fmt.Sprintf("%s/models/%s", c.parent(), modelID)
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// wrapTransient marks retryable gRPC failures so the core's retry layer
// recognizes them.
func wrapTransient(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return &textclass.TransientError{Err: err}
	}
	return err
}
