// Command textclass prepares a labeled CSV, trains a text-classification
// model on Google Cloud AutoML and applies the trained model to new inputs.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mossline/textclass"
	"github.com/mossline/textclass/adapters/automl"
	"github.com/mossline/textclass/adapters/gcs"
	"github.com/mossline/textclass/internal/logging"
	"github.com/mossline/textclass/sink"
)

func main() {
	var (
		mode           = flag.String("mode", "train", "train, predict or evaluate")
		input          = flag.String("input", "", "input CSV: text,label rows for train, text rows for predict")
		project        = flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID")
		region         = flag.String("region", "us-central1", "GCP region")
		bucket         = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for staging artifacts")
		datasetName    = flag.String("dataset-name", "", "display name for the backend dataset")
		modelName      = flag.String("model-name", "", "display name for the trained model")
		modelID        = flag.String("model", "", "trained model ID, for predict and evaluate")
		classification = flag.String("classification", string(textclass.Multiclass), "MULTICLASS or MULTILABEL")
		strictness     = flag.String("strictness", string(textclass.Strict), "strict or lenient validation")
		out            = flag.String("out", "predictions.csv", "prediction output: .csv or .db path")
		deploy         = flag.Bool("deploy", false, "deploy the model after training")
		pollInterval   = flag.Duration("poll-interval", textclass.DefaultPollInterval, "pause between training status checks")
		maxWait        = flag.Duration("max-wait", textclass.DefaultMaxWait, "maximum total time to wait for training")
		maxRetries     = flag.Int("max-retries", textclass.DefaultMaxRetries, "retries for transient backend failures")
		concurrency    = flag.Int("concurrency", textclass.DefaultConcurrencyLimit, "concurrent inference requests")
		logLevel       = flag.String("log-level", "info", "zap log level")
		logFormat      = flag.String("log-format", "console", "json or console")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.New(*logLevel, *logFormat)
	defer logger.Sync()

	if *strictness != string(textclass.Strict) && *strictness != string(textclass.Lenient) {
		logger.Fatal("invalid -strictness", zap.String("strictness", *strictness))
	}

	cfg := textclass.Config{
		Strictness:       textclass.Strictness(*strictness),
		PollInterval:     *pollInterval,
		MaxWait:          *maxWait,
		MaxRetries:       *maxRetries,
		ConcurrencyLimit: *concurrency,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *project == "" {
		logger.Fatal("missing -project (or GCP_PROJECT)")
	}

	backend, err := automl.New(ctx, *project, *region)
	if err != nil {
		logger.Fatal("creating automl client", zap.Error(err))
	}
	defer backend.Close()

	switch *mode {
	case "train":
		err = runTrain(ctx, logger, cfg, backend, *input, *bucket, *datasetName, *modelName, *classification, *deploy)
	case "predict":
		err = runPredict(ctx, logger, cfg, backend, *input, *modelID, *out)
	case "evaluate":
		err = runEvaluate(ctx, logger, cfg, backend, *modelID)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal("run failed", zap.String("mode", *mode), zap.Error(err))
	}
}

func runTrain(ctx context.Context, logger *zap.Logger, cfg textclass.Config, backend *automl.Client,
	input, bucket, datasetName, modelName, classification string, deploy bool) error {

	if input == "" || bucket == "" || datasetName == "" || modelName == "" {
		return fmt.Errorf("train mode requires -input, -bucket, -dataset-name and -model-name")
	}

	raw, err := readCSV(input, true)
	if err != nil {
		return err
	}

	formatter := textclass.NewFormatter(cfg, logger)
	dataset, err := formatter.Format(datasetName, textclass.ClassificationType(classification), raw)
	if err != nil {
		return err
	}
	logger.Info("formatted dataset",
		zap.Int("records", len(dataset.Records)),
		zap.Int("skipped", dataset.Skipped),
		zap.Strings("labels", dataset.Labels()))

	assembler := textclass.NewAssembler(cfg, logger)
	artifact, err := assembler.Assemble(dataset)
	if err != nil {
		return err
	}

	store, err := gcs.New(ctx, bucket)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := assembler.Stage(ctx, store, artifact); err != nil {
		return err
	}

	trainer := textclass.NewTrainer(backend, cfg, logger)
	start := time.Now()
	handle, err := trainer.Train(ctx, artifact, textclass.TrainingSpec{
		DatasetName:    datasetName,
		ModelName:      modelName,
		Classification: dataset.Type,
	})
	if err != nil {
		return err
	}
	logger.Info("training succeeded",
		zap.String("model_id", handle.ID),
		zap.Duration("took", time.Since(start)))

	if deploy {
		info, err := trainer.Deploy(ctx, *handle)
		if err != nil {
			return err
		}
		logger.Info("model deployed", zap.String("model_id", info.ID), zap.String("name", info.Name))
	}

	fmt.Println(handle.ID)
	return nil
}

func runPredict(ctx context.Context, logger *zap.Logger, cfg textclass.Config, backend *automl.Client,
	input, modelID, out string) error {

	if input == "" || modelID == "" {
		return fmt.Errorf("predict mode requires -input and -model")
	}

	raw, err := readCSV(input, false)
	if err != nil {
		return err
	}

	formatter := textclass.NewFormatter(cfg, logger)
	inputs, err := formatter.FormatInputs(raw)
	if err != nil {
		return err
	}

	predictor := textclass.NewPredictor(backend, cfg, logger)
	items, err := predictor.Predict(ctx, textclass.ModelHandle{ID: modelID}, inputs)
	if err != nil {
		return err
	}

	var predictions []textclass.Prediction
	for _, item := range items {
		if item.Err != nil {
			logger.Warn("prediction failed for input",
				zap.Int("index", item.Index),
				zap.String("input_id", item.InputID),
				zap.Error(item.Err))
			continue
		}
		predictions = append(predictions, *item.Prediction)
	}

	resultSink, closeSink, err := openSink(out)
	if err != nil {
		return err
	}
	defer closeSink()

	if err := resultSink.Write(ctx, predictions); err != nil {
		return err
	}
	logger.Info("predictions written",
		zap.String("out", out),
		zap.Int("succeeded", len(predictions)),
		zap.Int("failed", len(items)-len(predictions)))
	return nil
}

func runEvaluate(ctx context.Context, logger *zap.Logger, cfg textclass.Config, backend *automl.Client, modelID string) error {
	if modelID == "" {
		return fmt.Errorf("evaluate mode requires -model")
	}

	trainer := textclass.NewTrainer(backend, cfg, logger)
	evals, err := trainer.Evaluations(ctx, textclass.ModelHandle{ID: modelID})
	if err != nil {
		return err
	}

	for _, ev := range evals {
		label := ev.Label
		if label == "" {
			label = "(all)"
		}
		fmt.Printf("%s\tauprc=%.4f\texamples=%d\n", label, ev.AUPRC, ev.ExampleCount)
	}
	return nil
}

// openSink picks a result sink from the output path extension.
func openSink(out string) (textclass.ResultSink, func() error, error) {
	if len(out) > 3 && out[len(out)-3:] == ".db" {
		s, err := sink.OpenSQLite(out)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	f, err := os.Create(out)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %q: %w", out, err)
	}
	return sink.NewCSV(f), f.Close, nil
}

// readCSV loads headerless input rows: text,label when labeled, one text
// column otherwise.
func readCSV(path string, labeled bool) ([]textclass.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []textclass.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}

		rec := textclass.Record{Text: row[0]}
		if labeled {
			if len(row) < 2 {
				return nil, fmt.Errorf("reading %q: row %d has no label column", path, len(records)+1)
			}
			rec.Label = row[1]
		}
		records = append(records, rec)
	}
	return records, nil
}
