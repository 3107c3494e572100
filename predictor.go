package textclass

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mossline/textclass/internal/retry"
)

// BatchItem is the outcome of one input within a prediction batch. Exactly
// one of Prediction and Err is set.
type BatchItem struct {
	// Index is the input's position in the batch
	Index int

	// InputID is the record identifier, when present
	InputID string

	Prediction *Prediction
	Err        error
}

// Predictor sends inputs to a deployed model and normalizes the backend's
// responses into Predictions.
type Predictor struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger
}

// NewPredictor creates a Predictor. A nil logger disables logging.
func NewPredictor(backend Backend, cfg Config, logger *zap.Logger) *Predictor {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{backend: backend, cfg: cfg, logger: logger}
}

// Predict runs every input through the model and returns one BatchItem per
// input, in input order. A failure on one item never drops or reorders the
// others; the item carries its own error instead. The returned error is
// non-nil only when the whole batch could not run.
//
// Requests are issued by a bounded worker pool; ordering is restored by
// input index, so results are deterministic regardless of completion order.
func (p *Predictor) Predict(ctx context.Context, handle ModelHandle, inputs []Record) ([]BatchItem, error) {
	if !handle.Valid() {
		return nil, &PredictionError{Index: -1, Reason: "invalid model handle"}
	}
	if len(inputs) == 0 {
		return nil, &PredictionError{ModelID: handle.ID, Index: -1, Reason: "no inputs"}
	}

	results := make([]BatchItem, len(inputs))

	workers := p.cfg.ConcurrencyLimit
	if workers > len(inputs) {
		workers = len(inputs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.predictOne(ctx, handle, idx, inputs[idx])
			}
		}()
	}

	for idx := range inputs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, item := range results {
		if item.Err != nil {
			failed++
		}
	}
	p.logger.Info("prediction batch finished",
		zap.String("model_id", handle.ID),
		zap.Int("inputs", len(inputs)),
		zap.Int("failed", failed))

	return results, nil
}

func (p *Predictor) predictOne(ctx context.Context, handle ModelHandle, index int, input Record) BatchItem {
	item := BatchItem{Index: index, InputID: input.ID}

	if strings.TrimSpace(input.Text) == "" {
		item.Err = &PredictionError{ModelID: handle.ID, Index: index, Reason: "empty text"}
		return item
	}

	rcfg := retry.DefaultConfig()
	rcfg.MaxRetries = p.cfg.MaxRetries

	var candidates []LabelScore
	err := retry.Do(ctx, rcfg, p.logger, "predict", IsTransient, func() error {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()

		var err error
		candidates, err = p.backend.Predict(cctx, handle.ID, input.Text)
		return err
	})
	if err != nil {
		item.Err = &PredictionError{ModelID: handle.ID, Index: index, Reason: err.Error()}
		return item
	}

	prediction, err := p.normalize(handle.ID, index, input, candidates)
	if err != nil {
		item.Err = err
		return item
	}
	item.Prediction = prediction
	return item
}

// normalize converts raw backend candidates into a Prediction, rejecting
// responses that violate the backend contract.
func (p *Predictor) normalize(modelID string, index int, input Record, candidates []LabelScore) (*Prediction, error) {
	if len(candidates) == 0 {
		return nil, &PredictionError{ModelID: modelID, Index: index, Reason: "backend returned no label candidates"}
	}

	for _, c := range candidates {
		if c.Label == "" {
			return nil, &PredictionError{ModelID: modelID, Index: index, Reason: "backend returned a candidate with an empty label"}
		}
		if math.IsNaN(c.Score) || c.Score < 0 || c.Score > 1 {
			return nil, &PredictionError{ModelID: modelID, Index: index, Reason: fmt.Sprintf("backend returned confidence %v for label %q, outside [0, 1]", c.Score, c.Label)}
		}
	}

	ranked := make([]LabelScore, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return &Prediction{
		InputID:      input.ID,
		Label:        ranked[0].Label,
		Confidence:   ranked[0].Score,
		Alternatives: ranked[1:],
	}, nil
}
