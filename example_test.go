package textclass_test

import (
	"context"
	"fmt"
	"time"

	"github.com/mossline/textclass"
	"github.com/mossline/textclass/pkg/testutil"
)

// Example runs the full pipeline against mocked collaborators: format raw
// records, assemble and stage the CSV artifact, train a model and classify
// new inputs with it.
func Example() {
	cfg := textclass.Config{
		Strictness:   textclass.Lenient,
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
	}

	raw := []textclass.Record{
		{ID: "r1", Text: "I finally finished the marathon", Label: "achievement"},
		{ID: "r2", Text: "We watched a movie together", Label: "bonding"},
		{ID: "r3", Text: "", Label: "achievement"}, // dropped under lenient mode
	}

	formatter := textclass.NewFormatter(cfg, nil)
	dataset, err := formatter.Format("happy-moments", textclass.Multiclass, raw)
	if err != nil {
		fmt.Println("format:", err)
		return
	}

	assembler := textclass.NewAssembler(cfg, nil)
	artifact, err := assembler.Assemble(dataset)
	if err != nil {
		fmt.Println("assemble:", err)
		return
	}

	ctx := context.Background()
	backend := &testutil.MockBackend{}
	store := testutil.NewMockArtifactStore()

	if err := assembler.Stage(ctx, store, artifact); err != nil {
		fmt.Println("stage:", err)
		return
	}

	trainer := textclass.NewTrainer(backend, cfg, nil)
	handle, err := trainer.Train(ctx, artifact, textclass.TrainingSpec{
		DatasetName:    "happy-moments",
		ModelName:      "happy-model",
		Classification: textclass.Multiclass,
	})
	if err != nil {
		fmt.Println("train:", err)
		return
	}

	predictor := textclass.NewPredictor(backend, cfg, nil)
	items, err := predictor.Predict(ctx, *handle, []textclass.Record{
		{ID: "new-1", Text: "My grandmother called me last night"},
	})
	if err != nil {
		fmt.Println("predict:", err)
		return
	}

	fmt.Printf("records=%d skipped=%d\n", len(dataset.Records), dataset.Skipped)
	fmt.Printf("model=%s\n", handle.ID)
	fmt.Printf("%s label=%s confidence=%.2f\n", items[0].InputID, items[0].Prediction.Label, items[0].Prediction.Confidence)
	// Output:
	// records=2 skipped=1
	// model=model-123
	// new-1 label=affection confidence=0.90
}
