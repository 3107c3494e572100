package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mossline/textclass"
)

// CSVSink appends predictions to a CSV writer with an input_id, label,
// confidence header.
type CSVSink struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewCSV creates a CSVSink writing to w.
func NewCSV(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Write appends one row per prediction and flushes.
func (s *CSVSink) Write(ctx context.Context, predictions []textclass.Prediction) error {
	if !s.wroteHeader {
		if err := s.w.Write([]string{"input_id", "label", "confidence"}); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		s.wroteHeader = true
	}

	for _, p := range predictions {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		row := []string{p.InputID, p.Label, strconv.FormatFloat(p.Confidence, 'f', 6, 64)}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("writing prediction for input %q: %w", p.InputID, err)
		}
	}

	s.w.Flush()
	return s.w.Error()
}
