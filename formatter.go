package textclass

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// labelPattern matches the backend's label constraints: letters, digits and
// underscores only.
var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Formatter validates raw records and produces Datasets conforming to the
// backend's ingestion schema.
type Formatter struct {
	cfg    Config
	logger *zap.Logger
}

// NewFormatter creates a Formatter. A nil logger disables logging.
func NewFormatter(cfg Config, logger *zap.Logger) *Formatter {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{cfg: cfg, logger: logger}
}

// Format validates training records and assembles them into a Dataset.
// Under Strict mode the first invalid record fails the whole batch with a
// ValidationError; under Lenient mode invalid records are dropped and logged.
func (f *Formatter) Format(name string, classification ClassificationType, raw []Record) (*Dataset, error) {
	if !classification.Valid() {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("classification type must be %q or %q, got %q", Multiclass, Multilabel, classification)}
	}

	ds := &Dataset{
		Name:    name,
		Type:    classification,
		Records: make([]Record, 0, len(raw)),
	}

	seenIDs := make(map[string]int, len(raw))
	for i, rec := range raw {
		if err := f.checkRecord(i, rec, true); err != nil {
			if f.cfg.Strictness == Strict {
				return nil, err
			}
			f.logger.Warn("dropping invalid record",
				zap.Int("index", i),
				zap.String("id", rec.ID),
				zap.Error(err))
			ds.Skipped++
			continue
		}

		if rec.ID == "" {
			rec.ID = uuid.New().String()
		} else if prev, dup := seenIDs[rec.ID]; dup {
			err := &ValidationError{Index: i, ID: rec.ID, Reason: fmt.Sprintf("duplicate identifier, first seen at index %d", prev)}
			if f.cfg.Strictness == Strict {
				return nil, err
			}
			f.logger.Warn("dropping invalid record",
				zap.Int("index", i),
				zap.String("id", rec.ID),
				zap.Error(err))
			ds.Skipped++
			continue
		}
		seenIDs[rec.ID] = i

		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "no valid records in batch"}
	}
	if labels := ds.Labels(); len(labels) < 2 {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("training requires at least two distinct labels, got %d", len(labels))}
	}

	return ds, nil
}

// FormatInputs validates inference-only records. Labels must be absent;
// invalid records fail or drop according to strictness, as in Format.
func (f *Formatter) FormatInputs(raw []Record) ([]Record, error) {
	inputs := make([]Record, 0, len(raw))
	seenIDs := make(map[string]int, len(raw))
	for i, rec := range raw {
		if err := f.checkRecord(i, rec, false); err != nil {
			if f.cfg.Strictness == Strict {
				return nil, err
			}
			f.logger.Warn("dropping invalid record",
				zap.Int("index", i),
				zap.String("id", rec.ID),
				zap.Error(err))
			continue
		}

		if rec.ID == "" {
			rec.ID = uuid.New().String()
		} else if prev, dup := seenIDs[rec.ID]; dup {
			err := &ValidationError{Index: i, ID: rec.ID, Reason: fmt.Sprintf("duplicate identifier, first seen at index %d", prev)}
			if f.cfg.Strictness == Strict {
				return nil, err
			}
			f.logger.Warn("dropping invalid record",
				zap.Int("index", i),
				zap.String("id", rec.ID),
				zap.Error(err))
			continue
		}
		seenIDs[rec.ID] = i

		inputs = append(inputs, rec)
	}

	if len(inputs) == 0 {
		return nil, &ValidationError{Index: -1, Reason: "no valid records in batch"}
	}
	return inputs, nil
}

func (f *Formatter) checkRecord(index int, rec Record, training bool) error {
	if strings.TrimSpace(rec.Text) == "" {
		return &ValidationError{Index: index, ID: rec.ID, Reason: "empty text"}
	}
	if !utf8.ValidString(rec.Text) {
		return &ValidationError{Index: index, ID: rec.ID, Reason: "text is not valid UTF-8"}
	}
	if strings.ContainsRune(rec.Text, '\r') {
		return &ValidationError{Index: index, ID: rec.ID, Reason: "text contains carriage returns, which ingestion does not accept"}
	}
	if len(rec.Text) > f.cfg.MaxTextBytes {
		return &ValidationError{Index: index, ID: rec.ID, Reason: fmt.Sprintf("text is %d bytes, limit %d", len(rec.Text), f.cfg.MaxTextBytes)}
	}

	if !training {
		if rec.Label != "" {
			return &ValidationError{Index: index, ID: rec.ID, Reason: "inference record carries a label"}
		}
		return nil
	}

	if rec.Label == "" {
		return &ValidationError{Index: index, ID: rec.ID, Reason: "training record has no label"}
	}
	if len(rec.Label) > f.cfg.MaxLabelLength {
		return &ValidationError{Index: index, ID: rec.ID, Reason: fmt.Sprintf("label is %d characters, limit %d", len(rec.Label), f.cfg.MaxLabelLength)}
	}
	if !labelPattern.MatchString(rec.Label) {
		return &ValidationError{Index: index, ID: rec.ID, Reason: fmt.Sprintf("label %q contains characters outside [A-Za-z0-9_]", rec.Label)}
	}

	return nil
}
