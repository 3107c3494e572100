package textclass

import "time"

// Strictness controls how the Formatter reacts to invalid records.
type Strictness string

const (
	// Strict fails the whole batch on the first invalid record
	Strict Strictness = "strict"

	// Lenient drops invalid records, logs each one, and continues
	Lenient Strictness = "lenient"
)

const (
	// DefaultPollInterval is the pause between training status checks
	DefaultPollInterval = 30 * time.Second

	// DefaultMaxWait bounds the total time spent polling one training
	// job. AutoML text training runs for hours.
	DefaultMaxWait = 2 * time.Hour

	// DefaultMaxRetries bounds automatic retries of transient backend
	// calls. Training submission itself is never retried past this.
	DefaultMaxRetries = 3

	// DefaultConcurrencyLimit bounds in-flight inference requests
	DefaultConcurrencyLimit = 4

	// DefaultCallTimeout bounds one network call to the backend
	DefaultCallTimeout = 60 * time.Second

	// DefaultMaxTextBytes is the ingestion limit per record text
	DefaultMaxTextBytes = 128 * 1024

	// DefaultMaxArtifactBytes is the ingestion limit for a staged CSV
	DefaultMaxArtifactBytes = 100 * 1024 * 1024

	// DefaultMaxLabelLength matches the backend's label constraints
	DefaultMaxLabelLength = 32
)

// Config holds configuration shared by the pipeline components.
type Config struct {
	// Strictness selects strict or lenient validation. Defaults to Strict.
	Strictness Strictness

	// PollInterval is the pause between training status checks
	PollInterval time.Duration

	// MaxWait bounds the total polling time for one training job
	MaxWait time.Duration

	// MaxRetries bounds automatic retries of transient backend calls
	MaxRetries int

	// ConcurrencyLimit bounds concurrent inference requests
	ConcurrencyLimit int

	// CallTimeout bounds each individual backend call
	CallTimeout time.Duration

	// MaxTextBytes is the per-record text size limit
	MaxTextBytes int

	// MaxArtifactBytes is the staged artifact size limit
	MaxArtifactBytes int64

	// MaxLabelLength is the label length limit
	MaxLabelLength int
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if c.Strictness == "" {
		c.Strictness = Strict
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ConcurrencyLimit <= 0 {
		c.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxTextBytes <= 0 {
		c.MaxTextBytes = DefaultMaxTextBytes
	}
	if c.MaxArtifactBytes <= 0 {
		c.MaxArtifactBytes = DefaultMaxArtifactBytes
	}
	if c.MaxLabelLength <= 0 {
		c.MaxLabelLength = DefaultMaxLabelLength
	}
}
