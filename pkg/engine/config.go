package engine

import "time"

const (
	DefaultQualityThreshold = 0.7
	DefaultStageTimeout     = 60 * time.Second
	DefaultMaxAttempts      = 3
	DefaultBackoffBase      = 250 * time.Millisecond
)

// Config holds the tunable parameters of the workflow engine. Every numeric
// here is configuration, not contract; zero values fall back to the defaults
// above.
type Config struct {
	// QualityThreshold routes the pipeline to the fast path when the
	// retrieval quality score falls below it.
	QualityThreshold float64
	// StageTimeout bounds a single stage attempt. A timeout is retried.
	StageTimeout time.Duration
	// MaxAttempts bounds attempts per stage per session.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// DemoMode is surfaced in health and report metadata; it is consumed by
	// the data-retrieval collaborator.
	DemoMode bool
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: DefaultQualityThreshold,
		StageTimeout:     DefaultStageTimeout,
		MaxAttempts:      DefaultMaxAttempts,
		BackoffBase:      DefaultBackoffBase,
	}
}

func (c Config) withDefaults() Config {
	if c.QualityThreshold == 0 {
		c.QualityThreshold = DefaultQualityThreshold
	}
	if c.StageTimeout == 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	return c
}
