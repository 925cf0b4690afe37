// Package agent defines the capability interface implemented by the four
// pipeline stages and the outcome classification the engine routes on.
package agent

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// Logger is the narrow logging surface agents need.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Adapter performs one stage's domain work. Execute receives the artifacts
// accumulated so far and returns them extended with its own output. Errors
// are classified with Transient or Fatal; an unclassified error is treated
// as transient by the engine.
type Adapter interface {
	ID() models.AgentID
	Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error)
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e *transientError) Unwrap() error { return e.err }

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return fmt.Sprintf("fatal: %v", e.err) }
func (e *fatalError) Unwrap() error { return e.err }

// Transient marks an error as retryable (I/O, rate-limit class failures).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Fatal marks an error as non-retryable; the engine routes straight to error
// recovery or failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether the error was marked Fatal. Timeouts and
// unclassified errors are not fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
