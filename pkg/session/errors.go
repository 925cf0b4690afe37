package session

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned for a session ID no manager ever issued.
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when a result is requested before the session
	// reached a terminal step.
	ErrNotReady = errors.New("session not finished")
	// ErrAlreadyTerminal is returned when the requested transition no longer
	// applies: cancelling a finished session, or fetching the result of a
	// cancelled one.
	ErrAlreadyTerminal = errors.New("session already terminal")
)

// ResultError is returned for sessions that failed without producing any
// report, carrying the stage failure detail.
type ResultError struct {
	SessionID string
	Detail    string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("session %s failed: %s", e.SessionID, e.Detail)
}
