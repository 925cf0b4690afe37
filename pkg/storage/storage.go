// Package storage defines the durable session archive. The archive is a
// record of runs and their terminal results; live state is served from the
// broadcaster's snapshot store, not from here.
package storage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// ErrNotFound is returned when a session or result is not in the archive.
var ErrNotFound = errors.New("not found")

// SessionRecord is the archived form of a session.
type SessionRecord struct {
	ID            string      `json:"session_id" db:"id"`
	Repository    string      `json:"repository" db:"repository"`
	PeriodDays    int         `json:"analysis_period_days" db:"period_days"`
	IncludeClosed bool        `json:"include_closed_issues" db:"include_closed"`
	Step          models.Step `json:"current_step" db:"step"`
	Completion    float64     `json:"completion_percentage" db:"completion"`
	Degraded      bool        `json:"degraded" db:"degraded"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// Store defines the archive operations.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	SaveSession(rec SessionRecord) error
	UpdateSessionState(id string, step models.Step, completion float64, degraded bool) error
	GetSession(id string) (SessionRecord, error)
	ListSessions() ([]SessionRecord, error)

	SaveResult(res models.AnalysisResult) error
	GetResult(sessionID string) (models.AnalysisResult, error)
}
