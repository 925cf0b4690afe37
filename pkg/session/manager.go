// Package session owns session lifecycle: creation, concurrent execution,
// cancellation and result retrieval. The manager is the only writer of the
// session registry; the engine runs each session on its own goroutine.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/broadcast"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/engine"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/storage"
)

// Logger defines the logging interface for the session manager.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// entry is one tracked session. result and runErr are written once, when the
// run goroutine finishes, and read under the manager mutex thereafter.
type entry struct {
	sess   models.Session
	cancel context.CancelFunc
	done   bool
	result *models.AnalysisResult
	runErr error
}

// Manager creates and tracks analysis sessions.
type Manager struct {
	eng    *engine.Engine
	bc     *broadcast.Broadcaster
	store  storage.Store
	logger Logger

	mu       sync.Mutex
	sessions map[string]*entry

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager wires a manager over an engine, a broadcaster and the archive
// store. The store may be a mock; archive failures never fail a session.
func NewManager(eng *engine.Engine, bc *broadcast.Broadcaster, store storage.Store, logger Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		eng:        eng,
		bc:         bc,
		store:      store,
		logger:     logger,
		sessions:   make(map[string]*entry),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Create validates the request, registers a new session and starts its
// workflow. It returns as soon as the session is observable; callers poll or
// subscribe for progress.
func (m *Manager) Create(req models.AnalysisRequest) (models.Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return models.Session{}, err
	}

	sess := models.Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Request:   req,
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	e := &entry{sess: sess, cancel: cancel}

	m.mu.Lock()
	m.sessions[sess.ID] = e
	m.mu.Unlock()

	// Make the session observable before the run goroutine is scheduled so a
	// status poll immediately after Create never misses it.
	m.bc.Publish(models.NewWorkflowState(sess.ID))
	m.archiveNew(sess)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		res, err := m.eng.Run(runCtx, sess)

		m.mu.Lock()
		e.done = true
		e.result = res
		e.runErr = err
		m.mu.Unlock()

		m.archiveTerminal(sess.ID, res)
	}()

	m.logger.Infof("Session %s created for %s (%d days)", sess.ID, req.Repository, req.AnalysisPeriodDays)
	return sess, nil
}

// GetStatus returns the latest published snapshot of a session.
func (m *Manager) GetStatus(id string) (models.WorkflowState, error) {
	state, ok := m.bc.Snapshot(id)
	if !ok {
		return models.WorkflowState{}, ErrNotFound
	}
	return state, nil
}

// GetResult returns the final result of a terminal session.
// It returns ErrNotReady while the session is still running, ErrAlreadyTerminal
// for cancelled sessions and a ResultError for sessions that failed without a
// usable report.
func (m *Manager) GetResult(id string) (*models.AnalysisResult, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	done, res, runErr := e.done, e.result, e.runErr
	m.mu.Unlock()

	if !done {
		return nil, ErrNotReady
	}
	if res != nil {
		return res, nil
	}
	if errors.Is(runErr, context.Canceled) {
		return nil, ErrAlreadyTerminal
	}
	detail := "workflow failed"
	if runErr != nil {
		detail = runErr.Error()
	}
	return nil, &ResultError{SessionID: id, Detail: detail}
}

// Subscribe opens a push subscription for the session's state updates. The
// current snapshot is delivered first.
func (m *Manager) Subscribe(id string) *broadcast.Subscription {
	return m.bc.Subscribe(id)
}

// Unsubscribe tears down a push subscription.
func (m *Manager) Unsubscribe(sub *broadcast.Subscription) {
	m.bc.Unsubscribe(sub)
}

// Cancel requests cooperative cancellation of a running session. The session
// stops at the next stage boundary.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	done := e.done
	m.mu.Unlock()

	if done {
		return ErrAlreadyTerminal
	}
	e.cancel()
	m.logger.Infof("Session %s cancellation requested", id)
	return nil
}

// ListSessions returns the archived session records.
func (m *Manager) ListSessions() ([]storage.SessionRecord, error) {
	return m.store.ListSessions()
}

// Close cancels every running session and waits for their run goroutines.
func (m *Manager) Close() {
	m.baseCancel()
	m.wg.Wait()
}

// archiveNew records the session in the archive. Archive failures are logged
// and ignored; the live run does not depend on the archive.
func (m *Manager) archiveNew(sess models.Session) {
	rec := storage.SessionRecord{
		ID:            sess.ID,
		Repository:    sess.Request.Repository,
		PeriodDays:    sess.Request.AnalysisPeriodDays,
		IncludeClosed: sess.Request.IncludeClosed(),
		Step:          models.StepDataRetrieval,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.CreatedAt,
	}
	tx, err := m.store.Begin()
	if err != nil {
		m.logger.Errorf("Archive unavailable for session %s: %v", sess.ID, err)
		return
	}
	if err := tx.SaveSession(rec); err != nil {
		_ = tx.Rollback()
		m.logger.Errorf("Failed to archive session %s: %v", sess.ID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		m.logger.Errorf("Failed to commit session %s archive: %v", sess.ID, err)
	}
}

// archiveTerminal records the terminal state and, when present, the result.
func (m *Manager) archiveTerminal(id string, res *models.AnalysisResult) {
	state, ok := m.bc.Snapshot(id)
	if !ok {
		return
	}
	tx, err := m.store.Begin()
	if err != nil {
		m.logger.Errorf("Archive unavailable for session %s: %v", id, err)
		return
	}
	if err := tx.UpdateSessionState(id, state.CurrentStep, state.CompletionPercentage, state.Degraded); err != nil {
		_ = tx.Rollback()
		m.logger.Errorf("Failed to archive terminal state of session %s: %v", id, err)
		return
	}
	if res != nil {
		if err := tx.SaveResult(*res); err != nil {
			_ = tx.Rollback()
			m.logger.Errorf("Failed to archive result of session %s: %v", id, err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		m.logger.Errorf("Failed to commit terminal archive of session %s: %v", id, err)
	}
}
