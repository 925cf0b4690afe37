package storage

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// mockStore implements Store with in-memory storage. The manager archives
// from per-session goroutines, so access is locked.
type mockStore struct {
	mu        sync.Mutex
	sessions  []SessionRecord
	results   map[string]models.AnalysisResult
	committed bool // Transaction state
}

// NewMockStore returns an in-memory archive for tests and serverless runs.
func NewMockStore() Store {
	return &mockStore{results: make(map[string]models.AnalysisResult)}
}

func (m *mockStore) Begin() (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = false
	return m, nil
}

func (m *mockStore) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return errors.New("already committed")
	}
	m.committed = true
	return nil
}

func (m *mockStore) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return errors.New("cannot rollback committed transaction")
	}
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func (m *mockStore) SaveSession(rec SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == rec.ID {
			return errors.New("session already exists")
		}
	}
	m.sessions = append(m.sessions, rec)
	return nil
}

func (m *mockStore) UpdateSessionState(id string, step models.Step, completion float64, degraded bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sessions {
		if s.ID == id {
			m.sessions[i].Step = step
			m.sessions[i].Completion = completion
			m.sessions[i].Degraded = degraded
			m.sessions[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) GetSession(id string) (SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return SessionRecord{}, ErrNotFound
}

func (m *mockStore) ListSessions() ([]SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionRecord, len(m.sessions))
	copy(out, m.sessions)
	return out, nil
}

func (m *mockStore) SaveResult(res models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[res.SessionID]; ok {
		return errors.New("result already exists")
	}
	m.results[res.SessionID] = res
	return nil
}

func (m *mockStore) GetResult(sessionID string) (models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[sessionID]
	if !ok {
		return models.AnalysisResult{}, ErrNotFound
	}
	return res, nil
}
