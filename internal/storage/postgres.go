package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore archives sessions and results in PostgreSQL. Results are
// stored as a JSONB payload; the sessions table carries the queryable columns.
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveSession archives a newly created session
func (s *PostgresStore) SaveSession(rec storage.SessionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, repository, period_days, include_closed, step, completion, degraded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Repository, rec.PeriodDays, rec.IncludeClosed, rec.Step, rec.Completion, rec.Degraded, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// UpdateSessionState records the session's step, completion and degradation
func (s *PostgresStore) UpdateSessionState(id string, step models.Step, completion float64, degraded bool) error {
	res, err := s.db.Exec(`
		UPDATE sessions
		SET step = $1, completion = $2, degraded = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		step, completion, degraded, id)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetSession retrieves an archived session by ID
func (s *PostgresStore) GetSession(id string) (storage.SessionRecord, error) {
	var rec storage.SessionRecord
	err := s.db.Get(&rec, "SELECT * FROM sessions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) ListSessions() ([]storage.SessionRecord, error) {
	sessions := []storage.SessionRecord{}
	query := "SELECT id, repository, period_days, include_closed, step, completion, degraded, created_at, updated_at FROM sessions ORDER BY created_at DESC"
	err := s.db.Select(&sessions, query)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// SaveResult archives the final result of a terminal session
func (s *PostgresStore) SaveResult(res models.AnalysisResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result for session %s: %w", res.SessionID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO results (session_id, repository, payload, generated_at)
		VALUES ($1, $2, $3, $4)`,
		res.SessionID, res.Repository, payload, res.GeneratedAt)
	if err != nil {
		return fmt.Errorf("save result for session %s: %w", res.SessionID, err)
	}
	return nil
}

// GetResult retrieves an archived result by session ID
func (s *PostgresStore) GetResult(sessionID string) (models.AnalysisResult, error) {
	var payload []byte
	err := s.db.Get(&payload, "SELECT payload FROM results WHERE session_id = $1", sessionID)
	if err == sql.ErrNoRows {
		return models.AnalysisResult{}, storage.ErrNotFound
	}
	if err != nil {
		return models.AnalysisResult{}, err
	}
	var res models.AnalysisResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("unmarshal result for session %s: %w", sessionID, err)
	}
	return res, nil
}
