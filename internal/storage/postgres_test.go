package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_storage "github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/storage"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/testutil"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/storage"
)

func record(id string) storage.SessionRecord {
	return storage.SessionRecord{
		ID:            id,
		Repository:    "acme/widgets",
		PeriodDays:    90,
		IncludeClosed: true,
		Step:          models.StepDataRetrieval,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	// Helper to create a transactional store rolled back after each subtest
	newTxStore := func(t *testing.T) storage.Store {
		store, err := internal_storage.NewPostgresStore(testDB.ConnStr)
		require.NoError(t, err)
		txStore, err := store.Begin()
		require.NoError(t, err)
		t.Cleanup(func() { _ = txStore.Rollback() })
		return txStore
	}

	t.Run("SaveAndGetSession", func(t *testing.T) {
		store := newTxStore(t)
		rec := record("s-save")
		require.NoError(t, store.SaveSession(rec))

		got, err := store.GetSession("s-save")
		require.NoError(t, err)
		assert.Equal(t, rec.Repository, got.Repository)
		assert.Equal(t, rec.PeriodDays, got.PeriodDays)
		assert.Equal(t, models.StepDataRetrieval, got.Step)
		assert.False(t, got.Degraded)
	})

	t.Run("GetSessionNotFound", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetSession("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("UpdateSessionState", func(t *testing.T) {
		store := newTxStore(t)
		require.NoError(t, store.SaveSession(record("s-update")))

		require.NoError(t, store.UpdateSessionState("s-update", models.StepCompleted, 100, true))

		got, err := store.GetSession("s-update")
		require.NoError(t, err)
		assert.Equal(t, models.StepCompleted, got.Step)
		assert.Equal(t, 100.0, got.Completion)
		assert.True(t, got.Degraded)
	})

	t.Run("UpdateUnknownSession", func(t *testing.T) {
		store := newTxStore(t)
		err := store.UpdateSessionState("missing", models.StepCompleted, 100, false)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListSessionsNewestFirst", func(t *testing.T) {
		store := newTxStore(t)
		older := record("s-older")
		older.CreatedAt = time.Now().Add(-time.Hour)
		require.NoError(t, store.SaveSession(older))
		require.NoError(t, store.SaveSession(record("s-newer")))

		recs, err := store.ListSessions()
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "s-newer", recs[0].ID)
		assert.Equal(t, "s-older", recs[1].ID)
	})

	t.Run("SaveAndGetResult", func(t *testing.T) {
		store := newTxStore(t)
		require.NoError(t, store.SaveSession(record("s-result")))

		res := models.AnalysisResult{
			SessionID:           "s-result",
			Repository:          "acme/widgets",
			TotalIssuesAnalyzed: 42,
			GeneratedAt:         time.Now(),
			FinalReport: models.FinalReport{
				Metadata: models.ReportMetadata{
					Repository: "acme/widgets",
					SessionID:  "s-result",
					Status:     "completed",
				},
				ExecutiveSummary: models.ExecutiveSummary{
					Overview: "Analysis of acme/widgets with 42 issues analyzed",
				},
			},
		}
		require.NoError(t, store.SaveResult(res))

		got, err := store.GetResult("s-result")
		require.NoError(t, err)
		assert.Equal(t, 42, got.TotalIssuesAnalyzed)
		assert.Equal(t, "completed", got.FinalReport.Metadata.Status)
		assert.Equal(t, res.FinalReport.ExecutiveSummary.Overview, got.FinalReport.ExecutiveSummary.Overview)
	})

	t.Run("GetResultNotFound", func(t *testing.T) {
		store := newTxStore(t)
		_, err := store.GetResult("missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
