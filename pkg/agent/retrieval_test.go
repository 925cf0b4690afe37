package agent_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v58/github"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/agent"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/github"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{})  {}
func (l logger) Errorf(format string, args ...interface{}) {}
func (l logger) Debugf(format string, args ...interface{}) {}

func demoRequest() models.AnalysisRequest {
	req := models.AnalysisRequest{Repository: "acme/widgets", AnalysisPeriodDays: 90}
	req.Normalize()
	return req
}

func TestDataRetrievalAgent_Execute(t *testing.T) {
	mem := memory.NewInMemoryStore()
	fetcher := &github.FixtureFetcher{Data: github.DemoFixture(time.Now())}
	a := agent.NewDataRetrievalAgent(fetcher, mem, logger{})

	art, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
	require.NoError(t, err)
	require.NotNil(t, art.Retrieval)
	assert.Len(t, art.Retrieval.Issues, 60)
	assert.Equal(t, "acme/widgets", art.Retrieval.Repository.FullName)
	assert.Greater(t, art.Retrieval.QualityScore, 0.7)

	// The run is recorded in the repository profile.
	prof, err := mem.Get("acme/widgets")
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, 1, prof.Runs)
	assert.Equal(t, art.Retrieval.QualityScore, prof.LastQualityScore)
}

func TestDataRetrievalAgent_MemoryFailureIsNotFatal(t *testing.T) {
	fetcher := &github.FixtureFetcher{Data: github.DemoFixture(time.Now())}
	a := agent.NewDataRetrievalAgent(fetcher, failingMemory{}, logger{})

	art, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
	require.NoError(t, err, "memory store failures only log")
	assert.NotNil(t, art.Retrieval)
}

type failingMemory struct{}

func (failingMemory) Get(repository string) (*memory.Profile, error) {
	return nil, errors.New("store offline")
}
func (failingMemory) Put(p *memory.Profile) error { return errors.New("store offline") }
func (failingMemory) Close() error                { return nil }

func TestDataRetrievalAgent_ErrorClassification(t *testing.T) {
	t.Run("NotFoundIsFatal", func(t *testing.T) {
		notFound := &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
		fetcher := &github.FixtureFetcher{Err: notFound}
		a := agent.NewDataRetrievalAgent(fetcher, memory.NewInMemoryStore(), logger{})

		_, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
		require.Error(t, err)
		assert.True(t, agent.IsFatal(err))
	})

	t.Run("RateLimitIsTransient", func(t *testing.T) {
		fetcher := &github.FixtureFetcher{Err: &gh.RateLimitError{Message: "rate limited"}}
		a := agent.NewDataRetrievalAgent(fetcher, memory.NewInMemoryStore(), logger{})

		_, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
		require.Error(t, err)
		assert.False(t, agent.IsFatal(err))
	})

	t.Run("GenericErrorIsTransient", func(t *testing.T) {
		fetcher := &github.FixtureFetcher{Err: errors.New("connection reset")}
		a := agent.NewDataRetrievalAgent(fetcher, memory.NewInMemoryStore(), logger{})

		_, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
		require.Error(t, err)
		assert.False(t, agent.IsFatal(err))
	})

	t.Run("ContextCancellationPassesThrough", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fetcher := &github.FixtureFetcher{Data: github.DemoFixture(time.Now())}
		a := agent.NewDataRetrievalAgent(fetcher, memory.NewInMemoryStore(), logger{})

		_, err := a.Execute(ctx, demoRequest(), models.Artifacts{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, agent.IsFatal(err))
	})
}

func TestQualityScore(t *testing.T) {
	now := time.Now()

	t.Run("EmptyHistoryIsFloor", func(t *testing.T) {
		assert.Equal(t, 0.1, agent.QualityScore(nil, 90))
	})

	t.Run("RichRecentHistoryScoresHigh", func(t *testing.T) {
		issues := make([]models.Issue, 60)
		for i := range issues {
			issues[i] = models.Issue{CreatedAt: now.AddDate(0, 0, -i/3)}
		}
		score := agent.QualityScore(issues, 90)
		assert.Greater(t, score, 0.9)
		assert.LessOrEqual(t, score, 1.0)
	})

	t.Run("StaleHistoryScoresLower", func(t *testing.T) {
		// Plenty of issues, all created in the older half of the window.
		stale := make([]models.Issue, 60)
		for i := range stale {
			stale[i] = models.Issue{CreatedAt: now.AddDate(0, 0, -80)}
		}
		fresh := make([]models.Issue, 60)
		for i := range fresh {
			fresh[i] = models.Issue{CreatedAt: now.AddDate(0, 0, -1)}
		}
		assert.Less(t, agent.QualityScore(stale, 90), agent.QualityScore(fresh, 90))
	})

	t.Run("SparseHistoryScoresBelowDefaultThreshold", func(t *testing.T) {
		issues := []models.Issue{{CreatedAt: now.AddDate(0, 0, -80)}}
		assert.Less(t, agent.QualityScore(issues, 90), 0.7)
	})
}
