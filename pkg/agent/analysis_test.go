package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/agent"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

func retrievalArtifact(issues []models.Issue, windowDays int) models.Artifacts {
	now := time.Now()
	return models.Artifacts{Retrieval: &models.RetrievalArtifact{
		Repository:   models.RepositoryInfo{FullName: "acme/widgets"},
		Issues:       issues,
		QualityScore: 0.9,
		WindowStart:  now.AddDate(0, 0, -windowDays),
		WindowEnd:    now,
	}}
}

func issuesAt(offsets []int, state string) []models.Issue {
	now := time.Now()
	out := make([]models.Issue, len(offsets))
	for i, d := range offsets {
		out[i] = models.Issue{Number: i + 1, State: state, CreatedAt: now.AddDate(0, 0, -d)}
	}
	return out
}

func TestTrendAnalysisAgent_Execute(t *testing.T) {
	a := agent.NewTrendAnalysisAgent(memory.NewInMemoryStore(), logger{})

	t.Run("RequiresRetrievalArtifact", func(t *testing.T) {
		_, err := a.Execute(context.Background(), demoRequest(), models.Artifacts{})
		require.Error(t, err)
		assert.True(t, agent.IsFatal(err))
	})

	t.Run("IncreasingTrend", func(t *testing.T) {
		// All issues in the recent half of a 90-day window.
		issues := issuesAt([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, "open")
		art, err := a.Execute(context.Background(), demoRequest(), retrievalArtifact(issues, 90))
		require.NoError(t, err)
		require.NotNil(t, art.Trend)
		assert.Equal(t, "increasing", art.Trend.Direction)
		assert.Greater(t, art.Trend.Slope, 0.05)
		assert.Equal(t, 1.0, art.Trend.OpenRatio)
	})

	t.Run("DecreasingTrend", func(t *testing.T) {
		issues := issuesAt([]int{80, 81, 82, 83, 84, 85, 86, 87, 88, 89}, "closed")
		art, err := a.Execute(context.Background(), demoRequest(), retrievalArtifact(issues, 90))
		require.NoError(t, err)
		assert.Equal(t, "decreasing", art.Trend.Direction)
		assert.Less(t, art.Trend.Slope, -0.05)
		assert.Equal(t, 0.0, art.Trend.OpenRatio)
	})

	t.Run("StableTrend", func(t *testing.T) {
		issues := append(issuesAt([]int{10, 20, 30}, "open"), issuesAt([]int{60, 70, 80}, "closed")...)
		art, err := a.Execute(context.Background(), demoRequest(), retrievalArtifact(issues, 90))
		require.NoError(t, err)
		assert.Equal(t, "stable", art.Trend.Direction)
		assert.InDelta(t, 0.5, art.Trend.OpenRatio, 0.001)
	})

	t.Run("EmptyHistory", func(t *testing.T) {
		art, err := a.Execute(context.Background(), demoRequest(), retrievalArtifact(nil, 90))
		require.NoError(t, err)
		assert.Equal(t, "stable", art.Trend.Direction)
		assert.Equal(t, 0.0, art.Trend.OpenRatio)
		assert.Equal(t, 0.0, art.Trend.ConfidenceScore)
	})

	t.Run("DailyCountsGrouped", func(t *testing.T) {
		y, m, d := time.Now().AddDate(0, 0, -5).Date()
		day := time.Date(y, m, d, 10, 0, 0, 0, time.UTC)
		issues := []models.Issue{
			{Number: 1, State: "open", CreatedAt: day},
			{Number: 2, State: "open", CreatedAt: day.Add(2 * time.Hour)},
			{Number: 3, State: "open", CreatedAt: day.AddDate(0, 0, -1)},
		}
		art, err := a.Execute(context.Background(), demoRequest(), retrievalArtifact(issues, 90))
		require.NoError(t, err)
		assert.Equal(t, 2, art.Trend.DailyCounts[day.Format("2006-01-02")])
		assert.Equal(t, 1, art.Trend.DailyCounts[day.AddDate(0, 0, -1).Format("2006-01-02")])
	})
}
