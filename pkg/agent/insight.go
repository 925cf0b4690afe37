package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// InsightAgent turns the retrieved history and the trend analysis into
// ranked findings and recommendations.
type InsightAgent struct {
	mem    memory.Store
	logger Logger
}

func NewInsightAgent(mem memory.Store, logger Logger) *InsightAgent {
	return &InsightAgent{mem: mem, logger: logger}
}

func (a *InsightAgent) ID() models.AgentID {
	return models.AgentInsight
}

func (a *InsightAgent) Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return art, err
	}
	if art.Retrieval == nil {
		return art, Fatal(errors.New("insight generation requires the retrieval artifact"))
	}

	issues := art.Retrieval.Issues
	var insights []models.Insight
	var recs []models.Recommendation

	if art.Trend != nil {
		insights = append(insights, models.Insight{
			Source:     string(a.ID()),
			Type:       "trend",
			Content:    fmt.Sprintf("Issue volume is %s over the analysis window (slope %.3f/day)", art.Trend.Direction, art.Trend.Slope),
			Confidence: art.Trend.ConfidenceScore,
		})
		if art.Trend.Direction == "increasing" {
			recs = append(recs, models.Recommendation{
				Category:       "triage",
				Recommendation: "Increase triage capacity to match the growing issue inflow",
				Priority:       "high",
				Rationale:      "Issue creation rate is rising over the analysis window",
			})
		}
	}

	if top := TopLabels(issues, 3); len(top) > 0 {
		insights = append(insights, models.Insight{
			Source:     string(a.ID()),
			Type:       "labels",
			Content:    fmt.Sprintf("Most frequent labels: %v", top),
			Confidence: 0.9,
		})
	}

	if avg, ok := avgResolutionDays(issues); ok {
		insights = append(insights, models.Insight{
			Source:     string(a.ID()),
			Type:       "resolution",
			Content:    fmt.Sprintf("Closed issues resolve in %.1f days on average", avg),
			Confidence: 0.8,
		})
		if avg > 14 {
			recs = append(recs, models.Recommendation{
				Category:       "workflow",
				Recommendation: "Set response-time targets for issue triage",
				Priority:       "medium",
				Rationale:      fmt.Sprintf("Average resolution time of %.1f days exceeds two weeks", avg),
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Category:       "workflow",
			Recommendation: "Continue current issue management practices",
			Priority:       "low",
			Rationale:      "No trend or resolution-time anomalies detected",
		})
	}

	a.logger.Infof("Generated %d insights and %d recommendations for %s", len(insights), len(recs), req.Repository)

	art.Insights = insights
	art.Recommendations = recs

	writeProfile(a.mem, req.Repository, a.logger, func(p *memory.Profile) {
		p.RecordStage(string(a.ID()))
	})
	return art, nil
}

// TopLabels returns the n most frequent labels, most frequent first.
func TopLabels(issues []models.Issue, n int) []string {
	counts := make(map[string]int)
	for _, is := range issues {
		for _, l := range is.Labels {
			counts[l]++
		}
	}
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > n {
		labels = labels[:n]
	}
	return labels
}

func avgResolutionDays(issues []models.Issue) (float64, bool) {
	var total time.Duration
	closed := 0
	for _, is := range issues {
		if is.ClosedAt != nil {
			total += is.ClosedAt.Sub(is.CreatedAt)
			closed++
		}
	}
	if closed == 0 {
		return 0, false
	}
	return total.Hours() / 24 / float64(closed), true
}
