package agent

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// TrendAnalysisAgent derives the time-series view of the issue history:
// daily counts, trend direction and slope, open/closed ratio.
type TrendAnalysisAgent struct {
	mem    memory.Store
	logger Logger
}

func NewTrendAnalysisAgent(mem memory.Store, logger Logger) *TrendAnalysisAgent {
	return &TrendAnalysisAgent{mem: mem, logger: logger}
}

func (a *TrendAnalysisAgent) ID() models.AgentID {
	return models.AgentAnalysis
}

func (a *TrendAnalysisAgent) Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return art, err
	}
	if art.Retrieval == nil {
		return art, Fatal(errors.New("analysis requires the retrieval artifact"))
	}

	issues := art.Retrieval.Issues
	daily := make(map[string]int)
	open := 0
	for _, is := range issues {
		daily[is.CreatedAt.Format("2006-01-02")]++
		if is.State == "open" {
			open++
		}
	}

	slope := trendSlope(issues, art.Retrieval.WindowStart, art.Retrieval.WindowEnd)
	direction := "stable"
	switch {
	case slope > 0.05:
		direction = "increasing"
	case slope < -0.05:
		direction = "decreasing"
	}

	openRatio := 0.0
	if len(issues) > 0 {
		openRatio = float64(open) / float64(len(issues))
	}
	confidence := float64(len(issues)) / 100.0
	if confidence > 1 {
		confidence = 1
	}

	a.logger.Infof("Trend for %s: %s (slope %.3f) over %d issues", req.Repository, direction, slope, len(issues))

	art.Trend = &models.TrendAnalysis{
		Direction:       direction,
		Slope:           slope,
		DailyCounts:     daily,
		OpenRatio:       openRatio,
		ConfidenceScore: confidence,
	}

	writeProfile(a.mem, req.Repository, a.logger, func(p *memory.Profile) {
		p.RecordStage(string(a.ID()))
	})
	return art, nil
}

// trendSlope compares issue volume in the two halves of the window,
// normalized to issues per day.
func trendSlope(issues []models.Issue, start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	if days < 2 || len(issues) == 0 {
		return 0
	}
	mid := start.Add(end.Sub(start) / 2)
	var early, late float64
	for _, is := range issues {
		if is.CreatedAt.Before(mid) {
			early++
		} else {
			late++
		}
	}
	return (late - early) / (days / 2)
}
