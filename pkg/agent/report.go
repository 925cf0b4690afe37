package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// ReportOptions carries the session-level facts the report embeds.
type ReportOptions struct {
	SessionID string
	DemoMode  bool
	Degraded  bool
	Status    string
}

// ReportAgent assembles the terminal AnalysisResult from whatever artifacts
// exist. On the quality-gate fast path it runs with only the retrieval
// artifact.
type ReportAgent struct {
	mem      memory.Store
	logger   Logger
	demoMode bool
}

func NewReportAgent(mem memory.Store, logger Logger, demoMode bool) *ReportAgent {
	return &ReportAgent{mem: mem, logger: logger, demoMode: demoMode}
}

func (a *ReportAgent) ID() models.AgentID {
	return models.AgentReport
}

func (a *ReportAgent) Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return art, err
	}
	res := BuildReport(req, art, ReportOptions{
		DemoMode: a.demoMode,
		Status:   "completed",
	})
	art.Report = &res
	a.logger.Infof("Report assembled for %s: %d issues analyzed", req.Repository, res.TotalIssuesAnalyzed)

	writeProfile(a.mem, req.Repository, a.logger, func(p *memory.Profile) {
		p.RecordStage(string(a.ID()))
	})
	return art, nil
}

// BuildReport assembles an AnalysisResult from the artifacts at hand. Error
// recovery calls it directly with Degraded set, bypassing the agent.
func BuildReport(req models.AnalysisRequest, art models.Artifacts, opts ReportOptions) models.AnalysisResult {
	var (
		issues []models.Issue
		repo   models.RepositoryInfo
		score  float64
	)
	if art.Retrieval != nil {
		issues = art.Retrieval.Issues
		repo = art.Retrieval.Repository
		score = art.Retrieval.QualityScore
	}

	open := 0
	states := map[string]int{"open": 0, "closed": 0}
	labelCounts := make(map[string]int)
	for _, is := range issues {
		states[is.State]++
		if is.State == "open" {
			open++
		}
		for _, l := range is.Labels {
			labelCounts[l]++
		}
	}

	direction := "unknown"
	daily := make(map[string]int)
	if art.Trend != nil {
		direction = art.Trend.Direction
		daily = art.Trend.DailyCounts
	} else {
		for _, is := range issues {
			daily[is.CreatedAt.Format("2006-01-02")]++
		}
	}

	findings := []string{
		fmt.Sprintf("Repository contains %d issues over the last %d days", len(issues), req.AnalysisPeriodDays),
	}
	if art.Trend != nil {
		findings = append(findings, fmt.Sprintf("Issue volume is %s", art.Trend.Direction))
	}
	if opts.Degraded {
		findings = append(findings, "Analysis completed on a reduced pipeline; findings are partial")
	}

	summaryRecs := make([]string, 0, len(art.Recommendations))
	for _, r := range art.Recommendations {
		summaryRecs = append(summaryRecs, r.Recommendation)
	}

	repoName := repo.FullName
	if repoName == "" {
		repoName = req.Repository
	}
	status := opts.Status
	if status == "" {
		status = "completed"
	}

	return models.AnalysisResult{
		SessionID:           opts.SessionID,
		Repository:          repoName,
		TotalIssuesAnalyzed: len(issues),
		GeneratedAt:         time.Now(),
		FinalReport: models.FinalReport{
			Metadata: models.ReportMetadata{
				Repository:         repoName,
				SessionID:          opts.SessionID,
				AnalysisDate:       time.Now(),
				AnalysisPeriodDays: req.AnalysisPeriodDays,
				ConfidenceScore:    score,
				DemoMode:           opts.DemoMode,
				Degraded:           opts.Degraded,
				Status:             status,
			},
			ExecutiveSummary: models.ExecutiveSummary{
				Overview:        fmt.Sprintf("Analysis of %s with %d issues analyzed", repoName, len(issues)),
				KeyFindings:     findings,
				Recommendations: summaryRecs,
			},
			DashboardData: models.DashboardData{
				DailyIssues: daily,
				IssueStates: states,
				TopLabels:   labelCounts,
				SummaryMetrics: models.SummaryMetrics{
					TotalIssues:    len(issues),
					OpenIssues:     open,
					TrendDirection: direction,
					HealthScore:    healthScore(len(issues), open, direction),
				},
			},
			DetailedInsights: art.Insights,
			Recommendations:  art.Recommendations,
		},
	}
}

func healthScore(total, open int, direction string) int {
	score := 7
	if total > 0 && float64(open)/float64(total) > 0.7 {
		score -= 2
	}
	switch direction {
	case "increasing":
		score--
	case "decreasing":
		score++
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
