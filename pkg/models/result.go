package models

import "time"

// ReportMetadata describes how a final report was produced.
type ReportMetadata struct {
	Repository         string    `json:"repository"`
	SessionID          string    `json:"session_id"`
	AnalysisDate       time.Time `json:"analysis_date"`
	AnalysisPeriodDays int       `json:"analysis_period_days"`
	ConfidenceScore    float64   `json:"confidence_score"`
	DemoMode           bool      `json:"demo_mode"`
	Degraded           bool      `json:"degraded"`
	Status             string    `json:"status"` // "completed" or "fallback_completion"
}

// SummaryMetrics are the headline numbers of the dashboard.
type SummaryMetrics struct {
	TotalIssues    int    `json:"total_issues"`
	OpenIssues     int    `json:"open_issues"`
	TrendDirection string `json:"trend_direction"`
	HealthScore    int    `json:"health_score"`
}

// DashboardData is the chart-ready portion of the report.
type DashboardData struct {
	DailyIssues    map[string]int `json:"daily_issues"`
	IssueStates    map[string]int `json:"issue_states"`
	TopLabels      map[string]int `json:"top_labels"`
	SummaryMetrics SummaryMetrics `json:"summary_metrics"`
}

// ExecutiveSummary is the prose portion of the report.
type ExecutiveSummary struct {
	Overview        string   `json:"overview"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
}

// FinalReport is the assembled report body.
type FinalReport struct {
	Metadata         ReportMetadata   `json:"metadata"`
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	DashboardData    DashboardData    `json:"dashboard_data"`
	DetailedInsights []Insight        `json:"detailed_insights"`
	Recommendations  []Recommendation `json:"recommendations"`
}

// AnalysisResult is the immutable terminal artifact of a session. It is
// produced exactly once, by the report stage or by error recovery on the
// degraded path, and never overwritten afterwards.
type AnalysisResult struct {
	SessionID           string      `json:"session_id"`
	Repository          string      `json:"repository"`
	TotalIssuesAnalyzed int         `json:"total_issues_analyzed"`
	FinalReport         FinalReport `json:"final_report"`
	GeneratedAt         time.Time   `json:"generated_at"`
}

// Degraded reports whether this result was produced without running every
// stage.
func (r AnalysisResult) Degraded() bool {
	return r.FinalReport.Metadata.Degraded
}
