package models

import "time"

// Issue is the structured form of one GitHub issue inside the analysis window.
type Issue struct {
	ID            int64      `json:"id"`
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	Labels        []string   `json:"labels"`
	Assignees     []string   `json:"assignees"`
	Author        string     `json:"author"`
	CommentsCount int        `json:"comments_count"`
}

// RepositoryInfo is the repository metadata attached to the retrieval artifact.
type RepositoryInfo struct {
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
	OpenIssues  int    `json:"open_issues"`
}

// RetrievalArtifact is the output of the data retrieval stage. QualityScore
// in [0,1] feeds the quality gate.
type RetrievalArtifact struct {
	Repository   RepositoryInfo `json:"repository"`
	Issues       []Issue        `json:"issues"`
	QualityScore float64        `json:"quality_score"`
	WindowStart  time.Time      `json:"window_start"`
	WindowEnd    time.Time      `json:"window_end"`
}

// TrendAnalysis is the output of the analysis stage.
type TrendAnalysis struct {
	Direction       string         `json:"trend_direction"` // "increasing", "decreasing", "stable"
	Slope           float64        `json:"trend_slope"`
	DailyCounts     map[string]int `json:"daily_counts"`
	OpenRatio       float64        `json:"open_ratio"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// Insight is one finding produced by the insight stage.
type Insight struct {
	Source     string  `json:"source"`
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Recommendation is one actionable suggestion produced by the insight stage.
type Recommendation struct {
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Priority       string `json:"priority"`
	Rationale      string `json:"rationale"`
}

// Artifacts accumulates stage outputs as the pipeline advances. Each stage
// receives the artifacts of its predecessors and returns an extended copy;
// earlier entries are never mutated.
type Artifacts struct {
	Retrieval       *RetrievalArtifact
	Trend           *TrendAnalysis
	Insights        []Insight
	Recommendations []Recommendation
	Report          *AnalysisResult
}
