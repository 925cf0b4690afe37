package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAnalysisPeriodDays = 90
	MaxAnalysisPeriodDays     = 365
)

// ValidationError describes a malformed analysis request. It is returned
// before any workflow run starts and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// AnalysisRequest carries the immutable parameters of one analysis session.
type AnalysisRequest struct {
	Repository          string `json:"repository"`
	AnalysisPeriodDays  int    `json:"analysis_period_days"`
	IncludeClosedIssues *bool  `json:"include_closed_issues,omitempty"`
}

// Normalize fills defaults and reduces the repository identifier to the
// "owner/repo" form, accepting full github.com URLs as input.
func (r *AnalysisRequest) Normalize() {
	repo := strings.TrimSpace(r.Repository)
	repo = strings.TrimSuffix(repo, ".git")
	repo = strings.TrimPrefix(repo, "https://github.com/")
	repo = strings.TrimPrefix(repo, "http://github.com/")
	r.Repository = strings.Trim(repo, "/")

	if r.AnalysisPeriodDays == 0 {
		r.AnalysisPeriodDays = DefaultAnalysisPeriodDays
	}
	if r.IncludeClosedIssues == nil {
		v := true
		r.IncludeClosedIssues = &v
	}
}

// Validate checks the request shape after Normalize.
func (r *AnalysisRequest) Validate() error {
	if r.Repository == "" {
		return &ValidationError{Field: "repository", Reason: "must not be empty"}
	}
	parts := strings.Split(r.Repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &ValidationError{Field: "repository", Reason: "must be in 'owner/repo' form"}
	}
	if r.AnalysisPeriodDays < 1 {
		return &ValidationError{Field: "analysis_period_days", Reason: "must be positive"}
	}
	if r.AnalysisPeriodDays > MaxAnalysisPeriodDays {
		return &ValidationError{Field: "analysis_period_days", Reason: fmt.Sprintf("must not exceed %d", MaxAnalysisPeriodDays)}
	}
	return nil
}

// IncludeClosed reports whether closed issues are part of the analysis window.
func (r AnalysisRequest) IncludeClosed() bool {
	return r.IncludeClosedIssues == nil || *r.IncludeClosedIssues
}

// Since returns the lower bound of the analysis window relative to now.
func (r AnalysisRequest) Since(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.AnalysisPeriodDays)
}

// Session is one end-to-end analysis run. The request parameters are fixed at
// creation time; the session owns exactly one WorkflowState at a time.
type Session struct {
	ID        string          `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
	Request   AnalysisRequest `json:"request"`
}
