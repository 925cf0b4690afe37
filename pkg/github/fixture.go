package github

import (
	"context"
	"fmt"
	"time"
)

// FixtureFetcher serves a canned repository snapshot. It backs demo mode,
// where no GitHub credentials are available, and the engine tests.
type FixtureFetcher struct {
	Data RepoData
	Err  error
}

func (f *FixtureFetcher) FetchIssues(ctx context.Context, repository string, since time.Time, includeClosed bool) (RepoData, error) {
	if err := ctx.Err(); err != nil {
		return RepoData{}, err
	}
	if f.Err != nil {
		return RepoData{}, f.Err
	}
	data := f.Data
	if data.Repository.FullName == "" {
		data.Repository.FullName = repository
	}
	data.WindowStart = since
	data.WindowEnd = time.Now()
	if !includeClosed {
		open := data.Issues[:0:0]
		for _, is := range data.Issues {
			if is.State == "open" {
				open = append(open, is)
			}
		}
		data.Issues = open
	}
	return data, nil
}

// DemoFixture returns a small but plausible issue history spread over the
// window, enough to drive every stage of the pipeline.
func DemoFixture(now time.Time) RepoData {
	labels := [][]string{{"bug"}, {"enhancement"}, {"bug", "help wanted"}, {"documentation"}, {"question"}}
	var issues []IssueData
	for i := 0; i < 60; i++ {
		created := now.AddDate(0, 0, -(i * 3 / 2))
		is := IssueData{
			ID:            int64(1000 + i),
			Number:        i + 1,
			Title:         fmt.Sprintf("Demo issue #%d", i+1),
			State:         "open",
			CreatedAt:     created,
			Labels:        labels[i%len(labels)],
			Author:        fmt.Sprintf("contributor-%d", i%7),
			CommentsCount: i % 5,
		}
		if i%2 == 0 {
			closed := created.AddDate(0, 0, 4)
			is.State = "closed"
			is.ClosedAt = &closed
		}
		issues = append(issues, is)
	}
	return RepoData{
		Repository: RepoInfo{
			Description: "Demo repository",
			Language:    "Go",
			Stars:       1200,
			Forks:       180,
			OpenIssues:  30,
		},
		Issues: issues,
	}
}
