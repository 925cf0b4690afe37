// Package github implements the data-retrieval collaborator: fetching a
// repository's issue history from the GitHub API.
package github

import (
	"context"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v58/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const maxIssues = 1000

// Fetcher retrieves the issue history of a repository within a time window.
type Fetcher interface {
	FetchIssues(ctx context.Context, repository string, since time.Time, includeClosed bool) (RepoData, error)
}

// RepoData is the raw fetch result handed to the retrieval agent.
type RepoData struct {
	Repository  RepoInfo
	Issues      []IssueData
	WindowStart time.Time
	WindowEnd   time.Time
}

// RepoInfo mirrors the repository metadata the report needs.
type RepoInfo struct {
	FullName    string
	Description string
	Language    string
	Stars       int
	Forks       int
	OpenIssues  int
}

// IssueData is one issue as returned by the API, pull requests excluded.
type IssueData struct {
	ID            int64
	Number        int
	Title         string
	State         string
	CreatedAt     time.Time
	ClosedAt      *time.Time
	Labels        []string
	Assignees     []string
	Author        string
	CommentsCount int
}

// Client fetches issues through the GitHub REST API.
type Client struct {
	gh *gh.Client
}

// NewClient builds a Client. With an empty token the client is
// unauthenticated and subject to the anonymous rate limit.
func NewClient(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{gh: gh.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: gh.NewClient(oauth2.NewClient(ctx, ts))}
}

// FetchIssues pages through the repository's issues created inside the
// window. Pull requests are filtered out; the GitHub API returns them mixed
// with issues.
func (c *Client) FetchIssues(ctx context.Context, repository string, since time.Time, includeClosed bool) (RepoData, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return RepoData{}, err
	}

	repo, _, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return RepoData{}, errors.Wrapf(err, "get repository %s", repository)
	}

	state := "open"
	if includeClosed {
		state = "all"
	}
	opts := &gh.IssueListByRepoOptions{
		State:       state,
		Since:       since,
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var issues []IssueData
	for {
		page, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return RepoData{}, errors.Wrapf(err, "list issues for %s", repository)
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			if is.GetCreatedAt().Time.Before(since) {
				continue
			}
			issues = append(issues, convertIssue(is))
			if len(issues) >= maxIssues {
				break
			}
		}
		if resp.NextPage == 0 || len(issues) >= maxIssues {
			break
		}
		opts.Page = resp.NextPage
	}

	return RepoData{
		Repository: RepoInfo{
			FullName:    repo.GetFullName(),
			Description: repo.GetDescription(),
			Language:    repo.GetLanguage(),
			Stars:       repo.GetStargazersCount(),
			Forks:       repo.GetForksCount(),
			OpenIssues:  repo.GetOpenIssuesCount(),
		},
		Issues:      issues,
		WindowStart: since,
		WindowEnd:   time.Now(),
	}, nil
}

func convertIssue(is *gh.Issue) IssueData {
	labels := make([]string, 0, len(is.Labels))
	for _, l := range is.Labels {
		labels = append(labels, l.GetName())
	}
	assignees := make([]string, 0, len(is.Assignees))
	for _, a := range is.Assignees {
		assignees = append(assignees, a.GetLogin())
	}
	var closedAt *time.Time
	if is.ClosedAt != nil {
		t := is.GetClosedAt().Time
		closedAt = &t
	}
	return IssueData{
		ID:            is.GetID(),
		Number:        is.GetNumber(),
		Title:         is.GetTitle(),
		State:         is.GetState(),
		CreatedAt:     is.GetCreatedAt().Time,
		ClosedAt:      closedAt,
		Labels:        labels,
		Assignees:     assignees,
		Author:        is.GetUser().GetLogin(),
		CommentsCount: is.GetComments(),
	}
}

func splitRepository(repository string) (owner, name string, err error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("malformed repository identifier %q", repository)
	}
	return parts[0], parts[1], nil
}

// IsRateLimited reports whether the error is a GitHub rate-limit response,
// which callers should treat as transient.
func IsRateLimited(err error) bool {
	var rle *gh.RateLimitError
	var arle *gh.AbuseRateLimitError
	return errors.As(err, &rle) || errors.As(err, &arle)
}

// IsNotFound reports whether the error is a 404 from the API, which callers
// should treat as fatal for the session.
func IsNotFound(err error) bool {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		return er.Response.StatusCode == http.StatusNotFound
	}
	return false
}
