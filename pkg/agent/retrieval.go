package agent

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/github"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// DataRetrievalAgent fetches the issue history and scores its quality. The
// quality score feeds the gate decision that follows this stage.
type DataRetrievalAgent struct {
	fetcher github.Fetcher
	mem     memory.Store
	logger  Logger
}

func NewDataRetrievalAgent(fetcher github.Fetcher, mem memory.Store, logger Logger) *DataRetrievalAgent {
	return &DataRetrievalAgent{fetcher: fetcher, mem: mem, logger: logger}
}

func (a *DataRetrievalAgent) ID() models.AgentID {
	return models.AgentDataRetrieval
}

func (a *DataRetrievalAgent) Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error) {
	if prof := readProfile(a.mem, req.Repository, a.logger); prof != nil {
		a.logger.Debugf("Repository %s seen in %d previous runs, last quality %.2f",
			req.Repository, prof.Runs, prof.LastQualityScore)
	}

	since := req.Since(time.Now())
	data, err := a.fetcher.FetchIssues(ctx, req.Repository, since, req.IncludeClosed())
	if err != nil {
		return art, classifyFetchError(err)
	}

	issues := make([]models.Issue, 0, len(data.Issues))
	for _, is := range data.Issues {
		issues = append(issues, models.Issue{
			ID:            is.ID,
			Number:        is.Number,
			Title:         is.Title,
			State:         is.State,
			CreatedAt:     is.CreatedAt,
			ClosedAt:      is.ClosedAt,
			Labels:        is.Labels,
			Assignees:     is.Assignees,
			Author:        is.Author,
			CommentsCount: is.CommentsCount,
		})
	}

	score := QualityScore(issues, req.AnalysisPeriodDays)
	a.logger.Infof("Retrieved %d issues for %s, quality score %.2f", len(issues), req.Repository, score)

	art.Retrieval = &models.RetrievalArtifact{
		Repository: models.RepositoryInfo{
			FullName:    data.Repository.FullName,
			Description: data.Repository.Description,
			Language:    data.Repository.Language,
			Stars:       data.Repository.Stars,
			Forks:       data.Repository.Forks,
			OpenIssues:  data.Repository.OpenIssues,
		},
		Issues:       issues,
		QualityScore: score,
		WindowStart:  data.WindowStart,
		WindowEnd:    data.WindowEnd,
	}

	writeProfile(a.mem, req.Repository, a.logger, func(p *memory.Profile) {
		p.Runs++
		p.LastQualityScore = score
		p.RecordStage(string(a.ID()))
	})
	return art, nil
}

// QualityScore rates the retrieved history in [0,1] from volume and recency.
// The formula is a heuristic; the threshold it is compared against is
// configuration.
func QualityScore(issues []models.Issue, periodDays int) float64 {
	if len(issues) == 0 {
		return 0.1
	}
	volume := float64(len(issues)) / 50.0
	if volume > 1 {
		volume = 1
	}

	// Fraction of the window with at least some activity in its recent half.
	cutoff := time.Now().AddDate(0, 0, -periodDays/2)
	recent := 0
	for _, is := range issues {
		if is.CreatedAt.After(cutoff) {
			recent++
		}
	}
	recency := float64(recent) / float64(len(issues))

	score := 0.7*volume + 0.3*recency
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func classifyFetchError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case github.IsNotFound(err):
		return Fatal(errors.Wrap(err, "repository not found"))
	case github.IsRateLimited(err):
		return Transient(errors.Wrap(err, "rate limited"))
	default:
		return Transient(err)
	}
}

// readProfile fetches the repository profile; a store failure only logs.
func readProfile(mem memory.Store, repository string, logger Logger) *memory.Profile {
	if mem == nil {
		return nil
	}
	prof, err := mem.Get(repository)
	if err != nil {
		logger.Errorf("Failed to read memory profile for %s: %v", repository, err)
		return nil
	}
	return prof
}

// writeProfile applies update to the repository profile; a store failure only
// logs and never affects the stage outcome.
func writeProfile(mem memory.Store, repository string, logger Logger, update func(*memory.Profile)) {
	if mem == nil {
		return
	}
	prof, err := mem.Get(repository)
	if err != nil {
		logger.Errorf("Failed to read memory profile for %s: %v", repository, err)
		return
	}
	if prof == nil {
		prof = memory.NewProfile(repository)
	}
	update(prof)
	if err := mem.Put(prof); err != nil {
		logger.Errorf("Failed to write memory profile for %s: %v", repository, err)
	}
}
