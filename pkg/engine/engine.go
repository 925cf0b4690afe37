// Package engine drives one session's pipeline through its stages:
// DataRetrieval -> QualityGate -> Analysis -> Insight -> Report, with
// bounded retries, per-stage timeouts and graceful degradation. A stage
// fault never escapes the run loop; every session reaches exactly one
// terminal step.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/agent"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/broadcast"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// Logger defines the logging interface for the engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Agents is the closed set of stage adapters, one per pipeline position.
type Agents struct {
	Retrieval agent.Adapter
	Analysis  agent.Adapter
	Insight   agent.Adapter
	Report    agent.Adapter
}

// StageFailureError is returned by Run when the session terminates without a
// usable report.
type StageFailureError struct {
	Stage    models.AgentID
	Attempts int
	Message  string
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempts: %s", e.Stage, e.Attempts, e.Message)
}

// stageWeights drives completion_percentage on each success transition.
// Skipped stages inherit the percentage of the stage they bypass to.
var stageWeights = map[models.AgentID]float64{
	models.AgentDataRetrieval: 25,
	models.AgentAnalysis:      50,
	models.AgentInsight:       75,
	models.AgentReport:        100,
}

var stageSteps = map[models.AgentID]models.Step{
	models.AgentDataRetrieval: models.StepDataRetrieval,
	models.AgentAnalysis:      models.StepAnalysis,
	models.AgentInsight:       models.StepInsight,
	models.AgentReport:        models.StepReport,
}

// Engine runs session pipelines. One Run call is one sequential logical
// task; arbitrarily many sessions run concurrently through the same Engine.
type Engine struct {
	cfg    Config
	agents Agents
	bc     *broadcast.Broadcaster
	logger Logger
}

func New(cfg Config, agents Agents, bc *broadcast.Broadcaster, logger Logger) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		agents: agents,
		bc:     bc,
		logger: logger,
	}
}

// run is the per-session working set. It owns the only mutable copy of the
// workflow state; observers only ever see published clones.
type run struct {
	eng   *Engine
	sess  models.Session
	state models.WorkflowState
	art   models.Artifacts
}

// Run executes the full pipeline for one session and blocks until a
// terminal step is reached. It returns the result for completed (including
// degraded) sessions, a StageFailureError for failed ones, and ctx.Err()
// for cancelled ones.
func (e *Engine) Run(ctx context.Context, sess models.Session) (*models.AnalysisResult, error) {
	r := &run{
		eng:   e,
		sess:  sess,
		state: models.NewWorkflowState(sess.ID),
	}
	r.publish(models.StepDataRetrieval, "Starting analysis workflow")

	ordered := []agent.Adapter{e.agents.Retrieval, e.agents.Analysis, e.agents.Insight, e.agents.Report}
	fastPath := false

	for _, ad := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, r.cancel()
		}
		id := ad.ID()
		if fastPath && (id == models.AgentAnalysis || id == models.AgentInsight) {
			continue
		}

		r.state.CurrentStep = stageSteps[id]
		r.state.AgentStatuses[id] = models.RunningAgentStatus
		r.publish(stageSteps[id], fmt.Sprintf("Executing %s agent", id))

		art, attempts, err := e.runStage(ctx, ad, sess.Request, r.art)
		if err != nil {
			if ctx.Err() != nil {
				r.state.AgentStatuses[id] = models.FailedAgentStatus
				return nil, r.cancel()
			}
			return r.fail(id, attempts, err)
		}

		r.art = art
		r.state.AgentStatuses[id] = models.CompletedAgentStatus
		r.advance(stageWeights[id])
		r.publish(stageSteps[id], fmt.Sprintf("%s completed", id))

		if id == models.AgentDataRetrieval {
			fastPath = r.qualityGate()
		}
	}

	return r.complete()
}

type stageResult struct {
	art models.Artifacts
	err error
}

// runStage executes one stage with a per-attempt timeout and exponential
// backoff between attempts. Timeouts count as transient. A fatal error stops
// retrying immediately. Each attempt runs in its own goroutine so an adapter
// that never checks its context still cannot hold the session past the
// timeout; the buffered channel lets an abandoned attempt finish and be
// collected.
func (e *Engine) runStage(ctx context.Context, ad agent.Adapter, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		resultCh := make(chan stageResult, 1)
		go func() {
			out, err := ad.Execute(stageCtx, req, art)
			resultCh <- stageResult{art: out, err: err}
		}()

		var err error
		select {
		case res := <-resultCh:
			if res.err == nil {
				cancel()
				return res.art, attempt, nil
			}
			err = res.err
		case <-stageCtx.Done():
			err = stageCtx.Err()
		}
		cancel()
		if ctx.Err() != nil {
			return art, attempt, ctx.Err()
		}
		lastErr = err
		if agent.IsFatal(err) {
			e.logger.Errorf("Stage %s hit a fatal error on attempt %d: %v", ad.ID(), attempt, err)
			return art, attempt, err
		}
		e.logger.Infof("Stage %s attempt %d/%d failed: %v", ad.ID(), attempt, e.cfg.MaxAttempts, err)
		if attempt < e.cfg.MaxAttempts {
			backoff := e.cfg.BackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return art, attempt, ctx.Err()
			}
		}
	}
	return art, e.cfg.MaxAttempts, lastErr
}

// qualityGate evaluates the gate right after retrieval succeeds and, on the
// fast path, marks the skipped stages. Skipping is not a failure.
func (r *run) qualityGate() bool {
	score := r.art.Retrieval.QualityScore
	r.state.CurrentStep = models.StepQualityGate
	r.publish(models.StepQualityGate, fmt.Sprintf("Assessing data quality (score %.2f)", score))

	if DecideQuality(score, r.eng.cfg.QualityThreshold) == Proceed {
		return false
	}
	r.eng.logger.Infof("Session %s: quality %.2f below threshold %.2f, fast path to report",
		r.sess.ID, score, r.eng.cfg.QualityThreshold)
	r.state.AgentStatuses[models.AgentAnalysis] = models.SkippedAgentStatus
	r.state.AgentStatuses[models.AgentInsight] = models.SkippedAgentStatus
	r.state.Degraded = true
	r.publish(models.StepQualityGate, "Data quality below threshold, skipping analysis and insight")
	return true
}

// fail routes an exhausted or fatal stage. With a usable retrieval artifact
// the session degrades to a fallback report; without one it fails.
func (r *run) fail(id models.AgentID, attempts int, stageErr error) (*models.AnalysisResult, error) {
	r.state.AgentStatuses[id] = models.FailedAgentStatus
	r.state.Error = &models.StageError{
		Stage:    id,
		Attempts: attempts,
		Message:  stageErr.Error(),
	}

	if r.art.Retrieval == nil {
		r.state.CurrentStep = models.StepFailed
		r.publish(models.StepFailed, fmt.Sprintf("Stage %s failed, no usable data retrieved", id))
		r.eng.bc.CloseSession(r.sess.ID)
		r.eng.logger.Errorf("Session %s failed at %s after %d attempts: %v", r.sess.ID, id, attempts, stageErr)
		return nil, &StageFailureError{Stage: id, Attempts: attempts, Message: stageErr.Error()}
	}

	r.state.CurrentStep = models.StepErrorRecovery
	r.state.Degraded = true
	r.publish(models.StepErrorRecovery, fmt.Sprintf("Stage %s failed, generating fallback report", id))

	res := agent.BuildReport(r.sess.Request, r.art, agent.ReportOptions{
		SessionID: r.sess.ID,
		DemoMode:  r.eng.cfg.DemoMode,
		Degraded:  true,
		Status:    "fallback_completion",
	})
	r.art.Report = &res

	r.state.CurrentStep = models.StepCompleted
	r.advance(100)
	r.publish(models.StepCompleted, "Workflow completed with degraded result")
	r.eng.bc.CloseSession(r.sess.ID)
	r.eng.logger.Infof("Session %s completed degraded after %s failure", r.sess.ID, id)
	return &res, nil
}

// complete finalizes a session whose report stage produced a result.
func (r *run) complete() (*models.AnalysisResult, error) {
	res := r.art.Report
	if res == nil {
		// The report agent broke its contract; degrade rather than hang.
		return r.fail(models.AgentReport, 1, errors.New("report stage produced no result"))
	}
	res.SessionID = r.sess.ID
	res.FinalReport.Metadata.SessionID = r.sess.ID
	res.FinalReport.Metadata.Degraded = r.state.Degraded
	if r.state.Degraded {
		res.FinalReport.Metadata.Status = "fallback_completion"
	}

	r.state.CurrentStep = models.StepCompleted
	r.advance(100)
	r.publish(models.StepCompleted, "Workflow completed")
	r.eng.bc.CloseSession(r.sess.ID)
	r.eng.logger.Infof("Session %s completed, degraded=%v", r.sess.ID, r.state.Degraded)
	return res, nil
}

// cancel marks the session cancelled at a stage boundary. Accumulated
// artifacts are discarded.
func (r *run) cancel() error {
	if id, ok := r.state.RunningAgent(); ok {
		r.state.AgentStatuses[id] = models.FailedAgentStatus
	}
	r.art = models.Artifacts{}
	r.state.CurrentStep = models.StepCancelled
	r.publish(models.StepCancelled, "Workflow cancelled")
	r.eng.bc.CloseSession(r.sess.ID)
	r.eng.logger.Infof("Session %s cancelled", r.sess.ID)
	return context.Canceled
}

// advance moves completion_percentage forward, never backward.
func (r *run) advance(pct float64) {
	if pct > r.state.CompletionPercentage {
		r.state.CompletionPercentage = pct
	}
}

// publish emits an immutable snapshot of the current state before the engine
// proceeds.
func (r *run) publish(step models.Step, message string) {
	r.state.LatestProgress = &models.Progress{
		Step:      step,
		Message:   message,
		Timestamp: time.Now(),
	}
	r.state.UpdatedAt = time.Now()
	r.eng.bc.Publish(r.state)
}
