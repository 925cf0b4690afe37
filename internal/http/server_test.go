package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_http "github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/http"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/agent"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/broadcast"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/engine"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/github"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/memory"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/session"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/storage"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{})  {}
func (l logger) Errorf(format string, args ...interface{}) {}
func (l logger) Debugf(format string, args ...interface{}) {}

// blockingAgent parks until its release channel closes, so tests can observe
// in-flight sessions deterministically.
type blockingAgent struct {
	id      models.AgentID
	release chan struct{}
}

func (b *blockingAgent) ID() models.AgentID { return b.id }

func (b *blockingAgent) Execute(ctx context.Context, req models.AnalysisRequest, art models.Artifacts) (models.Artifacts, error) {
	select {
	case <-b.release:
		return art, nil
	case <-ctx.Done():
		return art, ctx.Err()
	}
}

func newTestServer(t *testing.T, block *blockingAgent) *httptest.Server {
	mem := memory.NewInMemoryStore()
	fetcher := &github.FixtureFetcher{Data: github.DemoFixture(time.Now())}
	agents := engine.Agents{
		Retrieval: agent.NewDataRetrievalAgent(fetcher, mem, logger{}),
		Analysis:  agent.NewTrendAnalysisAgent(mem, logger{}),
		Insight:   agent.NewInsightAgent(mem, logger{}),
		Report:    agent.NewReportAgent(mem, logger{}, true),
	}
	if block != nil {
		agents.Analysis = block
	}

	cfg := engine.DefaultConfig()
	cfg.DemoMode = true
	cfg.MaxAttempts = 2
	cfg.BackoffBase = time.Millisecond
	bc := broadcast.New(broadcast.DefaultQueueCapacity, logger{})
	eng := engine.New(cfg, agents, bc, logger{})
	mgr := session.NewManager(eng, bc, storage.NewMockStore(), logger{})
	t.Cleanup(mgr.Close)

	srv := httptest.NewServer(internal_http.NewServer(mgr, true).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postAnalyze(t *testing.T, srv *httptest.Server, body string) (int, map[string]interface{}) {
	resp, err := http.Post(srv.URL+"/analyze", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getJSON(t *testing.T, url string, out interface{}) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func awaitTerminal(t *testing.T, srv *httptest.Server, id string) models.WorkflowState {
	var state models.WorkflowState
	require.Eventually(t, func() bool {
		code := getJSON(t, srv.URL+"/status/"+id, &state)
		return code == http.StatusOK && state.CurrentStep.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return state
}

func TestAnalyzeEndToEnd(t *testing.T) {
	srv := newTestServer(t, nil)

	code, created := postAnalyze(t, srv, `{"repository": "acme/widgets", "analysis_period_days": 90}`)
	require.Equal(t, http.StatusAccepted, code)
	id, _ := created["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "acme/widgets", created["repository"])

	state := awaitTerminal(t, srv, id)
	assert.Equal(t, models.StepCompleted, state.CurrentStep)
	assert.Equal(t, 100.0, state.CompletionPercentage)

	var res models.AnalysisResult
	code = getJSON(t, srv.URL+"/results/"+id, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, res.SessionID)
	assert.Equal(t, 60, res.TotalIssuesAnalyzed)
	assert.True(t, res.FinalReport.Metadata.DemoMode)
}

func TestAnalyzeValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	code, body := postAnalyze(t, srv, `{"repository": "not-a-repo"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["detail"], "repository")

	code, _ = postAnalyze(t, srv, `{bad json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusUnknownSession(t *testing.T) {
	srv := newTestServer(t, nil)
	var body map[string]string
	code := getJSON(t, srv.URL+"/status/unknown-id", &body)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestResultsConflictWhileRunning(t *testing.T) {
	block := &blockingAgent{id: models.AgentAnalysis, release: make(chan struct{})}
	srv := newTestServer(t, block)

	code, created := postAnalyze(t, srv, `{"repository": "acme/widgets"}`)
	require.Equal(t, http.StatusAccepted, code)
	id := created["session_id"].(string)

	var body map[string]string
	code = getJSON(t, srv.URL+"/results/"+id, &body)
	assert.Equal(t, http.StatusConflict, code)

	close(block.release)
	awaitTerminal(t, srv, id)

	var res models.AnalysisResult
	code = getJSON(t, srv.URL+"/results/"+id, &res)
	assert.Equal(t, http.StatusOK, code)
}

func TestCancelFlow(t *testing.T) {
	block := &blockingAgent{id: models.AgentAnalysis, release: make(chan struct{})}
	srv := newTestServer(t, block)

	_, created := postAnalyze(t, srv, `{"repository": "acme/widgets"}`)
	id := created["session_id"].(string)

	// Wait until the session is inside the blocking stage.
	require.Eventually(t, func() bool {
		var state models.WorkflowState
		getJSON(t, srv.URL+"/status/"+id, &state)
		return state.CurrentStep == models.StepAnalysis
	}, 10*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/cancel/"+id, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	state := awaitTerminal(t, srv, id)
	assert.Equal(t, models.StepCancelled, state.CurrentStep)

	// The result of a cancelled session is gone, not pending.
	var body map[string]string
	code := getJSON(t, srv.URL+"/results/"+id, &body)
	assert.Equal(t, http.StatusGone, code)

	// Cancelling again conflicts.
	resp, err = http.Post(srv.URL+"/cancel/"+id, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelUnknownSession(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/cancel/unknown-id", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	var body map[string]interface{}
	code := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["demo_mode"])
}

func TestSessionsList(t *testing.T) {
	srv := newTestServer(t, nil)

	_, created := postAnalyze(t, srv, `{"repository": "acme/widgets"}`)
	id := created["session_id"].(string)
	awaitTerminal(t, srv, id)

	var body struct {
		Sessions []storage.SessionRecord `json:"sessions"`
		Total    int                     `json:"total"`
	}
	code := getJSON(t, srv.URL+"/sessions", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, id, body.Sessions[0].ID)
}

func TestEventStream(t *testing.T) {
	srv := newTestServer(t, nil)

	_, created := postAnalyze(t, srv, `{"repository": "acme/widgets"}`)
	id := created["session_id"].(string)

	resp, err := http.Get(srv.URL + "/events/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	type message struct {
		Type      string                `json:"type"`
		SessionID string                `json:"session_id"`
		State     *models.WorkflowState `json:"state"`
	}

	var messages []message
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg message
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
		messages = append(messages, msg)
	}

	require.NotEmpty(t, messages)
	assert.Equal(t, "connection_established", messages[0].Type)
	assert.Equal(t, id, messages[0].SessionID)

	last := messages[len(messages)-1]
	require.Equal(t, "state_update", last.Type)
	require.NotNil(t, last.State)
	assert.Equal(t, models.StepCompleted, last.State.CurrentStep)
	assert.Equal(t, 100.0, last.State.CompletionPercentage)

	// Percentages never regress across the stream.
	prev := -1.0
	for _, msg := range messages {
		if msg.State == nil {
			continue
		}
		assert.GreaterOrEqual(t, msg.State.CompletionPercentage, prev)
		prev = msg.State.CompletionPercentage
	}
}

func TestEventStreamUnknownSession(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/events/unknown-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
