package models

import "time"

// Step identifies the pipeline position of a session.
type Step string

const (
	StepDataRetrieval Step = "data_retrieval"
	StepQualityGate   Step = "quality_gate"
	StepAnalysis      Step = "analysis"
	StepInsight       Step = "insight"
	StepReport        Step = "report"
	StepErrorRecovery Step = "error_recovery"
	StepCompleted     Step = "completed"
	StepFailed        Step = "failed"
	StepCancelled     Step = "cancelled"
)

// Terminal reports whether a session in this step will never transition again.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepCancelled
}

// AgentStatus is the per-stage execution status.
type AgentStatus string

const (
	PendingAgentStatus   AgentStatus = "pending"
	RunningAgentStatus   AgentStatus = "running"
	CompletedAgentStatus AgentStatus = "completed"
	SkippedAgentStatus   AgentStatus = "skipped"
	FailedAgentStatus    AgentStatus = "failed"
)

// AgentID names one of the four stage agents.
type AgentID string

const (
	AgentDataRetrieval AgentID = "data_retrieval"
	AgentAnalysis      AgentID = "analysis"
	AgentInsight       AgentID = "insight"
	AgentReport        AgentID = "report"
)

// StageAgents is the fixed, ordered stage list of the pipeline.
var StageAgents = []AgentID{AgentDataRetrieval, AgentAnalysis, AgentInsight, AgentReport}

// Progress is the most recent human-readable progress note.
type Progress struct {
	Step      Step      `json:"step"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StageError records why a stage gave up, including how many attempts it made.
type StageError struct {
	Stage    AgentID `json:"stage"`
	Attempts int     `json:"attempts"`
	Message  string  `json:"message"`
}

// WorkflowState is the observable state of one session. The engine mutates a
// private copy and publishes clones; a published snapshot is never touched
// again, so readers need no locking.
type WorkflowState struct {
	SessionID            string                  `json:"session_id"`
	CurrentStep          Step                    `json:"current_step"`
	CompletionPercentage float64                 `json:"completion_percentage"`
	AgentStatuses        map[AgentID]AgentStatus `json:"agent_statuses"`
	LatestProgress       *Progress               `json:"latest_progress,omitempty"`
	Degraded             bool                    `json:"degraded"`
	Error                *StageError             `json:"error,omitempty"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

// NewWorkflowState returns the initial state: data_retrieval at 0%, every
// agent pending.
func NewWorkflowState(sessionID string) WorkflowState {
	statuses := make(map[AgentID]AgentStatus, len(StageAgents))
	for _, id := range StageAgents {
		statuses[id] = PendingAgentStatus
	}
	return WorkflowState{
		SessionID:     sessionID,
		CurrentStep:   StepDataRetrieval,
		AgentStatuses: statuses,
		UpdatedAt:     time.Now(),
	}
}

// Clone deep-copies the state so a published snapshot shares nothing mutable
// with the engine's working copy.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	out.AgentStatuses = make(map[AgentID]AgentStatus, len(s.AgentStatuses))
	for k, v := range s.AgentStatuses {
		out.AgentStatuses[k] = v
	}
	if s.LatestProgress != nil {
		p := *s.LatestProgress
		out.LatestProgress = &p
	}
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

// RunningAgent returns the agent currently marked running, if any. The
// pipeline is strictly sequential, so there is at most one.
func (s WorkflowState) RunningAgent() (AgentID, bool) {
	for _, id := range StageAgents {
		if s.AgentStatuses[id] == RunningAgentStatus {
			return id, true
		}
	}
	return "", false
}
