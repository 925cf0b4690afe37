package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/log"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
)

// streamMessage is the envelope pushed on the event stream. The type field
// mirrors the poll API so clients can share decoding logic.
type streamMessage struct {
	Type      string                `json:"type"`
	SessionID string                `json:"session_id"`
	State     *models.WorkflowState `json:"state,omitempty"`
	Detail    string                `json:"detail,omitempty"`
}

// eventsHandler streams workflow state updates as server-sent events. The
// stream ends when the session reaches a terminal step or the client goes
// away; the poll endpoints remain authoritative either way.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.mgr.GetStatus(id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sendEvent(w, streamMessage{Type: "connection_established", SessionID: id})
	flusher.Flush()

	sub := s.mgr.Subscribe(id)
	defer s.mgr.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			state := ev.State
			sendEvent(w, streamMessage{Type: "state_update", SessionID: id, State: &state})
			if state.CurrentStep == models.StepFailed && state.Error != nil {
				sendEvent(w, streamMessage{Type: "error", SessionID: id, Detail: state.Error.Message})
			}
			flusher.Flush()
		}
	}
}

func sendEvent(w http.ResponseWriter, msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.GetLogger().Errorf("Failed to encode stream message: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
