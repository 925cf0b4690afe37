// Package http exposes the analysis service over a JSON API plus a
// server-sent-events stream for live progress.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/internal/log"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/models"
	"github.com/jeffrey-won-personal/github-issue-trend-analyzer/pkg/session"
)

// Server wires the HTTP handlers over a session manager.
type Server struct {
	mgr      *session.Manager
	demoMode bool
}

func NewServer(mgr *session.Manager, demoMode bool) *Server {
	return &Server{mgr: mgr, demoMode: demoMode}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.analyzeHandler)
	mux.HandleFunc("GET /status/{id}", s.statusHandler)
	mux.HandleFunc("GET /results/{id}", s.resultsHandler)
	mux.HandleFunc("GET /events/{id}", s.eventsHandler)
	mux.HandleFunc("POST /cancel/{id}", s.cancelHandler)
	mux.HandleFunc("GET /sessions", s.sessionsHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// StartServer runs the API until the listener fails.
func StartServer(port string, mgr *session.Manager, demoMode bool) error {
	srv := NewServer(mgr, demoMode)
	log.GetLogger().Infof("Starting analysis server on :%s", port)
	return http.ListenAndServe(":"+port, srv.Handler())
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	sess, err := s.mgr.Create(req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		log.GetLogger().Errorf("Failed to create session: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"session_id": sess.ID,
		"repository": sess.Request.Repository,
		"created_at": sess.CreatedAt,
		"status_url": "/status/" + sess.ID,
		"events_url": "/events/" + sess.ID,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	state, err := s.mgr.GetStatus(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) resultsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.mgr.GetResult(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNotReady):
		writeError(w, http.StatusConflict, "analysis still in progress")
	case errors.Is(err, session.ErrAlreadyTerminal):
		writeError(w, http.StatusGone, "session was cancelled")
	default:
		var rerr *session.ResultError
		if errors.As(err, &rerr) {
			writeError(w, http.StatusGone, rerr.Detail)
			return
		}
		log.GetLogger().Errorf("Failed to fetch result for session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch result")
	}
}

func (s *Server) cancelHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.mgr.Cancel(id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": "cancellation_requested"})
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "session already finished")
	default:
		log.GetLogger().Errorf("Failed to cancel session %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to cancel session")
	}
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.mgr.ListSessions()
	if err != nil {
		log.GetLogger().Errorf("Failed to list sessions: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": recs, "total": len(recs)})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"demo_mode": s.demoMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
