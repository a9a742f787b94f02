// Package api provides HTTP handlers for live call sessions.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepvox/PrepVox/internal/auth"
	"github.com/prepvox/PrepVox/internal/interview"
	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/util"
)

// startSessionRequest describes the call session to run.
type startSessionRequest struct {
	Type        string   `json:"type"`
	InterviewID string   `json:"interviewId"`
	FeedbackID  string   `json:"feedbackId"`
	Questions   []string `json:"questions"`
	Role        string   `json:"role"`
	Level       string   `json:"level"`
	Techstack   []string `json:"techstack"`
}

// sessionState is the queryable view of a running or finished session.
type sessionState struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	LastMessage string `json:"lastMessage,omitempty"`
	Speaking    bool   `json:"speaking"`
	InterviewID string `json:"interviewId,omitempty"`
	FeedbackID  string `json:"feedbackId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// sessionEntry pairs a controller with its owner.
type sessionEntry struct {
	ctrl   *interview.Controller
	userID string
}

// sessionRegistry tracks live controllers keyed by session id.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]sessionEntry)}
}

// add registers a controller under a fresh session id.
func (r *sessionRegistry) add(ctrl *interview.Controller, userID string) string {
	id := util.GenerateSessionID()
	r.mu.Lock()
	r.sessions[id] = sessionEntry{ctrl: ctrl, userID: userID}
	r.mu.Unlock()
	return id
}

// get returns the entry for a session owned by userID, or nil.
func (r *sessionRegistry) get(id, userID string) *interview.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok || entry.userID != userID {
		return nil
	}
	return entry.ctrl
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	user := auth.UserFromContext(r.Context())
	slog.Debug("Server.startSessionHandler: processing session start", "userID", user.ID)

	if s.newTransport == nil {
		slog.Warn("Server.startSessionHandler: session service not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Session service not configured"))
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	sessionType := models.InterviewType(req.Type)
	if !models.IsValidInterviewType(sessionType) {
		slog.Warn("Server.startSessionHandler: invalid session type", "type", req.Type)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid session type"))
		return
	}

	ts, err := s.newTransport()
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to build session transport", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reach session service"))
		return
	}

	params := interview.CallParams{
		UserName:    user.Name,
		UserID:      user.ID,
		InterviewID: req.InterviewID,
		FeedbackID:  req.FeedbackID,
		Type:        sessionType,
		Questions:   req.Questions,
		Role:        req.Role,
		Level:       req.Level,
		Techstack:   req.Techstack,
	}
	ctrl := interview.NewController(s.interviews, s.generator, ts, s.targets, params)

	// The session outlives the request; it must not inherit the request
	// context.
	if err := ctrl.StartCall(context.Background()); err != nil {
		if isValidationError(err) {
			slog.Warn("Server.startSessionHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.startSessionHandler: failed to start session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}

	id := s.sessions.add(ctrl, user.ID)
	go s.reapWhenDone(id, ctrl)

	slog.Info("Server.startSessionHandler: session started", "sessionID", id, "userID", user.ID, "type", sessionType)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session started successfully", s.stateOf(id, ctrl)))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	ctrl := s.sessions.get(id, user.ID)
	if ctrl == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.stateOf(id, ctrl)))
}

func (s *Server) stopSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	slog.Debug("Server.stopSessionHandler: processing session stop", "sessionID", id, "userID", user.ID)

	ctrl := s.sessions.get(id, user.ID)
	if ctrl == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	ctrl.Disconnect()
	slog.Info("Server.stopSessionHandler: session stop requested", "sessionID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session stop requested", s.stateOf(id, ctrl)))
}

// stateOf snapshots a controller into the queryable session view.
func (s *Server) stateOf(id string, ctrl *interview.Controller) sessionState {
	state := sessionState{
		SessionID:   id,
		Status:      string(ctrl.Status()),
		LastMessage: ctrl.LastMessage(),
		Speaking:    ctrl.Speaking(),
		InterviewID: ctrl.InterviewID(),
	}
	if ctrl.Status() == interview.CallStatusFinished {
		outcome := ctrl.Outcome()
		state.InterviewID = outcome.InterviewID
		state.FeedbackID = outcome.FeedbackID
		if outcome.Err != nil {
			state.Error = outcome.Err.Error()
		}
	}
	return state
}

// reapWhenDone drops a finished session from the registry after the
// retention window.
func (s *Server) reapWhenDone(id string, ctrl *interview.Controller) {
	<-ctrl.Done()
	time.Sleep(s.sessionRetention)
	s.sessions.remove(id)
	slog.Debug("Server.reapWhenDone: session dropped from registry", "sessionID", id)
}
