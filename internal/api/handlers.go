// Package api provides HTTP handlers for PrepVox endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepvox/PrepVox/internal/auth"
	"github.com/prepvox/PrepVox/internal/models"
)

// signupRequest carries a sign-up submission.
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signinRequest carries a sign-in submission.
type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// createInterviewRequest carries a new interview record.
type createInterviewRequest struct {
	Role      string   `json:"role"`
	Level     string   `json:"level"`
	Type      string   `json:"type"`
	Techstack []string `json:"techstack"`
	Questions []string `json:"questions"`
}

// feedbackView is the shaped feedback display: the stored text-encoded
// fields parsed into structured lists.
type feedbackView struct {
	InterviewID         string                 `json:"interviewId"`
	Role                string                 `json:"role"`
	Type                models.InterviewType   `json:"type"`
	TotalScore          float64                `json:"totalScore"`
	CategoryScores      []models.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
	CreatedAt           string                 `json:"createdAt"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("PrepVox API healthy", nil))
}

func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.signupHandler: processing sign-up request", "method", r.Method, "path", r.URL.Path)

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.signupHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Email == "" || req.Password == "" {
		slog.Warn("Server.signupHandler: missing email or password")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Email and password are required"))
		return
	}

	user, err := s.auth.SignUp(req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			writeJSONResponse(w, http.StatusConflict, models.Error("Email already registered"))
			return
		}
		slog.Error("Server.signupHandler: sign-up failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create account"))
		return
	}

	slog.Info("Server.signupHandler: account created", "userID", user.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Account created successfully", user))
}

func (s *Server) signinHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.signinHandler: processing sign-in request", "method", r.Method, "path", r.URL.Path)

	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.signinHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	token, user, err := s.auth.SignIn(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Invalid email or password"))
			return
		}
		slog.Error("Server.signinHandler: sign-in failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to sign in"))
		return
	}

	http.SetCookie(w, s.auth.SessionCookie(token))
	slog.Info("Server.signinHandler: session issued", "userID", user.ID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Signed in successfully", user))
}

func (s *Server) signoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie := s.auth.SessionCookie("")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Signed out successfully", nil))
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	writeJSONResponse(w, http.StatusOK, models.Success(user))
}

func (s *Server) createInterviewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	user := auth.UserFromContext(r.Context())
	slog.Debug("Server.createInterviewHandler: processing create request", "userID", user.ID)

	var req createInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createInterviewHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	iv := models.Interview{
		Role:      req.Role,
		Level:     req.Level,
		Type:      models.InterviewType(req.Type),
		Techstack: req.Techstack,
		Questions: req.Questions,
		UserID:    user.ID,
	}
	id, err := s.interviews.CreateInterview(iv)
	if err != nil {
		if isValidationError(err) {
			slog.Warn("Server.createInterviewHandler: validation failed", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.createInterviewHandler: failed to create interview", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create interview"))
		return
	}

	slog.Info("Server.createInterviewHandler: interview created", "interviewID", id, "userID", user.ID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Interview created successfully", map[string]string{"interviewId": id}))
}

func (s *Server) listInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	slog.Debug("Server.listInterviewsHandler: listing interviews", "userID", user.ID)

	interviews, err := s.interviews.GetInterviewsByUserID(user.ID)
	if err != nil {
		slog.Error("Server.listInterviewsHandler: failed to list interviews", "error", err, "userID", user.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list interviews"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(interviews))
}

func (s *Server) latestInterviewsHandler(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	slog.Debug("Server.latestInterviewsHandler: listing community feed", "userID", user.ID)

	interviews, err := s.interviews.GetLatestInterviews(user.ID, 0)
	if err != nil {
		slog.Error("Server.latestInterviewsHandler: failed to list interviews", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list interviews"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(interviews))
}

func (s *Server) getInterviewHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("Server.getInterviewHandler: fetching interview", "interviewID", id)

	iv, err := s.interviews.GetInterviewByID(id)
	if err != nil {
		slog.Error("Server.getInterviewHandler: failed to fetch interview", "error", err, "interviewID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch interview"))
		return
	}
	if iv == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Interview not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(iv))
}

// feedbackViewHandler renders the shaped feedback display for one interview.
// Unauthenticated requests are redirected to the sign-in location; absent
// interviews or feedback redirect to the root.
func (s *Server) feedbackViewHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("Server.feedbackViewHandler: fetching feedback view", "interviewID", id)

	user, err := s.auth.Authenticate(r)
	if err != nil {
		slog.Error("Server.feedbackViewHandler: authentication lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to authenticate request"))
		return
	}
	if user == nil {
		http.Redirect(w, r, "/auth/signin", http.StatusSeeOther)
		return
	}

	iv, err := s.interviews.GetInterviewByID(id)
	if err != nil {
		slog.Error("Server.feedbackViewHandler: failed to fetch interview", "error", err, "interviewID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch interview"))
		return
	}
	if iv == nil {
		slog.Debug("Server.feedbackViewHandler: interview not found, redirecting", "interviewID", id)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	fb, err := s.interviews.GetFeedbackByInterviewID(id, user.ID)
	if err != nil {
		slog.Error("Server.feedbackViewHandler: failed to fetch feedback", "error", err, "interviewID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch feedback"))
		return
	}
	if fb == nil {
		slog.Debug("Server.feedbackViewHandler: feedback not found, redirecting", "interviewID", id, "userID", user.ID)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	view := feedbackView{
		InterviewID:         iv.ID,
		Role:                iv.Role,
		Type:                iv.Type,
		TotalScore:          fb.TotalScore,
		CategoryScores:      models.ParseCategoryScores(fb.CategoryScores),
		Strengths:           models.ParseBulletList(fb.Strengths),
		AreasForImprovement: models.ParseBulletList(fb.AreasForImprovement),
		FinalAssessment:     fb.FinalAssessment,
		CreatedAt:           fb.CreatedAt,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// isValidationError reports whether an error is a client input problem.
func isValidationError(err error) bool {
	return errors.Is(err, models.ErrEmptyUserID) ||
		errors.Is(err, models.ErrEmptyRole) ||
		errors.Is(err, models.ErrRoleTooLong) ||
		errors.Is(err, models.ErrLevelTooLong) ||
		errors.Is(err, models.ErrInvalidType)
}
