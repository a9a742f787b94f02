// Package interview implements the interview lifecycle: data access,
// feedback generation, and the session controller state machine.
package interview

import (
	"log/slog"

	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/store"
)

// DefaultLatestLimit is the default size of the finalized-interview feed.
const DefaultLatestLimit = 20

// Service wraps the store with the data-access contracts. Every accessor
// short-circuits on absent required keys instead of passing them to the
// store: a missing identifier is an empty result, never an error.
type Service struct {
	store store.Store
}

// NewService creates a Service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// CreateInterview validates and writes a new interview record with
// finalized=false, an empty question list unless supplied, and a current
// timestamp. Returns the allocated identity.
func (s *Service) CreateInterview(iv models.Interview) (string, error) {
	if err := iv.Validate(); err != nil {
		slog.Warn("Service.CreateInterview: validation failed", "error", err, "userID", iv.UserID)
		return "", err
	}
	iv.Finalized = false
	if iv.Questions == nil {
		iv.Questions = []string{}
	}
	if iv.Techstack == nil {
		iv.Techstack = []string{}
	}

	id, err := s.store.CreateInterview(iv)
	if err != nil {
		slog.Error("Service.CreateInterview: store write failed", "error", err, "userID", iv.UserID)
		return "", err
	}
	slog.Info("Service.CreateInterview: interview created", "id", id, "userID", iv.UserID, "type", iv.Type)
	return id, nil
}

// GetInterviewByID returns the interview, or nil when the id is empty or the
// record is absent. An empty id never reaches the store.
func (s *Service) GetInterviewByID(id string) (*models.Interview, error) {
	if id == "" {
		slog.Debug("Service.GetInterviewByID: empty id, short-circuiting to absent")
		return nil, nil
	}
	return s.store.GetInterviewByID(id)
}

// GetFeedbackByInterviewID returns the feedback for the (interview, user)
// pair, limited to one. Either argument being empty short-circuits to absent.
func (s *Service) GetFeedbackByInterviewID(interviewID, userID string) (*models.Feedback, error) {
	if interviewID == "" || userID == "" {
		slog.Debug("Service.GetFeedbackByInterviewID: missing key, short-circuiting to absent",
			"interviewID_set", interviewID != "", "userID_set", userID != "")
		return nil, nil
	}
	return s.store.GetFeedbackByInterviewID(interviewID, userID)
}

// GetInterviewsByUserID returns the user's interviews, newest first. An
// empty userID short-circuits to an empty sequence.
func (s *Service) GetInterviewsByUserID(userID string) ([]models.Interview, error) {
	if userID == "" {
		slog.Debug("Service.GetInterviewsByUserID: empty userID, short-circuiting to empty")
		return []models.Interview{}, nil
	}
	interviews, err := s.store.GetInterviewsByUserID(userID)
	if err != nil {
		return nil, err
	}
	if interviews == nil {
		interviews = []models.Interview{}
	}
	return interviews, nil
}

// GetLatestInterviews returns finalized interviews newest first, truncated
// to limit (default 20). An empty userID short-circuits to an empty
// sequence. The feed is not filtered to exclude the requesting user; that
// remains a presentational choice.
func (s *Service) GetLatestInterviews(userID string, limit int) ([]models.Interview, error) {
	if userID == "" {
		slog.Debug("Service.GetLatestInterviews: empty userID, short-circuiting to empty")
		return []models.Interview{}, nil
	}
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	interviews, err := s.store.GetLatestInterviews(limit)
	if err != nil {
		return nil, err
	}
	if interviews == nil {
		interviews = []models.Interview{}
	}
	return interviews, nil
}
