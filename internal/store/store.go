// Package store provides storage backends for PrepVox.
//
// It includes an in-memory store for tests, plus SQLite and PostgreSQL
// backends for persistent interview, feedback, and user records.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prepvox/PrepVox/internal/models"
)

// Store defines the persistence operations shared by all backends.
//
// Callers are expected to pass well-formed keys; the empty-argument
// short-circuits required by the data-access contracts live in the
// interview service, not here.
type Store interface {
	// CreateInterview allocates a new identity and writes the full record.
	// Finalized and Questions defaults are the caller's responsibility.
	CreateInterview(iv models.Interview) (string, error)
	// GetInterviewByID returns the interview or nil when absent.
	GetInterviewByID(id string) (*models.Interview, error)
	// GetInterviewsByUserID returns the user's interviews, newest first.
	GetInterviewsByUserID(userID string) ([]models.Interview, error)
	// GetLatestInterviews returns finalized interviews, newest first,
	// truncated to limit.
	GetLatestInterviews(limit int) ([]models.Interview, error)
	// MarkInterviewFinalized sets the finalized flag to true.
	MarkInterviewFinalized(id string) error
	// SaveFeedback writes the feedback record with replace-by-key semantics.
	// When fb.ID is empty a new identity is allocated; the key used is returned.
	SaveFeedback(fb models.Feedback) (string, error)
	// GetFeedbackByInterviewID returns at most one feedback matching both
	// keys, or nil when absent.
	GetFeedbackByInterviewID(interviewID, userID string) (*models.Feedback, error)
	// CreateUser allocates a new identity and writes the user record.
	CreateUser(u models.User) (string, error)
	// GetUserByID returns the user or nil when absent.
	GetUserByID(id string) (*models.User, error)
	// GetUserByEmail returns the user or nil when absent.
	GetUserByEmail(email string) (*models.User, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a functional option for configuring store backends.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// nowISO returns the current time in the ISO-8601 shape stored on records.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// InMemoryStore is a simple in-memory store used in tests and as the
// reference implementation of Store semantics.
type InMemoryStore struct {
	mu         sync.Mutex
	interviews map[string]models.Interview
	feedback   map[string]models.Feedback
	users      map[string]models.User
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		interviews: make(map[string]models.Interview),
		feedback:   make(map[string]models.Feedback),
		users:      make(map[string]models.User),
	}
}

func (s *InMemoryStore) CreateInterview(iv models.Interview) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv.ID = uuid.NewString()
	if iv.CreatedAt == "" {
		iv.CreatedAt = nowISO()
	}
	s.interviews[iv.ID] = iv
	return iv.ID, nil
}

func (s *InMemoryStore) GetInterviewByID(id string) (*models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return nil, nil
	}
	return &iv, nil
}

func (s *InMemoryStore) GetInterviewsByUserID(userID string) ([]models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Interview
	for _, iv := range s.interviews {
		if iv.UserID == userID {
			result = append(result, iv)
		}
	}
	sortInterviewsNewestFirst(result)
	return result, nil
}

func (s *InMemoryStore) GetLatestInterviews(limit int) ([]models.Interview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Interview
	for _, iv := range s.interviews {
		if iv.Finalized {
			result = append(result, iv)
		}
	}
	sortInterviewsNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *InMemoryStore) MarkInterviewFinalized(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	iv, ok := s.interviews[id]
	if !ok {
		return ErrNotFound
	}
	iv.Finalized = true
	s.interviews[id] = iv
	return nil
}

func (s *InMemoryStore) SaveFeedback(fb models.Feedback) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt == "" {
		fb.CreatedAt = nowISO()
	}
	s.feedback[fb.ID] = fb
	return fb.ID, nil
}

func (s *InMemoryStore) GetFeedbackByInterviewID(interviewID, userID string) (*models.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fb := range s.feedback {
		if fb.InterviewID == interviewID && fb.UserID == userID {
			match := fb
			return &match, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateUser(u models.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.NewString()
	if u.CreatedAt == "" {
		u.CreatedAt = nowISO()
	}
	s.users[u.ID] = u
	return u.ID, nil
}

func (s *InMemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *InMemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			match := u
			return &match, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// sortInterviewsNewestFirst orders interviews by creation timestamp
// descending. Timestamps are ISO-8601 strings, so lexicographic order is
// chronological order.
func sortInterviewsNewestFirst(interviews []models.Interview) {
	sort.SliceStable(interviews, func(i, j int) bool {
		return interviews[i].CreatedAt > interviews[j].CreatedAt
	})
}
