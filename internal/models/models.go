// Package models defines the core data structures for PrepVox.
//
// It includes interview and feedback records, transcript messages, and the
// API response envelope shared across modules.
package models

import (
	"errors"
)

// InterviewType defines how an interview session is conducted.
type InterviewType string

const (
	// InterviewTypeGenerate lets the voice agent generate questions on the fly.
	InterviewTypeGenerate InterviewType = "generate"
	// InterviewTypeInterview runs against a pre-authored question list.
	InterviewTypeInterview InterviewType = "interview"
)

// MessageRole identifies the speaker of a transcript message.
type MessageRole string

const (
	// MessageRoleUser is the interview candidate.
	MessageRoleUser MessageRole = "user"
	// MessageRoleSystem is injected context from the session service.
	MessageRoleSystem MessageRole = "system"
	// MessageRoleAssistant is the AI interviewer.
	MessageRoleAssistant MessageRole = "assistant"
)

// Validation constants for input validation
const (
	// MaxRoleLength defines the maximum allowed length for an interview role
	MaxRoleLength = 200
	// MaxLevelLength defines the maximum allowed length for an experience level
	MaxLevelLength = 100
	// FeedbackCategoryCount is the number of scoring categories every feedback carries
	FeedbackCategoryCount = 5
	// MinScore and MaxScore bound every category and total score
	MinScore = 0
	MaxScore = 100
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrEmptyInterviewID = errors.New("interview id cannot be empty")
	ErrEmptyRole        = errors.New("role cannot be empty")
	ErrRoleTooLong      = errors.New("role exceeds maximum length")
	ErrLevelTooLong     = errors.New("level exceeds maximum length")
	ErrInvalidType      = errors.New("invalid interview type")
	ErrEmptyTranscript  = errors.New("transcript cannot be empty")
)

// IsValidInterviewType checks if the given interview type is supported.
func IsValidInterviewType(t InterviewType) bool {
	switch t {
	case InterviewTypeGenerate, InterviewTypeInterview:
		return true
	default:
		return false
	}
}

// Interview represents one mock-interview session's persisted metadata.
//
// Finalized transitions false to true exactly once, performed only by the
// feedback generator after the feedback record is durably written.
type Interview struct {
	ID        string        `json:"id"`
	Role      string        `json:"role"`
	Level     string        `json:"level"`
	Techstack []string      `json:"techstack"`
	Type      InterviewType `json:"type"`
	UserID    string        `json:"userId"`
	Finalized bool          `json:"finalized"`
	CreatedAt string        `json:"createdAt"` // ISO-8601
	Questions []string      `json:"questions"`
}

// Validate checks the fields required to create an interview record.
func (i *Interview) Validate() error {
	if i.UserID == "" {
		return ErrEmptyUserID
	}
	if i.Role == "" {
		return ErrEmptyRole
	}
	if len(i.Role) > MaxRoleLength {
		return ErrRoleTooLong
	}
	if len(i.Level) > MaxLevelLength {
		return ErrLevelTooLong
	}
	if !IsValidInterviewType(i.Type) {
		return ErrInvalidType
	}
	return nil
}

// TranscriptMessage is one finalized spoken exchange captured during a session.
type TranscriptMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// CategoryScore is one scored evaluation category inside a feedback record.
type CategoryScore struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// Feedback is the persisted structured evaluation of one completed interview.
//
// CategoryScores is stored as a minified JSON array string, and Strengths and
// AreasForImprovement as newline-joined lines prefixed with "- ". These text
// shapes are a compatibility contract with existing stored records; readers
// must parse them defensively (see encoding.go).
type Feedback struct {
	ID                  string  `json:"id"`
	InterviewID         string  `json:"interviewId"`
	UserID              string  `json:"userId"`
	TotalScore          float64 `json:"totalScore"`
	CategoryScores      string  `json:"categoryScores"`
	Strengths           string  `json:"strengths"`
	AreasForImprovement string  `json:"areasForImprovement"`
	FinalAssessment     string  `json:"finalAssessment"`
	CreatedAt           string  `json:"createdAt"` // ISO-8601
}

// User represents an authenticated account.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt"`
}

// API Response types for consistent JSON responses

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
