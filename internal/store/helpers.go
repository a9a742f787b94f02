package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prepvox/PrepVox/internal/models"
)

// ErrNotFound is returned by mutating operations whose target record is absent.
var ErrNotFound = errors.New("record not found")

// encodeStringSlice renders a string slice as the JSON TEXT column shape.
// Nil encodes as an empty array so records never round-trip to null.
func encodeStringSlice(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string slice: %w", err)
	}
	return string(data), nil
}

// decodeStringSlice parses a JSON TEXT column into a string slice.
// Empty or null columns decode to an empty slice.
func decodeStringSlice(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode string slice: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// scanInterview scans an Interview from sql.Rows.
func scanInterview(rows *sql.Rows) (models.Interview, error) {
	var iv models.Interview
	var techstackJSON, questionsJSON string
	err := rows.Scan(
		&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type,
		&techstackJSON, &questionsJSON, &iv.Finalized, &iv.CreatedAt,
	)
	if err != nil {
		return iv, fmt.Errorf("scan interview failed: %w", err)
	}
	if iv.Techstack, err = decodeStringSlice(techstackJSON); err != nil {
		return iv, err
	}
	if iv.Questions, err = decodeStringSlice(questionsJSON); err != nil {
		return iv, err
	}
	return iv, nil
}

// scanInterviewRow scans an Interview from a single sql.Row.
func scanInterviewRow(row *sql.Row) (models.Interview, error) {
	var iv models.Interview
	var techstackJSON, questionsJSON string
	err := row.Scan(
		&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type,
		&techstackJSON, &questionsJSON, &iv.Finalized, &iv.CreatedAt,
	)
	if err != nil {
		return iv, err
	}
	if iv.Techstack, err = decodeStringSlice(techstackJSON); err != nil {
		return iv, err
	}
	if iv.Questions, err = decodeStringSlice(questionsJSON); err != nil {
		return iv, err
	}
	return iv, nil
}

// scanFeedbackRow scans a Feedback from a single sql.Row. The text-encoded
// sub-fields are carried through verbatim; decoding them is a reader concern.
func scanFeedbackRow(row *sql.Row) (models.Feedback, error) {
	var fb models.Feedback
	err := row.Scan(
		&fb.ID, &fb.InterviewID, &fb.UserID, &fb.TotalScore,
		&fb.CategoryScores, &fb.Strengths, &fb.AreasForImprovement,
		&fb.FinalAssessment, &fb.CreatedAt,
	)
	return fb, err
}

// scanUserRow scans a User from a single sql.Row.
func scanUserRow(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}
