// Package store provides storage backends for PrepVox.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/prepvox/PrepVox/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateInterview(iv models.Interview) (string, error) {
	iv.ID = uuid.NewString()
	if iv.CreatedAt == "" {
		iv.CreatedAt = nowISO()
	}
	techstackJSON, err := encodeStringSlice(iv.Techstack)
	if err != nil {
		return "", err
	}
	questionsJSON, err := encodeStringSlice(iv.Questions)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`INSERT INTO interviews (id, user_id, role, level, type, techstack, questions, finalized, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.UserID, iv.Role, iv.Level, string(iv.Type), techstackJSON, questionsJSON, iv.Finalized, iv.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateInterview failed", "error", err, "userID", iv.UserID)
		return "", fmt.Errorf("failed to insert interview: %w", err)
	}
	slog.Debug("SQLiteStore CreateInterview succeeded", "id", iv.ID, "userID", iv.UserID)
	return iv.ID, nil
}

func (s *SQLiteStore) GetInterviewByID(id string) (*models.Interview, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE id = ?`, id)
	iv, err := scanInterviewRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetInterviewByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query interview %s: %w", id, err)
	}
	return &iv, nil
}

func (s *SQLiteStore) GetInterviewsByUserID(userID string) ([]models.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetInterviewsByUserID query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query interviews for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectInterviews(rows)
}

func (s *SQLiteStore) GetLatestInterviews(limit int) ([]models.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE finalized = 1 ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore GetLatestInterviews query failed", "error", err)
		return nil, fmt.Errorf("failed to query latest interviews: %w", err)
	}
	defer rows.Close()
	return collectInterviews(rows)
}

func (s *SQLiteStore) MarkInterviewFinalized(id string) error {
	res, err := s.db.Exec(`UPDATE interviews SET finalized = 1 WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore MarkInterviewFinalized failed", "error", err, "id", id)
		return fmt.Errorf("failed to finalize interview %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	slog.Debug("SQLiteStore MarkInterviewFinalized succeeded", "id", id)
	return nil
}

func (s *SQLiteStore) SaveFeedback(fb models.Feedback) (string, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt == "" {
		fb.CreatedAt = nowISO()
	}
	// Full replace by key, not a merge.
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.InterviewID, fb.UserID, fb.TotalScore, fb.CategoryScores, fb.Strengths, fb.AreasForImprovement, fb.FinalAssessment, fb.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore SaveFeedback failed", "error", err, "interviewID", fb.InterviewID)
		return "", fmt.Errorf("failed to save feedback for interview %s: %w", fb.InterviewID, err)
	}
	slog.Debug("SQLiteStore SaveFeedback succeeded", "id", fb.ID, "interviewID", fb.InterviewID)
	return fb.ID, nil
}

func (s *SQLiteStore) GetFeedbackByInterviewID(interviewID, userID string) (*models.Feedback, error) {
	row := s.db.QueryRow(
		`SELECT id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at
		 FROM feedback WHERE interview_id = ? AND user_id = ? LIMIT 1`, interviewID, userID)
	fb, err := scanFeedbackRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFeedbackByInterviewID failed", "error", err, "interviewID", interviewID)
		return nil, fmt.Errorf("failed to query feedback for interview %s: %w", interviewID, err)
	}
	return &fb, nil
}

func (s *SQLiteStore) CreateUser(u models.User) (string, error) {
	u.ID = uuid.NewString()
	if u.CreatedAt == "" {
		u.CreatedAt = nowISO()
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateUser failed", "error", err, "email", u.Email)
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return u.ID, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &u, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// collectInterviews drains rows into a slice, shared by both queries.
func collectInterviews(rows *sql.Rows) ([]models.Interview, error) {
	var interviews []models.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interview rows: %w", err)
	}
	return interviews, nil
}
