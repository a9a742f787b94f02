// Package store provides storage backends for PrepVox.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/prepvox/PrepVox/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateInterview(iv models.Interview) (string, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		iv.ID, iv.UserID, iv.Role, iv.Level, string(iv.Type), techstackJSON, questionsJSON, iv.Finalized, iv.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateInterview failed", "error", err, "userID", iv.UserID)
		return "", fmt.Errorf("failed to insert interview: %w", err)
	}
	slog.Debug("PostgresStore CreateInterview succeeded", "id", iv.ID, "userID", iv.UserID)
	return iv.ID, nil
}

func (s *PostgresStore) GetInterviewByID(id string) (*models.Interview, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE id = $1`, id)
	iv, err := scanInterviewRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetInterviewByID failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query interview %s: %w", id, err)
	}
	return &iv, nil
}

func (s *PostgresStore) GetInterviewsByUserID(userID string) ([]models.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		slog.Error("PostgresStore GetInterviewsByUserID query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query interviews for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectInterviews(rows)
}

func (s *PostgresStore) GetLatestInterviews(limit int) ([]models.Interview, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, role, level, type, techstack, questions, finalized, created_at
		 FROM interviews WHERE finalized = TRUE ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore GetLatestInterviews query failed", "error", err)
		return nil, fmt.Errorf("failed to query latest interviews: %w", err)
	}
	defer rows.Close()
	return collectInterviews(rows)
}

func (s *PostgresStore) MarkInterviewFinalized(id string) error {
	res, err := s.db.Exec(`UPDATE interviews SET finalized = TRUE WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore MarkInterviewFinalized failed", "error", err, "id", id)
		return fmt.Errorf("failed to finalize interview %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrNotFound
	}
	slog.Debug("PostgresStore MarkInterviewFinalized succeeded", "id", id)
	return nil
}

func (s *PostgresStore) SaveFeedback(fb models.Feedback) (string, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt == "" {
		fb.CreatedAt = nowISO()
	}
	// Full replace by key, not a merge.
	_, err := s.db.Exec(
		`INSERT INTO feedback (id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   interview_id = EXCLUDED.interview_id,
		   user_id = EXCLUDED.user_id,
		   total_score = EXCLUDED.total_score,
		   category_scores = EXCLUDED.category_scores,
		   strengths = EXCLUDED.strengths,
		   areas_for_improvement = EXCLUDED.areas_for_improvement,
		   final_assessment = EXCLUDED.final_assessment,
		   created_at = EXCLUDED.created_at`,
		fb.ID, fb.InterviewID, fb.UserID, fb.TotalScore, fb.CategoryScores, fb.Strengths, fb.AreasForImprovement, fb.FinalAssessment, fb.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore SaveFeedback failed", "error", err, "interviewID", fb.InterviewID)
		return "", fmt.Errorf("failed to save feedback for interview %s: %w", fb.InterviewID, err)
	}
	slog.Debug("PostgresStore SaveFeedback succeeded", "id", fb.ID, "interviewID", fb.InterviewID)
	return fb.ID, nil
}

func (s *PostgresStore) GetFeedbackByInterviewID(interviewID, userID string) (*models.Feedback, error) {
	row := s.db.QueryRow(
		`SELECT id, interview_id, user_id, total_score, category_scores, strengths, areas_for_improvement, final_assessment, created_at
		 FROM feedback WHERE interview_id = $1 AND user_id = $2 LIMIT 1`, interviewID, userID)
	fb, err := scanFeedbackRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFeedbackByInterviewID failed", "error", err, "interviewID", interviewID)
		return nil, fmt.Errorf("failed to query feedback for interview %s: %w", interviewID, err)
	}
	return &fb, nil
}

func (s *PostgresStore) CreateUser(u models.User) (string, error) {
	u.ID = uuid.NewString()
	if u.CreatedAt == "" {
		u.CreatedAt = nowISO()
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore CreateUser failed", "error", err, "email", u.Email)
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return u.ID, nil
}

func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`, id)
	u, err := scanUserRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(`SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`, email)
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
