package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sqltutor/internal/model"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSessionByID(ctx context.Context, sessionID string) (*model.Session, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]model.Session, error)
	AppendQueryAttempt(ctx context.Context, sessionID string, attempt model.QueryAttempt) error
}

type sessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	if s.Queries == nil {
		s.Queries = []model.QueryAttempt{}
	}
	queriesJSON, err := json.Marshal(s.Queries)
	if err != nil {
		return fmt.Errorf("marshal session queries: %w", err)
	}
	query := `
        INSERT INTO sessions (id, user_id, schema_id, queries, difficulty, total_score, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, s.ID, s.UserID, s.SchemaID, queriesJSON, s.Difficulty, s.TotalScore).
		Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return nil
}

func (r *sessionRepo) GetSessionByID(ctx context.Context, sessionID string) (*model.Session, error) {
	query := `
        SELECT id, user_id, schema_id, queries, difficulty, total_score, created_at, completed_at
        FROM sessions WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, sessionID)
	s, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	return s, nil
}

func (r *sessionRepo) ListSessionsByUser(ctx context.Context, userID string) ([]model.Session, error) {
	query := `
        SELECT id, user_id, schema_id, queries, difficulty, total_score, created_at, completed_at
        FROM sessions
        WHERE user_id = $1
        ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// AppendQueryAttempt atomically appends one attempt to the session's query log
// and bumps total_score by the attempt's points.
func (r *sessionRepo) AppendQueryAttempt(ctx context.Context, sessionID string, attempt model.QueryAttempt) error {
	attemptJSON, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal query attempt: %w", err)
	}
	query := `
        UPDATE sessions
        SET queries = queries || $2::jsonb,
            total_score = total_score + $3
        WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, sessionID, attemptJSON, attempt.Points)
	if err != nil {
		return fmt.Errorf("append attempt to session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("append attempt: session %s not found", sessionID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var s model.Session
	var queriesJSON []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.SchemaID, &queriesJSON, &s.Difficulty, &s.TotalScore, &s.CreatedAt, &s.CompletedAt); err != nil {
		return nil, err
	}
	if len(queriesJSON) > 0 {
		if err := json.Unmarshal(queriesJSON, &s.Queries); err != nil {
			return nil, fmt.Errorf("unmarshal queries for session %s: %w", s.ID, err)
		}
	}
	return &s, nil
}
