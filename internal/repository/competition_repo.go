package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sqltutor/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateSubmission is returned when a user submits twice to the same competition.
var ErrDuplicateSubmission = errors.New("submission already exists for this competition")

type CompetitionRepository interface {
	CreateCompetition(ctx context.Context, c *model.Competition) error
	GetCompetitionByID(ctx context.Context, id string) (*model.Competition, error)
	ListActiveCompetitions(ctx context.Context) ([]model.Competition, error)
	CreateSubmission(ctx context.Context, sub *model.CompetitionSubmission) error
	ListResultsByUser(ctx context.Context, userID string) ([]model.CompetitionResult, error)
	ListRankedSubmissions(ctx context.Context, competitionID string, limit int) ([]model.LeaderboardEntry, error)
	GetUserRank(ctx context.Context, competitionID, userID string) (int, error)
}

type competitionRepo struct {
	db *sql.DB
}

func NewCompetitionRepo(db *sql.DB) CompetitionRepository {
	return &competitionRepo{db: db}
}

func (r *competitionRepo) CreateCompetition(ctx context.Context, c *model.Competition) error {
	questionsJSON, err := json.Marshal(c.Questions)
	if err != nil {
		return fmt.Errorf("marshal competition questions: %w", err)
	}
	query := `
        INSERT INTO competitions (id, schema_id, difficulty, time_limit, questions, started_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, query, c.ID, c.SchemaID, c.Difficulty, c.TimeLimit, questionsJSON, c.StartedAt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create competition %s: %w", c.ID, err)
	}
	return nil
}

func (r *competitionRepo) GetCompetitionByID(ctx context.Context, id string) (*model.Competition, error) {
	query := `
        SELECT c.id, c.schema_id, s.schema_script, c.difficulty, c.time_limit, c.questions, c.started_at, c.expires_at
        FROM competitions c
        JOIN schemas s ON s.schema_id = c.schema_id
        WHERE c.id = $1`
	var c model.Competition
	var questionsJSON []byte
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.SchemaID, &c.SchemaScript, &c.Difficulty, &c.TimeLimit, &questionsJSON, &c.StartedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch competition %s: %w", id, err)
	}
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &c.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions for competition %s: %w", id, err)
		}
	}
	return &c, nil
}

func (r *competitionRepo) ListActiveCompetitions(ctx context.Context) ([]model.Competition, error) {
	query := `
        SELECT id, schema_id, difficulty, time_limit, started_at, expires_at
        FROM competitions
        WHERE expires_at > NOW()
        ORDER BY expires_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active competitions: %w", err)
	}
	defer rows.Close()

	var comps []model.Competition
	for rows.Next() {
		var c model.Competition
		if err := rows.Scan(&c.ID, &c.SchemaID, &c.Difficulty, &c.TimeLimit, &c.StartedAt, &c.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan competition row: %w", err)
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

func (r *competitionRepo) CreateSubmission(ctx context.Context, sub *model.CompetitionSubmission) error {
	query := `
        INSERT INTO competition_submissions (id, competition_id, user_id, query, score, time_taken, submitted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.CompetitionID, sub.UserID, sub.Query, sub.Score, sub.TimeTaken, sub.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("create submission for competition %s: %w", sub.CompetitionID, err)
	}
	return nil
}

func (r *competitionRepo) ListResultsByUser(ctx context.Context, userID string) ([]model.CompetitionResult, error) {
	// Rank is recomputed over the full submission set so history stays
	// consistent with the final leaderboard ordering.
	query := `
        SELECT c.id, c.schema_id, c.difficulty, c.time_limit, c.started_at, c.expires_at,
               ranked.score, ranked.rank, ranked.time_taken, ranked.submitted_at
        FROM (
            SELECT competition_id, user_id, query, score, time_taken, submitted_at,
                   RANK() OVER (
                       PARTITION BY competition_id
                       ORDER BY score DESC, time_taken ASC, submitted_at ASC
                   ) AS rank
            FROM competition_submissions
        ) ranked
        JOIN competitions c ON c.id = ranked.competition_id
        WHERE ranked.user_id = $1
        ORDER BY ranked.submitted_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list competition results for user %s: %w", userID, err)
	}
	defer rows.Close()

	var results []model.CompetitionResult
	for rows.Next() {
		var res model.CompetitionResult
		if err := rows.Scan(&res.CompetitionID, &res.SchemaID, &res.Difficulty, &res.TimeLimit,
			&res.StartedAt, &res.ExpiresAt, &res.Score, &res.Rank, &res.TimeTaken, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan competition result row: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *competitionRepo) ListRankedSubmissions(ctx context.Context, competitionID string, limit int) ([]model.LeaderboardEntry, error) {
	query := `
        SELECT cs.user_id, u.name, cs.score, cs.time_taken
        FROM competition_submissions cs
        JOIN users u ON u.id = cs.user_id
        WHERE cs.competition_id = $1
        ORDER BY cs.score DESC, cs.time_taken ASC, cs.submitted_at ASC
        LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, competitionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions for competition %s: %w", competitionID, err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Score, &e.TimeTaken); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *competitionRepo) GetUserRank(ctx context.Context, competitionID, userID string) (int, error) {
	query := `
        SELECT rank FROM (
            SELECT user_id,
                   RANK() OVER (ORDER BY score DESC, time_taken ASC, submitted_at ASC) AS rank
            FROM competition_submissions
            WHERE competition_id = $1
        ) ranked
        WHERE user_id = $2`
	var rank int
	err := r.db.QueryRowContext(ctx, query, competitionID, userID).Scan(&rank)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fetch rank for user %s in competition %s: %w", userID, competitionID, err)
	}
	return rank, nil
}
