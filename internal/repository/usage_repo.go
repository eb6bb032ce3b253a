package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqltutor/internal/model"

	"github.com/google/uuid"
)

type UsageRepository interface {
	GetOrCreateUsage(ctx context.Context, userID string, at time.Time) (*model.UserUsage, error)
	IncrementSchemasGenerated(ctx context.Context, userID string, at time.Time) error
	IncrementCompetitionsEntered(ctx context.Context, userID string, at time.Time) error
}

type usageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) GetOrCreateUsage(ctx context.Context, userID string, at time.Time) (*model.UserUsage, error) {
	const q = `
        INSERT INTO user_usage (id, user_id, year, month, schemas_generated, competitions_entered)
        VALUES ($1, $2, $3, $4, 0, 0)
        ON CONFLICT (user_id, year, month) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING id, user_id, year, month, schemas_generated, competitions_entered`
	var u model.UserUsage
	err := r.db.QueryRowContext(ctx, q, uuid.NewString(), userID, at.Year(), int(at.Month())).
		Scan(&u.ID, &u.UserID, &u.Year, &u.Month, &u.SchemasGenerated, &u.CompetitionsEntered)
	if err != nil {
		return nil, fmt.Errorf("get or create usage for user %s: %w", userID, err)
	}
	return &u, nil
}

func (r *usageRepo) IncrementSchemasGenerated(ctx context.Context, userID string, at time.Time) error {
	return r.increment(ctx, userID, at, "schemas_generated")
}

func (r *usageRepo) IncrementCompetitionsEntered(ctx context.Context, userID string, at time.Time) error {
	return r.increment(ctx, userID, at, "competitions_entered")
}

func (r *usageRepo) increment(ctx context.Context, userID string, at time.Time, column string) error {
	schemas, competitions := 0, 0
	if column == "schemas_generated" {
		schemas = 1
	} else {
		competitions = 1
	}
	// column comes from the two exported wrappers, never from user input.
	q := fmt.Sprintf(`
        INSERT INTO user_usage (id, user_id, year, month, schemas_generated, competitions_entered)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, year, month) DO UPDATE
        SET %[1]s = user_usage.%[1]s + 1`, column)
	_, err := r.db.ExecContext(ctx, q, uuid.NewString(), userID, at.Year(), int(at.Month()), schemas, competitions)
	if err != nil {
		return fmt.Errorf("increment %s for user %s: %w", column, userID, err)
	}
	return nil
}
