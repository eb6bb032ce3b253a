package repository

import (
	"context"
	"database/sql"
	"fmt"

	"sqltutor/internal/model"
)

type SchemaRepository interface {
	CreateSchema(ctx context.Context, s *model.Schema) error
	GetSchemaByID(ctx context.Context, schemaID string) (*model.Schema, error)
	ListSchemasByUser(ctx context.Context, userID string) ([]model.Schema, error)
}

type schemaRepo struct {
	db *sql.DB
}

func NewSchemaRepo(db *sql.DB) SchemaRepository {
	return &schemaRepo{db: db}
}

func (r *schemaRepo) CreateSchema(ctx context.Context, s *model.Schema) error {
	query := `
        INSERT INTO schemas (schema_id, user_id, schema_script, difficulty, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, s.SchemaID, s.UserID, s.SchemaScript, s.Difficulty).
		Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create schema %s: %w", s.SchemaID, err)
	}
	return nil
}

func (r *schemaRepo) GetSchemaByID(ctx context.Context, schemaID string) (*model.Schema, error) {
	var s model.Schema
	query := `SELECT schema_id, user_id, schema_script, difficulty, created_at FROM schemas WHERE schema_id=$1`
	err := r.db.QueryRowContext(ctx, query, schemaID).
		Scan(&s.SchemaID, &s.UserID, &s.SchemaScript, &s.Difficulty, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch schema %s: %w", schemaID, err)
	}
	return &s, nil
}

func (r *schemaRepo) ListSchemasByUser(ctx context.Context, userID string) ([]model.Schema, error) {
	query := `
        SELECT schema_id, user_id, schema_script, difficulty, created_at
        FROM schemas
        WHERE user_id = $1
        ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list schemas for user %s: %w", userID, err)
	}
	defer rows.Close()

	var schemas []model.Schema
	for rows.Next() {
		var s model.Schema
		if err := rows.Scan(&s.SchemaID, &s.UserID, &s.SchemaScript, &s.Difficulty, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schema row: %w", err)
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}
