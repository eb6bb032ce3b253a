package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sqltutor/internal/model"
)

type UserRepository interface {
	UpsertUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	AddPoints(ctx context.Context, userID string, points int) error
}

type userRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

// UpsertUser creates the user on first login and refreshes profile fields and
// last_login_at on every subsequent one.
func (r *userRepo) UpsertUser(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (id, email, name, photo_url, points, created_at, last_login_at)
        VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
        ON CONFLICT (id) DO UPDATE
        SET email = EXCLUDED.email,
            name = EXCLUDED.name,
            photo_url = COALESCE(EXCLUDED.photo_url, users.photo_url),
            last_login_at = NOW()
        RETURNING id, email, name, photo_url, points, created_at, last_login_at`
	err := r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.Name, u.PhotoURL).
		Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.Points, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	query := `SELECT id, email, name, photo_url, points, created_at, last_login_at FROM users WHERE id=$1`
	row := r.db.QueryRowContext(ctx, query, id)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PhotoURL, &u.Points, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) AddPoints(ctx context.Context, userID string, points int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET points = points + $2 WHERE id = $1`, userID, points)
	if err != nil {
		return fmt.Errorf("add points for user %s: %w", userID, err)
	}
	return nil
}
