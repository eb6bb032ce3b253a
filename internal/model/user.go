package model

import "time"

// User represents a learner account, keyed by the Google subject id.
type User struct {
	ID          string     `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	Name        string     `db:"name" json:"name"`
	PhotoURL    *string    `db:"photo_url" json:"photo_url,omitempty"`
	Points      int        `db:"points" json:"points"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastLoginAt *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}
