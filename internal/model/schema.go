package model

import "time"

// Schema is an AI-generated set of practice tables, stored as the raw DDL script.
type Schema struct {
	SchemaID     string    `db:"schema_id" json:"schema_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	SchemaScript string    `db:"schema_script" json:"schema_script"`
	Difficulty   string    `db:"difficulty" json:"difficulty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
