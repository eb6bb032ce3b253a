package model

import "time"

// Difficulty tiers used by sessions, schemas and competitions.
const (
	DifficultyBasic        = "basic"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// QueryAttempt is one entry in a session's query log. Plain executions carry
// only Query and ExecutedAt; graded attempts fill the remaining fields.
type QueryAttempt struct {
	Question    string    `json:"question,omitempty"`
	Query       string    `json:"query"`
	IsCorrect   *bool     `json:"is_correct,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	TableHead   string    `json:"table_head,omitempty"`
	Points      int       `json:"points"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Session is a record of queries a user ran against a given schema.
type Session struct {
	ID          string         `db:"id" json:"session_id"`
	UserID      string         `db:"user_id" json:"user_id"`
	SchemaID    string         `db:"schema_id" json:"schema_id"`
	Queries     []QueryAttempt `db:"queries" json:"queries"`
	Difficulty  string         `db:"difficulty" json:"difficulty"`
	TotalScore  int            `db:"total_score" json:"total_score"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}
