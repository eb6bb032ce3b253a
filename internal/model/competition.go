package model

import "time"

// Competition is a time-boxed challenge against a shared schema.
type Competition struct {
	ID           string    `db:"id" json:"competition_id"`
	SchemaID     string    `db:"schema_id" json:"schema_id"`
	SchemaScript string    `db:"-" json:"schema_script,omitempty"`
	Difficulty   string    `db:"difficulty" json:"difficulty"`
	TimeLimit    int       `db:"time_limit" json:"time_limit"`
	Questions    []string  `db:"questions" json:"questions,omitempty"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
}

// Active reports whether the competition still accepts submissions at t.
func (c *Competition) Active(t time.Time) bool {
	return !t.After(c.ExpiresAt)
}

// CompetitionSubmission is a user's single scored entry in a competition.
type CompetitionSubmission struct {
	ID            string    `db:"id" json:"id"`
	CompetitionID string    `db:"competition_id" json:"competition_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Query         string    `db:"query" json:"query"`
	Score         int       `db:"score" json:"score"`
	TimeTaken     int       `db:"time_taken" json:"time_taken"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
}

// LeaderboardEntry is one ranked row of a competition leaderboard.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"time_taken"`
}

// CompetitionResult joins a submission with its competition for history views.
type CompetitionResult struct {
	CompetitionID string    `json:"competition_id"`
	SchemaID      string    `json:"schema_id"`
	Difficulty    string    `json:"difficulty"`
	TimeLimit     int       `json:"time_limit"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Score         int       `json:"score"`
	Rank          int       `json:"rank"`
	TimeTaken     int       `json:"time_taken"`
	CompletedAt   time.Time `json:"completed_at"`
}
