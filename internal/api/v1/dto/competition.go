package dto

import "time"

// CompetitionStartDTO is used for incoming competition start requests
type CompetitionStartDTO struct {
	Difficulty string `json:"difficulty" validate:"required,oneof=basic intermediate advanced"`
	TimeLimit  int    `json:"time_limit" validate:"omitempty,min=60,max=3600"`
}

// CompetitionResponseDTO is returned when a competition is started or listed
type CompetitionResponseDTO struct {
	CompetitionID string    `json:"competition_id"`
	SchemaScript  string    `json:"schema_script,omitempty"`
	Difficulty    string    `json:"difficulty"`
	TimeLimit     int       `json:"time_limit"`
	Questions     []string  `json:"questions,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// CompetitionSubmitDTO is used for incoming competition submissions
type CompetitionSubmitDTO struct {
	CompetitionID string `json:"competition_id" validate:"required"`
	Question      string `json:"question" validate:"required"`
	Query         string `json:"query" validate:"required"`
}

// CompetitionSubmitResponseDTO is the scored outcome of a submission
type CompetitionSubmitResponseDTO struct {
	Score       int       `json:"score"`
	TimeTaken   int       `json:"time_taken"`
	Rank        int       `json:"rank"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// CompetitionHistoryEntryDTO is one past competition result
type CompetitionHistoryEntryDTO struct {
	CompetitionID string    `json:"competition_id"`
	Difficulty    string    `json:"difficulty"`
	Score         int       `json:"score"`
	Rank          int       `json:"rank"`
	TimeTaken     int       `json:"time_taken"`
	CompletedAt   time.Time `json:"completed_at"`
}

// LeaderboardEntryDTO is one ranked leaderboard row
type LeaderboardEntryDTO struct {
	Rank      int    `json:"rank"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Score     int    `json:"score"`
	TimeTaken int    `json:"time_taken"`
}
