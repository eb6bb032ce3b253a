package dto

import "time"

// GenerateSchemaDTO is used for incoming schema generation requests
type GenerateSchemaDTO struct {
	Prompt     string `json:"prompt" validate:"required"`
	Difficulty string `json:"difficulty" validate:"required,oneof=basic intermediate advanced"`
	SessionID  string `json:"session_id" validate:"required"`
}

// SchemaResponseDTO is returned in API responses for schemas. SchemaCreated
// reports whether the DDL was verified in the caller's sandbox.
type SchemaResponseDTO struct {
	SchemaID      string    `json:"schema_id"`
	SchemaScript  string    `json:"schema_script"`
	Difficulty    string    `json:"difficulty"`
	SchemaCreated bool      `json:"schema_created,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateSessionDTO is used for incoming session creation requests
type CreateSessionDTO struct {
	SessionID    string `json:"session_id" validate:"required"`
	SchemaScript string `json:"schema_script" validate:"required"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=basic intermediate advanced"`
}

// SessionResponseDTO is returned in API responses for sessions
type SessionResponseDTO struct {
	SessionID   string            `json:"session_id"`
	SchemaID    string            `json:"schema_id"`
	Difficulty  string            `json:"difficulty"`
	TotalScore  int               `json:"total_score"`
	Queries     []QueryAttemptDTO `json:"queries"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// QueryAttemptDTO is one logged query inside a session
type QueryAttemptDTO struct {
	Question    string    `json:"question,omitempty"`
	Query       string    `json:"query"`
	IsCorrect   *bool     `json:"is_correct,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	Points      int       `json:"points"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// PopulateTablesDTO is used for incoming seed-data requests
type PopulateTablesDTO struct {
	SessionID    string `json:"session_id" validate:"required"`
	SchemaScript string `json:"schema_script" validate:"required"`
}

// GenerateQuestionsDTO is used for incoming question generation requests
type GenerateQuestionsDTO struct {
	SchemaScript string `json:"schema_script" validate:"required"`
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=basic intermediate advanced"`
}

// QuestionsResponseDTO is returned for generated question sets
type QuestionsResponseDTO struct {
	Questions []string `json:"questions"`
}

// ExecuteQueryDTO is used for incoming free-form query execution requests
type ExecuteQueryDTO struct {
	SessionID string `json:"session_id" validate:"required"`
	Query     string `json:"query" validate:"required"`
}

// ExecuteQueryResponseDTO carries the rendered result table or the engine error
type ExecuteQueryResponseDTO struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CheckAnswerDTO is used for incoming answer grading requests
type CheckAnswerDTO struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
	Query     string `json:"query" validate:"required"`
}

// CheckAnswerResponseDTO is the graded outcome of an answer
type CheckAnswerResponseDTO struct {
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
	TableHead   string `json:"table_head,omitempty"`
	Points      int    `json:"points"`
}
