package model

import "time"

// DashboardStats is the headline summary shown on the user's dashboard.
type DashboardStats struct {
	TotalSessions     int     `json:"total_sessions"`
	TotalCompetitions int     `json:"total_competitions"`
	AverageScore      float64 `json:"average_score"`
	TotalPoints       int     `json:"total_points"`
	CurrentStreak     int     `json:"current_streak"`
	BestRank          *int    `json:"best_rank"`
}

// DifficultyProgress counts completed sessions for one difficulty tier.
type DifficultyProgress struct {
	Difficulty string `json:"difficulty"`
	Sessions   int    `json:"sessions"`
}

// ProgressReport breaks learning activity down by difficulty.
type ProgressReport struct {
	SessionsByDifficulty []DifficultyProgress `json:"sessions_by_difficulty"`
	TotalQueries         int                  `json:"total_queries"`
	AccuracyRate         float64              `json:"accuracy_rate"`
	LearningPath         []string             `json:"learning_path"`
}

// SessionActivity is one recent practice session, trimmed for the activity feed.
type SessionActivity struct {
	SessionID  string    `json:"session_id"`
	Difficulty string    `json:"difficulty"`
	TotalScore int       `json:"total_score"`
	Queries    int       `json:"queries"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecentActivity is the combined practice and competition feed.
type RecentActivity struct {
	Sessions     []SessionActivity   `json:"sessions"`
	Competitions []CompetitionResult `json:"competitions"`
}

// CertificateRequirements are the thresholds for the master certificate.
type CertificateRequirements struct {
	MinAccuracy             float64 `json:"min_accuracy"`
	MinBasicSessions        int     `json:"min_basic_sessions"`
	MinIntermediateSessions int     `json:"min_intermediate_sessions"`
	MinAdvancedSessions     int     `json:"min_advanced_sessions"`
}

// CertificateEligibility reports master-certificate status against the thresholds.
type CertificateEligibility struct {
	Eligible             bool                    `json:"eligible"`
	PlanAllows           bool                    `json:"plan_allows"`
	Accuracy             float64                 `json:"accuracy"`
	BasicSessions        int                     `json:"basic_sessions"`
	IntermediateSessions int                     `json:"intermediate_sessions"`
	AdvancedSessions     int                     `json:"advanced_sessions"`
	Requirements         CertificateRequirements `json:"requirements"`
}
