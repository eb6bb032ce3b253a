package service

import (
	"context"
	"math"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"

	"github.com/rs/zerolog"
)

const (
	certMinAccuracy             = 70.0
	certMinBasicSessions        = 5
	certMinIntermediateSessions = 3
	certMinAdvancedSessions     = 1

	recentActivityLimit = 5
)

type DashboardService interface {
	Stats(ctx context.Context, userID string) (*model.DashboardStats, error)
	Progress(ctx context.Context, userID string) (*model.ProgressReport, error)
	RecentActivity(ctx context.Context, userID string) (*model.RecentActivity, error)
	CertificateEligibility(ctx context.Context, userID string) (*model.CertificateEligibility, error)
}

type dashboardService struct {
	sessionRepo repository.SessionRepository
	compRepo    repository.CompetitionRepository
	userRepo    repository.UserRepository
	subSvc      SubscriptionService
	now         func() time.Time
	logger      zerolog.Logger
}

func NewDashboardService(sessionRepo repository.SessionRepository, compRepo repository.CompetitionRepository, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		sessionRepo: sessionRepo,
		compRepo:    compRepo,
		userRepo:    userRepo,
		subSvc:      subSvc,
		now:         time.Now,
		logger:      logger.With().Str("service", "DashboardService").Logger(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// accuracy is correct graded answers over all graded answers, as a percentage.
// Ungraded attempts (plain executes) do not count either way.
func accuracy(sessions []model.Session) (float64, int, int) {
	graded, correct := 0, 0
	for _, s := range sessions {
		for _, q := range s.Queries {
			if q.IsCorrect == nil {
				continue
			}
			graded++
			if *q.IsCorrect {
				correct++
			}
		}
	}
	if graded == 0 {
		return 0, 0, 0
	}
	return round2(float64(correct) / float64(graded) * 100), correct, graded
}

// streak counts consecutive days with at least one session, walking back from
// today. A day with no sessions ends the streak; today itself may be empty
// without breaking yesterday's run.
func streak(sessions []model.Session, now time.Time) int {
	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		days[s.CreatedAt.Local().Format("2006-01-02")] = true
	}

	count := 0
	day := now
	if !days[day.Format("2006-01-02")] {
		day = day.AddDate(0, 0, -1)
	}
	for days[day.Format("2006-01-02")] {
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

func (s *dashboardService) Stats(ctx context.Context, userID string) (*model.DashboardStats, error) {
	sessions, err := s.sessionRepo.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	results, err := s.compRepo.ListResultsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &model.DashboardStats{
		TotalSessions:     len(sessions),
		TotalCompetitions: len(results),
		CurrentStreak:     streak(sessions, s.now()),
	}
	stats.AverageScore, _, _ = accuracy(sessions)

	for _, r := range results {
		if r.Rank > 0 && (stats.BestRank == nil || r.Rank < *stats.BestRank) {
			rank := r.Rank
			stats.BestRank = &rank
		}
	}

	if u, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for dashboard stats")
	} else if u != nil {
		stats.TotalPoints = u.Points
	}
	return stats, nil
}

func (s *dashboardService) Progress(ctx context.Context, userID string) (*model.ProgressReport, error) {
	sessions, err := s.sessionRepo.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDifficulty := map[string]int{}
	totalQueries := 0
	for _, sess := range sessions {
		byDifficulty[sess.Difficulty]++
		totalQueries += len(sess.Queries)
	}

	report := &model.ProgressReport{TotalQueries: totalQueries}
	report.AccuracyRate, _, _ = accuracy(sessions)
	for _, tier := range []string{model.DifficultyBasic, model.DifficultyIntermediate, model.DifficultyAdvanced} {
		if n := byDifficulty[tier]; n > 0 {
			report.SessionsByDifficulty = append(report.SessionsByDifficulty, model.DifficultyProgress{Difficulty: tier, Sessions: n})
			report.LearningPath = append(report.LearningPath, tier)
		}
	}
	return report, nil
}

func (s *dashboardService) RecentActivity(ctx context.Context, userID string) (*model.RecentActivity, error) {
	sessions, err := s.sessionRepo.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	results, err := s.compRepo.ListResultsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	activity := &model.RecentActivity{
		Sessions:     []model.SessionActivity{},
		Competitions: []model.CompetitionResult{},
	}
	for i, sess := range sessions {
		if i == recentActivityLimit {
			break
		}
		activity.Sessions = append(activity.Sessions, model.SessionActivity{
			SessionID:  sess.ID,
			Difficulty: sess.Difficulty,
			TotalScore: sess.TotalScore,
			Queries:    len(sess.Queries),
			CreatedAt:  sess.CreatedAt,
		})
	}
	if len(results) > recentActivityLimit {
		results = results[:recentActivityLimit]
	}
	activity.Competitions = append(activity.Competitions, results...)
	return activity, nil
}

func (s *dashboardService) CertificateEligibility(ctx context.Context, userID string) (*model.CertificateEligibility, error) {
	sessions, err := s.sessionRepo.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	elig := &model.CertificateEligibility{
		Requirements: model.CertificateRequirements{
			MinAccuracy:             certMinAccuracy,
			MinBasicSessions:        certMinBasicSessions,
			MinIntermediateSessions: certMinIntermediateSessions,
			MinAdvancedSessions:     certMinAdvancedSessions,
		},
	}
	elig.Accuracy, _, _ = accuracy(sessions)
	for _, sess := range sessions {
		switch sess.Difficulty {
		case model.DifficultyBasic:
			elig.BasicSessions++
		case model.DifficultyIntermediate:
			elig.IntermediateSessions++
		case model.DifficultyAdvanced:
			elig.AdvancedSessions++
		}
	}

	check, err := s.subSvc.CanUseFeature(ctx, userID, FeatureMasterCertificate)
	if err != nil {
		return nil, err
	}
	elig.PlanAllows = check.Allowed

	elig.Eligible = elig.PlanAllows &&
		elig.Accuracy >= certMinAccuracy &&
		elig.BasicSessions >= certMinBasicSessions &&
		elig.IntermediateSessions >= certMinIntermediateSessions &&
		elig.AdvancedSessions >= certMinAdvancedSessions
	return elig, nil
}
