package service

import (
	"context"
	"testing"
	"time"

	"sqltutor/internal/model"

	"github.com/rs/zerolog"
)

type fakeSessionRepo struct {
	sessions []model.Session
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.Session) error {
	f.sessions = append(f.sessions, *s)
	return nil
}

func (f *fakeSessionRepo) GetSessionByID(_ context.Context, id string) (*model.Session, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			return &f.sessions[i], nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) ListSessionsByUser(_ context.Context, userID string) ([]model.Session, error) {
	var out []model.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) AppendQueryAttempt(_ context.Context, id string, attempt model.QueryAttempt) error {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions[i].Queries = append(f.sessions[i].Queries, attempt)
			f.sessions[i].TotalScore += attempt.Points
			return nil
		}
	}
	return nil
}

type fakeCompRepo struct {
	results []model.CompetitionResult
}

func (f *fakeCompRepo) CreateCompetition(_ context.Context, _ *model.Competition) error { return nil }
func (f *fakeCompRepo) GetCompetitionByID(_ context.Context, _ string) (*model.Competition, error) {
	return nil, nil
}
func (f *fakeCompRepo) ListActiveCompetitions(_ context.Context) ([]model.Competition, error) {
	return nil, nil
}
func (f *fakeCompRepo) CreateSubmission(_ context.Context, _ *model.CompetitionSubmission) error {
	return nil
}
func (f *fakeCompRepo) ListResultsByUser(_ context.Context, _ string) ([]model.CompetitionResult, error) {
	return f.results, nil
}
func (f *fakeCompRepo) ListRankedSubmissions(_ context.Context, _ string, _ int) ([]model.LeaderboardEntry, error) {
	return nil, nil
}
func (f *fakeCompRepo) GetUserRank(_ context.Context, _, _ string) (int, error) { return 0, nil }

type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) UpsertUser(_ context.Context, u *model.User) error {
	if f.users == nil {
		f.users = map[string]*model.User{}
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) AddPoints(_ context.Context, id string, points int) error {
	if u, ok := f.users[id]; ok {
		u.Points += points
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }

func gradedSession(userID, difficulty string, createdAt time.Time, correct, wrong int) model.Session {
	s := model.Session{
		ID:         userID + difficulty + createdAt.String(),
		UserID:     userID,
		Difficulty: difficulty,
		CreatedAt:  createdAt,
	}
	for i := 0; i < correct; i++ {
		s.Queries = append(s.Queries, model.QueryAttempt{IsCorrect: boolPtr(true), Points: 1})
	}
	for i := 0; i < wrong; i++ {
		s.Queries = append(s.Queries, model.QueryAttempt{IsCorrect: boolPtr(false)})
	}
	return s
}

func newTestDashboard(sessions *fakeSessionRepo, comps *fakeCompRepo, users *fakeUserRepo, subs *fakeSubRepo) *dashboardService {
	subSvc := NewSubscriptionService(subs, &fakeUsageRepo{}, model.PlanFree, "", "", zerolog.Nop())
	svc := NewDashboardService(sessions, comps, users, subSvc, zerolog.Nop())
	return svc.(*dashboardService)
}

func TestStatsEmptyUser(t *testing.T) {
	svc := newTestDashboard(&fakeSessionRepo{}, &fakeCompRepo{}, &fakeUserRepo{}, newFakeSubRepo())

	stats, err := svc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.TotalSessions != 0 || stats.AverageScore != 0 || stats.CurrentStreak != 0 {
		t.Errorf("expected zeroed stats, got %+v", stats)
	}
	if stats.BestRank != nil {
		t.Errorf("expected nil best rank, got %d", *stats.BestRank)
	}
}

func TestStatsAccuracyAndBestRank(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessionRepo{sessions: []model.Session{
		gradedSession("u1", model.DifficultyBasic, now, 3, 1),
	}}
	comps := &fakeCompRepo{results: []model.CompetitionResult{
		{CompetitionID: "c1", Rank: 4},
		{CompetitionID: "c2", Rank: 2},
	}}
	users := &fakeUserRepo{users: map[string]*model.User{"u1": {ID: "u1", Points: 42}}}
	svc := newTestDashboard(sessions, comps, users, newFakeSubRepo())

	stats, err := svc.Stats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.AverageScore != 75.0 {
		t.Errorf("expected accuracy 75.0, got %v", stats.AverageScore)
	}
	if stats.BestRank == nil || *stats.BestRank != 2 {
		t.Errorf("expected best rank 2, got %v", stats.BestRank)
	}
	if stats.TotalPoints != 42 {
		t.Errorf("expected 42 points, got %d", stats.TotalPoints)
	}
}

func TestStreakCountsConsecutiveDays(t *testing.T) {
	now := time.Now()
	sessions := []model.Session{
		{UserID: "u1", CreatedAt: now},
		{UserID: "u1", CreatedAt: now.AddDate(0, 0, -1)},
		{UserID: "u1", CreatedAt: now.AddDate(0, 0, -2)},
		// Gap at -3 ends the streak.
		{UserID: "u1", CreatedAt: now.AddDate(0, 0, -5)},
	}
	if got := streak(sessions, now); got != 3 {
		t.Errorf("expected streak 3, got %d", got)
	}
}

func TestStreakSurvivesEmptyToday(t *testing.T) {
	now := time.Now()
	sessions := []model.Session{
		{UserID: "u1", CreatedAt: now.AddDate(0, 0, -1)},
		{UserID: "u1", CreatedAt: now.AddDate(0, 0, -2)},
	}
	if got := streak(sessions, now); got != 2 {
		t.Errorf("expected streak 2 when today has no session yet, got %d", got)
	}
}

func TestCertificateEligibility(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessionRepo{}
	for i := 0; i < 5; i++ {
		sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyBasic, now.AddDate(0, 0, -i), 4, 1))
	}
	for i := 0; i < 3; i++ {
		sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyIntermediate, now, 4, 1))
	}
	sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyAdvanced, now, 4, 1))

	subs := newFakeSubRepo()
	subs.subs["u1"] = &model.Subscription{
		UserID:           "u1",
		Plan:             model.PlanPro,
		Status:           "active",
		CurrentPeriodEnd: now.Add(24 * time.Hour),
	}
	svc := newTestDashboard(sessions, &fakeCompRepo{}, &fakeUserRepo{}, subs)

	elig, err := svc.CertificateEligibility(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CertificateEligibility returned error: %v", err)
	}
	if !elig.Eligible {
		t.Errorf("expected eligible, got %+v", elig)
	}
	if elig.Accuracy != 80.0 {
		t.Errorf("expected 80%% accuracy, got %v", elig.Accuracy)
	}
}

func TestCertificateBlockedOnFreePlan(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessionRepo{}
	for i := 0; i < 5; i++ {
		sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyBasic, now, 5, 0))
	}
	for i := 0; i < 3; i++ {
		sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyIntermediate, now, 5, 0))
	}
	sessions.sessions = append(sessions.sessions, gradedSession("u1", model.DifficultyAdvanced, now, 5, 0))

	svc := newTestDashboard(sessions, &fakeCompRepo{}, &fakeUserRepo{}, newFakeSubRepo())

	elig, err := svc.CertificateEligibility(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CertificateEligibility returned error: %v", err)
	}
	if elig.Eligible {
		t.Error("free plan should block the master certificate even with the stats met")
	}
	if elig.PlanAllows {
		t.Error("expected PlanAllows false on the free plan")
	}
}

func TestProgressOrdersLearningPath(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessionRepo{sessions: []model.Session{
		gradedSession("u1", model.DifficultyAdvanced, now, 1, 0),
		gradedSession("u1", model.DifficultyBasic, now, 2, 0),
	}}
	svc := newTestDashboard(sessions, &fakeCompRepo{}, &fakeUserRepo{}, newFakeSubRepo())

	report, err := svc.Progress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Progress returned error: %v", err)
	}
	if len(report.LearningPath) != 2 || report.LearningPath[0] != model.DifficultyBasic {
		t.Errorf("expected basic-first learning path, got %v", report.LearningPath)
	}
	if report.TotalQueries != 3 {
		t.Errorf("expected 3 total queries, got %d", report.TotalQueries)
	}
}
