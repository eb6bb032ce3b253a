package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"
	"sqltutor/internal/sandbox"

	"github.com/rs/zerolog"
)

type stubCompRepo struct {
	fakeCompRepo
	comp        *model.Competition
	submissions []*model.CompetitionSubmission
	rank        int
}

func (s *stubCompRepo) GetCompetitionByID(_ context.Context, id string) (*model.Competition, error) {
	if s.comp != nil && s.comp.ID == id {
		return s.comp, nil
	}
	return nil, nil
}

func (s *stubCompRepo) CreateSubmission(_ context.Context, sub *model.CompetitionSubmission) error {
	for _, existing := range s.submissions {
		if existing.CompetitionID == sub.CompetitionID && existing.UserID == sub.UserID {
			return repository.ErrDuplicateSubmission
		}
	}
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *stubCompRepo) GetUserRank(_ context.Context, _, _ string) (int, error) {
	return s.rank, nil
}

type stubAI struct {
	correct bool
}

func (a *stubAI) GenerateSchema(_ context.Context, _, _ string) (string, error) {
	return "CREATE TABLE t (id INTEGER PRIMARY KEY);", nil
}

func (a *stubAI) GenerateSeedData(_ context.Context, _, _ string) (string, error) {
	return "INSERT INTO t (id) VALUES (1);", nil
}

func (a *stubAI) GenerateQuestions(_ context.Context, _, _, _ string, n int, _ string) ([]string, error) {
	qs := make([]string, n)
	for i := range qs {
		qs[i] = "How many rows are in t?"
	}
	return qs, nil
}

func (a *stubAI) CheckAnswer(_ context.Context, _, _, _, _ string) (bool, string, error) {
	return a.correct, "explanation", nil
}

func (a *stubAI) ExplainError(_ context.Context, _, _, _ string) (string, error) {
	return "explanation", nil
}

type fakeSchemaRepo struct {
	schemas []*model.Schema
}

func (f *fakeSchemaRepo) CreateSchema(_ context.Context, s *model.Schema) error {
	f.schemas = append(f.schemas, s)
	return nil
}

func (f *fakeSchemaRepo) GetSchemaByID(_ context.Context, id string) (*model.Schema, error) {
	for _, s := range f.schemas {
		if s.SchemaID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSchemaRepo) ListSchemasByUser(_ context.Context, _ string) ([]model.Schema, error) {
	return nil, nil
}

func activeCompetition(id string, now time.Time) *model.Competition {
	return &model.Competition{
		ID:           id,
		SchemaID:     "s1",
		SchemaScript: "CREATE TABLE t (id INTEGER PRIMARY KEY);\nINSERT INTO t (id) VALUES (1);",
		Difficulty:   model.DifficultyBasic,
		TimeLimit:    300,
		StartedAt:    now.Add(-time.Minute),
		ExpiresAt:    now.Add(4 * time.Minute),
	}
}

func newTestCompetitionService(compRepo *stubCompRepo, ai AIClient) (*competitionService, *sandbox.Manager) {
	sb := sandbox.NewManager()
	subSvc := NewSubscriptionService(newFakeSubRepo(), &fakeUsageRepo{}, model.PlanFree, "", "", zerolog.Nop())
	svc := NewCompetitionService(compRepo, &fakeSchemaRepo{}, &fakeUserRepo{}, subSvc, ai, sb, nil, 120, 5, 10, zerolog.Nop())
	return svc.(*competitionService), sb
}

func TestSubmitCorrectAnswerScores(t *testing.T) {
	now := time.Now()
	compRepo := &stubCompRepo{comp: activeCompetition("c1", now), rank: 1}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{correct: true})
	defer sb.CloseAll()

	sub, rank, err := svc.Submit(context.Background(), "u1", "c1", "How many rows?", "SELECT COUNT(*) FROM t")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.Score != correctAnswerScore {
		t.Errorf("expected score %d, got %d", correctAnswerScore, sub.Score)
	}
	if rank != 1 {
		t.Errorf("expected rank 1, got %d", rank)
	}
	if sub.TimeTaken < 50 || sub.TimeTaken > 70 {
		t.Errorf("expected time_taken around 60s, got %d", sub.TimeTaken)
	}
}

func TestSubmitBrokenQueryScoresZero(t *testing.T) {
	now := time.Now()
	compRepo := &stubCompRepo{comp: activeCompetition("c1", now)}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{correct: true})
	defer sb.CloseAll()

	sub, _, err := svc.Submit(context.Background(), "u1", "c1", "How many rows?", "SELECT * FROM missing_table")
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if sub.Score != 0 {
		t.Errorf("expected score 0 for a query that fails to execute, got %d", sub.Score)
	}
}

func TestSubmitAfterExpiryRejected(t *testing.T) {
	now := time.Now()
	comp := activeCompetition("c1", now)
	comp.ExpiresAt = now.Add(-time.Second)
	compRepo := &stubCompRepo{comp: comp}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{correct: true})
	defer sb.CloseAll()

	if _, _, err := svc.Submit(context.Background(), "u1", "c1", "q", "SELECT 1"); !errors.Is(err, ErrCompetitionExpired) {
		t.Fatalf("expected ErrCompetitionExpired, got %v", err)
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	now := time.Now()
	compRepo := &stubCompRepo{comp: activeCompetition("c1", now)}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{correct: true})
	defer sb.CloseAll()

	if _, _, err := svc.Submit(context.Background(), "u1", "c1", "q", "SELECT COUNT(*) FROM t"); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if _, _, err := svc.Submit(context.Background(), "u1", "c1", "q", "SELECT COUNT(*) FROM t"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitUnknownCompetition(t *testing.T) {
	compRepo := &stubCompRepo{}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{})
	defer sb.CloseAll()

	if _, _, err := svc.Submit(context.Background(), "u1", "nope", "q", "SELECT 1"); !errors.Is(err, ErrCompetitionNotFound) {
		t.Fatalf("expected ErrCompetitionNotFound, got %v", err)
	}
}

func TestCompositeScoreOrdersCorrectly(t *testing.T) {
	// Higher score always beats lower score; equal scores are broken by
	// lower time_taken.
	fast := encodeLeaderboardScore(100, 30)
	slow := encodeLeaderboardScore(100, 250)
	lowScore := encodeLeaderboardScore(0, 5)

	if fast <= slow {
		t.Error("faster submission should rank above slower one at equal score")
	}
	if slow <= lowScore {
		t.Error("higher score should rank above lower score regardless of time")
	}
}

func TestCompositeScoreRoundTrips(t *testing.T) {
	cases := []struct {
		score     int
		timeTaken int
	}{
		{100, 30},
		{100, 0},
		{0, 5},
		{0, 0},
		{100, maxTimeLimitSec},
	}
	for _, c := range cases {
		score, timeTaken := decodeLeaderboardScore(encodeLeaderboardScore(c.score, c.timeTaken))
		if score != c.score || timeTaken != c.timeTaken {
			t.Errorf("score %d time %d decoded to score %d time %d", c.score, c.timeTaken, score, timeTaken)
		}
	}
}

func TestStartDefaultsTimeLimit(t *testing.T) {
	compRepo := &stubCompRepo{}
	svc, sb := newTestCompetitionService(compRepo, &stubAI{correct: true})
	defer sb.CloseAll()

	comp, err := svc.Start(context.Background(), "u1", model.DifficultyBasic, 0)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if comp.TimeLimit != 120 {
		t.Errorf("expected injected default time limit 120, got %d", comp.TimeLimit)
	}
}
