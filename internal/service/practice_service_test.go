package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/sandbox"

	"github.com/rs/zerolog"
)

func newTestPracticeService(ai AIClient, usage *fakeUsageRepo) (*practiceService, *fakeSessionRepo, *fakeUserRepo, *sandbox.Manager) {
	sessionRepo := &fakeSessionRepo{}
	userRepo := &fakeUserRepo{users: map[string]*model.User{"u1": {ID: "u1"}}}
	sb := sandbox.NewManager()
	subSvc := NewSubscriptionService(newFakeSubRepo(), usage, model.PlanFree, "", "", zerolog.Nop())
	svc := NewPracticeService(&fakeSchemaRepo{}, sessionRepo, userRepo, subSvc, ai, sb, zerolog.Nop())
	return svc.(*practiceService), sessionRepo, userRepo, sb
}

func TestGenerateSchemaLoadsSandboxAndCountsUsage(t *testing.T) {
	usage := &fakeUsageRepo{}
	svc, _, _, sb := newTestPracticeService(&stubAI{}, usage)
	defer sb.CloseAll()

	schema, err := svc.GenerateSchema(context.Background(), "u1", "sess1", "a tiny library", model.DifficultyBasic)
	if err != nil {
		t.Fatalf("GenerateSchema returned error: %v", err)
	}
	if !strings.Contains(schema.SchemaScript, "CREATE TABLE") {
		t.Errorf("unexpected schema script: %q", schema.SchemaScript)
	}
	if usage.schemas != 1 {
		t.Errorf("expected 1 schema counted, got %d", usage.schemas)
	}

	tables, err := sb.Tables(context.Background(), "u1", "sess1")
	if err != nil {
		t.Fatalf("Tables returned error: %v", err)
	}
	if len(tables) != 1 || tables[0] != "t" {
		t.Errorf("expected table t in sandbox, got %v", tables)
	}
}

func TestGenerateSchemaQuotaExceeded(t *testing.T) {
	usage := &fakeUsageRepo{schemas: 5}
	svc, _, _, sb := newTestPracticeService(&stubAI{}, usage)
	defer sb.CloseAll()

	if _, err := svc.GenerateSchema(context.Background(), "u1", "sess1", "anything", model.DifficultyBasic); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if usage.schemas != 5 {
		t.Errorf("usage must not be counted on a rejected request, got %d", usage.schemas)
	}
}

func TestCheckAnswerCorrectRecordsAttemptAndPoints(t *testing.T) {
	svc, sessionRepo, userRepo, sb := newTestPracticeService(&stubAI{correct: true}, &fakeUsageRepo{})
	defer sb.CloseAll()

	sessionRepo.sessions = append(sessionRepo.sessions, model.Session{ID: "sess1", UserID: "u1"})
	if err := sb.ExecScript(context.Background(), "u1", "sess1", "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (1);"); err != nil {
		t.Fatalf("ExecScript returned error: %v", err)
	}

	attempt, err := svc.CheckAnswer(context.Background(), "u1", "sess1", "How many rows?", "SELECT COUNT(*) FROM t")
	if err != nil {
		t.Fatalf("CheckAnswer returned error: %v", err)
	}
	if attempt.IsCorrect == nil || !*attempt.IsCorrect {
		t.Error("expected correct attempt")
	}
	if attempt.Points != 1 {
		t.Errorf("expected 1 point, got %d", attempt.Points)
	}
	if len(sessionRepo.sessions[0].Queries) != 1 {
		t.Errorf("expected attempt in session log, got %d entries", len(sessionRepo.sessions[0].Queries))
	}
	if userRepo.users["u1"].Points != 1 {
		t.Errorf("expected 1 user point, got %d", userRepo.users["u1"].Points)
	}
}

func TestCheckAnswerBrokenQueryIsIncorrect(t *testing.T) {
	svc, sessionRepo, _, sb := newTestPracticeService(&stubAI{correct: true}, &fakeUsageRepo{})
	defer sb.CloseAll()

	sessionRepo.sessions = append(sessionRepo.sessions, model.Session{ID: "sess1", UserID: "u1"})

	attempt, err := svc.CheckAnswer(context.Background(), "u1", "sess1", "q", "SELECT * FROM missing")
	if err != nil {
		t.Fatalf("CheckAnswer returned error: %v", err)
	}
	if attempt.IsCorrect == nil || *attempt.IsCorrect {
		t.Error("expected incorrect attempt for a broken query")
	}
	if attempt.Points != 0 {
		t.Errorf("expected 0 points, got %d", attempt.Points)
	}
	if attempt.Explanation == "" {
		t.Error("expected an explanation for the failed query")
	}
}

func TestCheckAnswerUnknownSession(t *testing.T) {
	svc, _, _, sb := newTestPracticeService(&stubAI{}, &fakeUsageRepo{})
	defer sb.CloseAll()

	if _, err := svc.CheckAnswer(context.Background(), "u1", "nope", "q", "SELECT 1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPopulateTablesVerifiesRows(t *testing.T) {
	svc, _, _, sb := newTestPracticeService(&stubAI{}, &fakeUsageRepo{})
	defer sb.CloseAll()

	if err := sb.ExecScript(context.Background(), "u1", "sess1", "CREATE TABLE t (id INTEGER PRIMARY KEY);"); err != nil {
		t.Fatalf("ExecScript returned error: %v", err)
	}
	if err := svc.PopulateTables(context.Background(), "u1", "sess1", "CREATE TABLE t (id INTEGER PRIMARY KEY);"); err != nil {
		t.Fatalf("PopulateTables returned error: %v", err)
	}
	n, err := sb.RowCount(context.Background(), "u1", "sess1", "t")
	if err != nil {
		t.Fatalf("RowCount returned error: %v", err)
	}
	if n == 0 {
		t.Error("expected seeded rows in table t")
	}
}

func TestExecuteQueryLogsAttempt(t *testing.T) {
	svc, sessionRepo, _, sb := newTestPracticeService(&stubAI{}, &fakeUsageRepo{})
	defer sb.CloseAll()

	sessionRepo.sessions = append(sessionRepo.sessions, model.Session{ID: "sess1", UserID: "u1", CreatedAt: time.Now()})
	if err := sb.ExecScript(context.Background(), "u1", "sess1", "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (1);"); err != nil {
		t.Fatalf("ExecScript returned error: %v", err)
	}

	result, err := svc.ExecuteQuery(context.Background(), "u1", "sess1", "SELECT id FROM t")
	if err != nil {
		t.Fatalf("ExecuteQuery returned error: %v", err)
	}
	if !strings.Contains(result, "id") {
		t.Errorf("expected rendered result table, got %q", result)
	}
	if len(sessionRepo.sessions[0].Queries) != 1 {
		t.Errorf("expected logged query, got %d entries", len(sessionRepo.sessions[0].Queries))
	}
}
