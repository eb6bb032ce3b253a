package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"
	"sqltutor/internal/sandbox"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrQuotaExceeded    = errors.New("monthly quota exceeded")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSchemaNotCreated = errors.New("schema produced no tables")
	ErrEmptyTables      = errors.New("not all tables were populated")
)

const (
	executeRowLimit = 20
	gradeRowLimit   = 10
	questionCount   = 5
)

type PracticeService interface {
	GenerateSchema(ctx context.Context, userID, sessionID, prompt, difficulty string) (*model.Schema, error)
	CreateSession(ctx context.Context, userID, sessionID, schemaScript, difficulty string) (*model.Session, error)
	PopulateTables(ctx context.Context, userID, sessionID, schemaDDL string) error
	GenerateQuestions(ctx context.Context, userID, schemaDDL, topic, difficulty string) ([]string, error)
	ExecuteQuery(ctx context.Context, userID, sessionID, query string) (string, error)
	CheckAnswer(ctx context.Context, userID, sessionID, question, sqlQuery string) (*model.QueryAttempt, error)
	ListSessions(ctx context.Context, userID string) ([]model.Session, error)
	ListSchemas(ctx context.Context, userID string) ([]model.Schema, error)
}

type practiceService struct {
	schemaRepo  repository.SchemaRepository
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	subSvc      SubscriptionService
	ai          AIClient
	sandbox     *sandbox.Manager
	logger      zerolog.Logger
}

func NewPracticeService(
	schemaRepo repository.SchemaRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	subSvc SubscriptionService,
	ai AIClient,
	sb *sandbox.Manager,
	logger zerolog.Logger,
) PracticeService {
	return &practiceService{
		schemaRepo:  schemaRepo,
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		subSvc:      subSvc,
		ai:          ai,
		sandbox:     sb,
		logger:      logger.With().Str("service", "PracticeService").Logger(),
	}
}

func (s *practiceService) modelFor(ctx context.Context, userID string) string {
	plan, err := s.subSvc.GetPlan(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Falling back to free-tier model")
		return PlanConfigFor(model.PlanFree).Features.AIModelTier
	}
	return plan.Features.AIModelTier
}

// GenerateSchema asks the LLM for a DDL script, loads it into the caller's
// sandbox and persists the schema. Usage is counted only after everything
// succeeded.
func (s *practiceService) GenerateSchema(ctx context.Context, userID, sessionID, prompt, difficulty string) (*model.Schema, error) {
	check, err := s.subSvc.CanUseFeature(ctx, userID, FeatureGenerateSchema)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Reason)
	}

	ddl, err := s.ai.GenerateSchema(ctx, prompt, s.modelFor(ctx, userID))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Schema generation failed")
		return nil, fmt.Errorf("generate schema: %w", err)
	}

	if err := s.sandbox.ExecScript(ctx, userID, sessionID, ddl); err != nil {
		return nil, fmt.Errorf("load schema into sandbox: %w", err)
	}
	tables, err := s.sandbox.Tables(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, ErrSchemaNotCreated
	}

	schema := &model.Schema{
		SchemaID:     uuid.NewString(),
		UserID:       userID,
		SchemaScript: ddl,
		Difficulty:   difficulty,
	}
	if err := s.schemaRepo.CreateSchema(ctx, schema); err != nil {
		return nil, err
	}
	if err := s.subSvc.IncrementUsage(ctx, userID, FeatureGenerateSchema); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to count schema generation")
	}
	return schema, nil
}

// CreateSession persists a schema script the client already holds and opens a
// fresh session around it.
func (s *practiceService) CreateSession(ctx context.Context, userID, sessionID, schemaScript, difficulty string) (*model.Session, error) {
	schema := &model.Schema{
		SchemaID:     uuid.NewString(),
		UserID:       userID,
		SchemaScript: schemaScript,
		Difficulty:   difficulty,
	}
	if err := s.schemaRepo.CreateSchema(ctx, schema); err != nil {
		return nil, err
	}
	session := &model.Session{
		ID:         sessionID,
		UserID:     userID,
		SchemaID:   schema.SchemaID,
		Difficulty: difficulty,
		Queries:    []model.QueryAttempt{},
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// PopulateTables asks the LLM for seed INSERTs and verifies no table was left
// empty afterwards.
func (s *practiceService) PopulateTables(ctx context.Context, userID, sessionID, schemaDDL string) error {
	inserts, err := s.ai.GenerateSeedData(ctx, schemaDDL, s.modelFor(ctx, userID))
	if err != nil {
		return fmt.Errorf("generate seed data: %w", err)
	}
	if err := s.sandbox.ExecScript(ctx, userID, sessionID, inserts); err != nil {
		return fmt.Errorf("seed sandbox tables: %w", err)
	}

	tables, err := s.sandbox.Tables(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	for _, table := range tables {
		n, err := s.sandbox.RowCount(ctx, userID, sessionID, table)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyTables, table)
		}
	}
	return nil
}

func (s *practiceService) GenerateQuestions(ctx context.Context, userID, schemaDDL, topic, difficulty string) ([]string, error) {
	questions, err := s.ai.GenerateQuestions(ctx, schemaDDL, difficulty, topic, questionCount, s.modelFor(ctx, userID))
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	return questions, nil
}

// ExecuteQuery runs a free-form query in the sandbox and records it in the
// session log. The engine error is returned unwrapped for the handler to show
// to the learner.
func (s *practiceService) ExecuteQuery(ctx context.Context, userID, sessionID, query string) (string, error) {
	result, err := s.sandbox.Query(ctx, userID, sessionID, query, executeRowLimit)
	if err != nil {
		return "", err
	}
	attempt := model.QueryAttempt{Query: query, ExecutedAt: time.Now().UTC()}
	if err := s.sessionRepo.AppendQueryAttempt(ctx, sessionID, attempt); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record executed query")
	}
	return result, nil
}

// CheckAnswer executes the learner's SQL and has the LLM grade it against the
// question. Queries that fail to execute are never correct; the LLM explains
// the engine error instead. The graded attempt always lands in the session
// log before the response is returned.
func (s *practiceService) CheckAnswer(ctx context.Context, userID, sessionID, question, sqlQuery string) (*model.QueryAttempt, error) {
	session, err := s.sessionRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrSessionNotFound
	}

	llmModel := s.modelFor(ctx, userID)
	attempt := model.QueryAttempt{
		Question:   question,
		Query:      sqlQuery,
		ExecutedAt: time.Now().UTC(),
	}

	tableHead, execErr := s.sandbox.Query(ctx, userID, sessionID, sqlQuery, gradeRowLimit)
	if execErr != nil {
		explanation, err := s.ai.ExplainError(ctx, execErr.Error(), sqlQuery, llmModel)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to generate error explanation")
			explanation = "The query could not be executed: " + execErr.Error()
		}
		incorrect := false
		attempt.IsCorrect = &incorrect
		attempt.Explanation = explanation
	} else {
		correct, explanation, err := s.ai.CheckAnswer(ctx, question, sqlQuery, tableHead, llmModel)
		if err != nil {
			return nil, fmt.Errorf("grade answer: %w", err)
		}
		attempt.IsCorrect = &correct
		attempt.Explanation = explanation
		attempt.TableHead = tableHead
		if correct {
			attempt.Points = 1
		}
	}

	if err := s.sessionRepo.AppendQueryAttempt(ctx, sessionID, attempt); err != nil {
		return nil, err
	}
	if attempt.Points > 0 {
		if err := s.userRepo.AddPoints(ctx, userID, attempt.Points); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to credit points")
		}
	}
	return &attempt, nil
}

func (s *practiceService) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return s.sessionRepo.ListSessionsByUser(ctx, userID)
}

func (s *practiceService) ListSchemas(ctx context.Context, userID string) ([]model.Schema, error) {
	return s.schemaRepo.ListSchemasByUser(ctx, userID)
}
