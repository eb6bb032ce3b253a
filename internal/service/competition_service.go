package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"
	"sqltutor/internal/sandbox"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrCompetitionExpired  = errors.New("competition has expired")
	ErrAlreadySubmitted    = errors.New("already submitted to this competition")
)

const (
	minTimeLimitSec     = 60
	maxTimeLimitSec     = 3600
	defaultTimeLimitSec = 300

	correctAnswerScore = 100

	// Composite sorted-set score: score dominates, time_taken breaks ties.
	// time_taken is bounded by maxTimeLimitSec so the factor never overlaps
	// two score levels.
	leaderboardScoreFactor = 1e7
)

type CompetitionService interface {
	Start(ctx context.Context, userID, difficulty string, timeLimitSec int) (*model.Competition, error)
	Submit(ctx context.Context, userID, competitionID, question, query string) (*model.CompetitionSubmission, int, error)
	History(ctx context.Context, userID string) ([]model.CompetitionResult, error)
	Leaderboard(ctx context.Context, competitionID string) ([]model.LeaderboardEntry, error)
	ListActive(ctx context.Context) ([]model.Competition, error)
}

type competitionService struct {
	compRepo         repository.CompetitionRepository
	schemaRepo       repository.SchemaRepository
	userRepo         repository.UserRepository
	subSvc           SubscriptionService
	ai               AIClient
	sandbox          *sandbox.Manager
	rdb              *redis.Client
	defaultTimeLimit int
	questionCount    int
	leaderboardSize  int
	now              func() time.Time
	logger           zerolog.Logger
}

func NewCompetitionService(
	compRepo repository.CompetitionRepository,
	schemaRepo repository.SchemaRepository,
	userRepo repository.UserRepository,
	subSvc SubscriptionService,
	ai AIClient,
	sb *sandbox.Manager,
	rdb *redis.Client,
	defaultTimeLimit, questionCount, leaderboardSize int,
	logger zerolog.Logger,
) CompetitionService {
	if defaultTimeLimit < minTimeLimitSec || defaultTimeLimit > maxTimeLimitSec {
		defaultTimeLimit = defaultTimeLimitSec
	}
	return &competitionService{
		compRepo:         compRepo,
		schemaRepo:       schemaRepo,
		userRepo:         userRepo,
		subSvc:           subSvc,
		ai:               ai,
		sandbox:          sb,
		rdb:              rdb,
		defaultTimeLimit: defaultTimeLimit,
		questionCount:    questionCount,
		leaderboardSize:  leaderboardSize,
		now:              time.Now,
		logger:           logger.With().Str("service", "CompetitionService").Logger(),
	}
}

func leaderboardKey(competitionID string) string {
	return "competition:" + competitionID + ":leaderboard"
}

// encodeLeaderboardScore packs score and time_taken into one sorted-set score.
// time_taken is bounded by maxTimeLimitSec, far below the factor, so the two
// never overlap.
func encodeLeaderboardScore(score, timeTaken int) float64 {
	return float64(score)*leaderboardScoreFactor - float64(timeTaken)
}

// decodeLeaderboardScore inverts encodeLeaderboardScore. The composite sits
// just below a multiple of the factor, so the score is recovered by rounding
// up, never by truncating toward zero.
func decodeLeaderboardScore(composite float64) (score, timeTaken int) {
	score = int(math.Ceil(composite / leaderboardScoreFactor))
	timeTaken = int(float64(score)*leaderboardScoreFactor - composite)
	return score, timeTaken
}

// Start creates a competition: LLM-generated schema and seed data, loaded into
// the caller's sandbox, plus a question set. The seed INSERTs are stored with
// the DDL so every later participant can rebuild the exact same database.
func (s *competitionService) Start(ctx context.Context, userID, difficulty string, timeLimitSec int) (*model.Competition, error) {
	check, err := s.subSvc.CanUseFeature(ctx, userID, FeatureCompetition)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Reason)
	}

	if timeLimitSec == 0 {
		timeLimitSec = s.defaultTimeLimit
	}
	if timeLimitSec < minTimeLimitSec {
		timeLimitSec = minTimeLimitSec
	}
	if timeLimitSec > maxTimeLimitSec {
		timeLimitSec = maxTimeLimitSec
	}

	llmModel := s.modelFor(ctx, userID)
	prompt := fmt.Sprintf("A realistic dataset for a timed SQL competition at %s difficulty", difficulty)
	ddl, err := s.ai.GenerateSchema(ctx, prompt, llmModel)
	if err != nil {
		return nil, fmt.Errorf("generate competition schema: %w", err)
	}
	inserts, err := s.ai.GenerateSeedData(ctx, ddl, llmModel)
	if err != nil {
		return nil, fmt.Errorf("generate competition seed data: %w", err)
	}
	script := ddl + "\n\n" + inserts

	competitionID := uuid.NewString()
	if err := s.sandbox.ExecScript(ctx, userID, competitionID, script); err != nil {
		return nil, fmt.Errorf("load competition schema into sandbox: %w", err)
	}

	questions, err := s.ai.GenerateQuestions(ctx, ddl, difficulty, "All", s.questionCount, llmModel)
	if err != nil {
		return nil, fmt.Errorf("generate competition questions: %w", err)
	}

	schema := &model.Schema{
		SchemaID:     uuid.NewString(),
		UserID:       userID,
		SchemaScript: script,
		Difficulty:   difficulty,
	}
	if err := s.schemaRepo.CreateSchema(ctx, schema); err != nil {
		return nil, err
	}

	startedAt := s.now().UTC()
	comp := &model.Competition{
		ID:           competitionID,
		SchemaID:     schema.SchemaID,
		SchemaScript: script,
		Difficulty:   difficulty,
		TimeLimit:    timeLimitSec,
		Questions:    questions,
		StartedAt:    startedAt,
		ExpiresAt:    startedAt.Add(time.Duration(timeLimitSec) * time.Second),
	}
	if err := s.compRepo.CreateCompetition(ctx, comp); err != nil {
		return nil, err
	}
	if err := s.subSvc.IncrementUsage(ctx, userID, FeatureCompetition); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to count competition entry")
	}
	return comp, nil
}

func (s *competitionService) modelFor(ctx context.Context, userID string) string {
	plan, err := s.subSvc.GetPlan(ctx, userID)
	if err != nil {
		return PlanConfigFor(model.PlanFree).Features.AIModelTier
	}
	return plan.Features.AIModelTier
}

// ensureSandbox rebuilds the competition database for participants who joined
// after the creator.
func (s *competitionService) ensureSandbox(ctx context.Context, userID string, comp *model.Competition) error {
	tables, err := s.sandbox.Tables(ctx, userID, comp.ID)
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		return nil
	}
	return s.sandbox.ExecScript(ctx, userID, comp.ID, comp.SchemaScript)
}

// Submit grades a single answer against the competition database. Expiry is
// decided here, against the server clock, so submissions racing the deadline
// are all measured by the same rule. A second submission from the same user
// hits the UNIQUE constraint and is rejected.
func (s *competitionService) Submit(ctx context.Context, userID, competitionID, question, query string) (*model.CompetitionSubmission, int, error) {
	comp, err := s.compRepo.GetCompetitionByID(ctx, competitionID)
	if err != nil {
		return nil, 0, err
	}
	if comp == nil {
		return nil, 0, ErrCompetitionNotFound
	}

	submittedAt := s.now().UTC()
	if !comp.Active(submittedAt) {
		return nil, 0, ErrCompetitionExpired
	}

	if err := s.ensureSandbox(ctx, userID, comp); err != nil {
		return nil, 0, fmt.Errorf("prepare competition sandbox: %w", err)
	}

	score := 0
	tableHead, execErr := s.sandbox.Query(ctx, userID, competitionID, query, gradeRowLimit)
	if execErr == nil {
		correct, _, err := s.ai.CheckAnswer(ctx, question, query, tableHead, s.modelFor(ctx, userID))
		if err != nil {
			return nil, 0, fmt.Errorf("grade competition answer: %w", err)
		}
		if correct {
			score = correctAnswerScore
		}
	}

	sub := &model.CompetitionSubmission{
		ID:            uuid.NewString(),
		CompetitionID: competitionID,
		UserID:        userID,
		Query:         query,
		Score:         score,
		TimeTaken:     int(submittedAt.Sub(comp.StartedAt).Seconds()),
		SubmittedAt:   submittedAt,
	}
	if err := s.compRepo.CreateSubmission(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return nil, 0, ErrAlreadySubmitted
		}
		return nil, 0, err
	}

	s.publishScore(ctx, comp, sub)

	rank, err := s.compRepo.GetUserRank(ctx, competitionID, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("competition_id", competitionID).Msg("Failed to compute rank after submission")
		rank = 0
	}
	return sub, rank, nil
}

// publishScore mirrors the submission into the competition's Redis sorted set.
// Postgres remains the source of truth; a Redis failure only degrades
// leaderboard reads.
func (s *competitionService) publishScore(ctx context.Context, comp *model.Competition, sub *model.CompetitionSubmission) {
	if s.rdb == nil {
		return
	}
	composite := encodeLeaderboardScore(sub.Score, sub.TimeTaken)
	key := leaderboardKey(comp.ID)
	if err := s.rdb.ZAdd(ctx, key, redis.Z{Score: composite, Member: sub.UserID}).Err(); err != nil {
		s.logger.Warn().Err(err).Str("competition_id", comp.ID).Msg("Failed to publish score to redis")
		return
	}
	// Keep the set around briefly after expiry so final standings stay cheap to read.
	ttl := time.Until(comp.ExpiresAt) + time.Hour
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("competition_id", comp.ID).Msg("Failed to set leaderboard TTL")
	}
}

func (s *competitionService) History(ctx context.Context, userID string) ([]model.CompetitionResult, error) {
	return s.compRepo.ListResultsByUser(ctx, userID)
}

// Leaderboard returns the top entries, preferring the Redis sorted set and
// falling back to Postgres when the set is empty or unavailable.
func (s *competitionService) Leaderboard(ctx context.Context, competitionID string) ([]model.LeaderboardEntry, error) {
	if entries := s.leaderboardFromRedis(ctx, competitionID); len(entries) > 0 {
		return entries, nil
	}
	return s.compRepo.ListRankedSubmissions(ctx, competitionID, s.leaderboardSize)
}

func (s *competitionService) leaderboardFromRedis(ctx context.Context, competitionID string) []model.LeaderboardEntry {
	if s.rdb == nil {
		return nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, leaderboardKey(competitionID), 0, int64(s.leaderboardSize-1)).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("competition_id", competitionID).Msg("Redis leaderboard read failed, falling back to postgres")
		return nil
	}

	entries := make([]model.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		memberID, ok := z.Member.(string)
		if !ok {
			memberID = fmt.Sprint(z.Member)
		}
		score, timeTaken := decodeLeaderboardScore(z.Score)
		entry := model.LeaderboardEntry{
			Rank:      i + 1,
			UserID:    memberID,
			Score:     score,
			TimeTaken: timeTaken,
		}
		if u, err := s.userRepo.GetUserByID(ctx, memberID); err == nil && u != nil {
			entry.Name = u.Name
		}
		entries = append(entries, entry)
	}
	return entries
}

func (s *competitionService) ListActive(ctx context.Context) ([]model.Competition, error) {
	return s.compRepo.ListActiveCompetitions(ctx)
}
