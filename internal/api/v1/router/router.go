package router

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"sqltutor/internal/api/v1/handler"
	"sqltutor/internal/config"
	"sqltutor/internal/middleware"
	"sqltutor/internal/repository"
	"sqltutor/internal/sandbox"
	"sqltutor/internal/service"

	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the full application: database, redis, sandbox, services and
// handlers. The returned cleanup drops the sandbox databases and closes the
// redis and postgres connections; call it on shutdown.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	dsn := cfg.DBConnectionString
	// Local development usually runs postgres without TLS.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection")
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	logger.Info().Msg("Database connection successful")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	validate := validator.New(validator.WithRequiredStructEnabled())
	sb := sandbox.NewManager()

	userRepo := repository.NewUserRepo(db)
	schemaRepo := repository.NewSchemaRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	compRepo := repository.NewCompetitionRepo(db)
	subRepo := repository.NewSubscriptionRepo(db)
	usageRepo := repository.NewUsageRepo(db)

	verifier := service.NewGoogleVerifier(cfg.GoogleClientID)
	aiClient := service.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, time.Duration(cfg.OpenAITimeoutSec)*time.Second, logger)

	subSvc := service.NewSubscriptionService(subRepo, usageRepo, cfg.DefaultPlan, cfg.OpenAIModel, cfg.OpenAIModelPaid, logger)
	authSvc := service.NewAuthService(userRepo, verifier, sb, cfg.JWTSecret, time.Duration(cfg.JWTExpirationMinutes)*time.Minute, logger)
	practiceSvc := service.NewPracticeService(schemaRepo, sessionRepo, userRepo, subSvc, aiClient, sb, logger)
	compSvc := service.NewCompetitionService(compRepo, schemaRepo, userRepo, subSvc, aiClient, sb, rdb, cfg.CompetitionDefaultTimeLimitSec, cfg.CompetitionQuestionCount, cfg.LeaderboardSize, logger)
	dashSvc := service.NewDashboardService(sessionRepo, compRepo, userRepo, subSvc, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, subSvc, logger)

	authHandler := handler.NewAuthHandler(authSvc, logger)
	practiceHandler := handler.NewPracticeHandler(practiceSvc, validate, logger)
	compHandler := handler.NewCompetitionHandler(compSvc, validate, logger)
	dashHandler := handler.NewDashboardHandler(dashSvc, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, subSvc, validate, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	apiMux := http.NewServeMux()
	authHandler.RegisterRoutes(apiMux, authMiddleware)
	practiceHandler.RegisterRoutes(apiMux, authMiddleware)
	compHandler.RegisterRoutes(apiMux, authMiddleware)
	dashHandler.RegisterRoutes(apiMux, authMiddleware)
	billingHandler.RegisterRoutes(apiMux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	cleanup := func() {
		sb.CloseAll()
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close redis client")
		}
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close DB connection")
		}
	}
	return middleware.LoggerMiddleware(logger, c.Handler(mux)), cleanup, nil
}
