package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret            string `envconfig:"JWT_SECRET" required:"true"`
	JWTExpirationMinutes int    `envconfig:"JWT_EXPIRATION_MINUTES" default:"1440"`
	GoogleClientID       string `envconfig:"GOOGLE_CLIENT_ID" required:"true"`

	// LLM provider settings
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel      string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIModelPaid  string `envconfig:"OPENAI_MODEL_PAID" default:"gpt-4o"`
	OpenAITimeoutSec int    `envconfig:"OPENAI_TIMEOUT_SEC" default:"60"`

	// Stripe settings
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	StripePriceProMonthly string `envconfig:"STRIPE_PRO_MONTHLY_PRICE_ID"`
	StripePriceProYearly  string `envconfig:"STRIPE_PRO_YEARLY_PRICE_ID"`
	StripePriceMaxMonthly string `envconfig:"STRIPE_MAX_MONTHLY_PRICE_ID"`
	StripePriceMaxYearly  string `envconfig:"STRIPE_MAX_YEARLY_PRICE_ID"`
	FrontendURL           string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	DefaultPlan string `envconfig:"DEFAULT_PLAN" default:"free"`

	// Competition settings
	CompetitionDefaultTimeLimitSec int `envconfig:"COMPETITION_DEFAULT_TIME_LIMIT_SEC" default:"300"`
	CompetitionQuestionCount       int `envconfig:"COMPETITION_QUESTION_COUNT" default:"5"`
	LeaderboardSize                int `envconfig:"LEADERBOARD_SIZE" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
