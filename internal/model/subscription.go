package model

import "time"

// Plan names understood by the billing layer.
const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanMax  = "max"
)

// Subscription mirrors the user's Stripe subscription state.
type Subscription struct {
	ID                   string    `db:"id" json:"id"`
	UserID               string    `db:"user_id" json:"user_id"`
	StripeSubscriptionID *string   `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	Plan                 string    `db:"plan" json:"plan"`
	Status               string    `db:"status" json:"status"`
	CurrentPeriodEnd     time.Time `db:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool      `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// PlanLimits are the monthly quotas attached to a plan.
type PlanLimits struct {
	MaxSchemasPerMonth      int `json:"max_schemas_per_month"`
	MaxCompetitionsPerMonth int `json:"max_competitions_per_month"`
}

// PlanFeatures are the boolean entitlements attached to a plan.
type PlanFeatures struct {
	CanDownloadCertificates bool   `json:"can_download_certificates"`
	CanGetMasterCertificate bool   `json:"can_get_master_certificate"`
	AIModelTier             string `json:"ai_model_tier"`
}

// PlanConfig is the full description of a subscription plan.
type PlanConfig struct {
	Name        string       `json:"name"`
	DisplayName string       `json:"display_name"`
	Limits      PlanLimits   `json:"limits"`
	Features    PlanFeatures `json:"features"`
}

// UserUsage tracks a user's metered feature usage for one calendar month.
type UserUsage struct {
	ID                  string `db:"id" json:"id"`
	UserID              string `db:"user_id" json:"user_id"`
	Year                int    `db:"year" json:"year"`
	Month               int    `db:"month" json:"month"`
	SchemasGenerated    int    `db:"schemas_generated" json:"schemas_generated"`
	CompetitionsEntered int    `db:"competitions_entered" json:"competitions_entered"`
}

// FeatureCheck is the outcome of a feature-gate evaluation.
type FeatureCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit"`
	Used    int    `json:"used"`
}
