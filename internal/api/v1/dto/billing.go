package dto

// CheckoutRequestDTO is used for incoming checkout session requests
type CheckoutRequestDTO struct {
	Plan         string `json:"plan" validate:"required,oneof=pro max"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=monthly yearly"`
}

// CheckoutResponseDTO carries the Stripe Checkout URL
type CheckoutResponseDTO struct {
	CheckoutURL string `json:"checkout_url"`
}

// SubscriptionStatusDTO combines the plan configuration with current usage
type SubscriptionStatusDTO struct {
	Plan  PlanDTO  `json:"plan"`
	Usage UsageDTO `json:"usage"`
}

// PlanDTO is the plan section of a subscription status response
type PlanDTO struct {
	Name                    string `json:"name"`
	DisplayName             string `json:"display_name"`
	MaxSchemasPerMonth      int    `json:"max_schemas_per_month"`
	MaxCompetitionsPerMonth int    `json:"max_competitions_per_month"`
	CanDownloadCertificates bool   `json:"can_download_certificates"`
	CanGetMasterCertificate bool   `json:"can_get_master_certificate"`
	CancelAtPeriodEnd       bool   `json:"cancel_at_period_end"`
}

// UsageDTO is the usage section of a subscription status response
type UsageDTO struct {
	SchemasGenerated    int `json:"schemas_generated"`
	CompetitionsEntered int `json:"competitions_entered"`
	Year                int `json:"year"`
	Month               int `json:"month"`
}

// FeatureCheckResponseDTO is returned for feature gate checks
type FeatureCheckResponseDTO struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit"`
	Used    int    `json:"used"`
}
