package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sqltutor/internal/api/v1/dto"
	"sqltutor/internal/middleware"
	"sqltutor/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler handles the billing and subscription endpoints
type BillingHandler struct {
	stripeSvc *service.StripeService
	subSvc    service.SubscriptionService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(stripeSvc *service.StripeService, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{stripeSvc: stripeSvc, subSvc: subSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts the billing routes. The webhook is registered without
// auth middleware; Stripe authenticates with its payload signature instead.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/billing/create-checkout", authMw(http.HandlerFunc(h.createCheckout)))
	mux.Handle("/billing/subscription", authMw(http.HandlerFunc(h.subscription)))
	mux.Handle("/billing/feature-check/", authMw(http.HandlerFunc(h.featureCheck)))
	mux.Handle("/billing/cancel", authMw(http.HandlerFunc(h.cancel)))
	mux.Handle("/billing/reactivate", authMw(http.HandlerFunc(h.reactivate)))
	mux.HandleFunc("/billing/webhook", h.webhook)
}

func (h *BillingHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, req.Plan, req.BillingCycle)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPlan) || errors.Is(err, service.ErrInvalidBillingCycle) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create checkout session")
		http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutResponseDTO{CheckoutURL: url})
}

func (h *BillingHandler) subscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	sub, err := h.subSvc.GetSubscription(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		http.Error(w, "Failed to fetch subscription", http.StatusInternalServerError)
		return
	}
	plan, err := h.subSvc.GetPlan(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve plan")
		http.Error(w, "Failed to resolve plan", http.StatusInternalServerError)
		return
	}
	usage, err := h.subSvc.GetUsage(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch usage")
		http.Error(w, "Failed to fetch usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.SubscriptionStatusDTO{
		Plan: dto.PlanDTO{
			Name:                    plan.Name,
			DisplayName:             plan.DisplayName,
			MaxSchemasPerMonth:      plan.Limits.MaxSchemasPerMonth,
			MaxCompetitionsPerMonth: plan.Limits.MaxCompetitionsPerMonth,
			CanDownloadCertificates: plan.Features.CanDownloadCertificates,
			CanGetMasterCertificate: plan.Features.CanGetMasterCertificate,
			CancelAtPeriodEnd:       sub.CancelAtPeriodEnd,
		},
		Usage: dto.UsageDTO{
			SchemasGenerated:    usage.SchemasGenerated,
			CompetitionsEntered: usage.CompetitionsEntered,
			Year:                usage.Year,
			Month:               usage.Month,
		},
	})
}

func (h *BillingHandler) featureCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	feature := strings.TrimPrefix(r.URL.Path, "/billing/feature-check/")
	if feature == "" || strings.Contains(feature, "/") {
		http.NotFound(w, r)
		return
	}
	check, err := h.subSvc.CanUseFeature(r.Context(), userID, feature)
	if err != nil {
		if errors.Is(err, service.ErrUnknownFeature) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Str("feature", feature).Msg("Failed to check feature")
		http.Error(w, "Failed to check feature", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.FeatureCheckResponseDTO{
		Allowed: check.Allowed,
		Reason:  check.Reason,
		Limit:   check.Limit,
		Used:    check.Used,
	})
}

func (h *BillingHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.setCancel(w, r, true)
}

func (h *BillingHandler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.setCancel(w, r, false)
}

func (h *BillingHandler) setCancel(w http.ResponseWriter, r *http.Request, cancel bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := middleware.UserID(r)
	if !ok {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	if err := h.stripeSvc.SetCancelAtPeriodEnd(r.Context(), userID, cancel); err != nil {
		if errors.Is(err, service.ErrNoStripeSub) {
			http.Error(w, "No active paid subscription", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Bool("cancel", cancel).Msg("Failed to update subscription")
		http.Error(w, "Failed to update subscription", http.StatusInternalServerError)
		return
	}
	msg := "subscription will renew"
	if cancel {
		msg = "subscription will cancel at period end"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (h *BillingHandler) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.stripeSvc.HandleWebhook(w, r)
}
