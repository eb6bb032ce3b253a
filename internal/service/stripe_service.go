package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sqltutor/internal/config"
	"sqltutor/internal/model"
	"sqltutor/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrInvalidPlan         = errors.New("invalid plan")
	ErrInvalidBillingCycle = errors.New("invalid billing cycle")
	ErrNoStripeSub         = errors.New("no stripe subscription for user")
)

// StripeService manages Stripe checkout, subscription lifecycle and webhooks.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	subSvc   SubscriptionService
	logger   zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with a
// scoped logger.
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, subSvc SubscriptionService, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, userRepo: userRepo, subSvc: subSvc, logger: lg}
}

func (s *StripeService) priceID(plan, billingCycle string) (string, error) {
	switch plan {
	case model.PlanPro:
		switch billingCycle {
		case "monthly":
			return s.cfg.StripePriceProMonthly, nil
		case "yearly":
			return s.cfg.StripePriceProYearly, nil
		}
	case model.PlanMax:
		switch billingCycle {
		case "monthly":
			return s.cfg.StripePriceMaxMonthly, nil
		case "yearly":
			return s.cfg.StripePriceMaxYearly, nil
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPlan, plan)
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidBillingCycle, billingCycle)
}

// planForPrice maps a Stripe price ID back to a plan name. Unknown prices map
// to the free plan so a misconfigured webhook never grants entitlements.
func (s *StripeService) planForPrice(priceID string) string {
	switch priceID {
	case s.cfg.StripePriceProMonthly, s.cfg.StripePriceProYearly:
		return model.PlanPro
	case s.cfg.StripePriceMaxMonthly, s.cfg.StripePriceMaxYearly:
		return model.PlanMax
	default:
		return model.PlanFree
	}
}

// CreateCheckoutSession creates a Stripe Checkout session for a paid plan and
// returns its URL.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan, billingCycle string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch user for checkout session")
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user not found: %s", userID)
	}
	priceID, err := s.priceID(plan, billingCycle)
	if err != nil {
		return "", err
	}
	if priceID == "" {
		return "", fmt.Errorf("no price configured for %s/%s", plan, billingCycle)
	}

	sessParams := &stripe.CheckoutSessionParams{
		CustomerEmail:      stripe.String(user.Email),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(stripe.CheckoutSessionModeSubscription),
		SuccessURL:         stripe.String(s.cfg.FrontendURL + "/billing?status=success"),
		CancelURL:          stripe.String(s.cfg.FrontendURL + "/billing?status=cancel"),
		Metadata:           map[string]string{"user_id": userID, "plan": plan},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// SetCancelAtPeriodEnd updates the user's Stripe subscription so it cancels or
// renews at the end of the current period, then mirrors the flag locally.
func (s *StripeService) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	sub, err := s.subSvc.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		return ErrNoStripeSub
	}
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	if _, err := subscriptionpkg.Update(*sub.StripeSubscriptionID, params); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Bool("cancel", cancel).Msg("Failed to update Stripe subscription")
		return fmt.Errorf("update stripe subscription: %w", err)
	}
	return s.subSvc.SetCancelAtPeriodEnd(ctx, userID, cancel)
}

// subscriptionFromStripe builds the local subscription row from a Stripe
// subscription object and the user it belongs to.
func (s *StripeService) subscriptionFromStripe(userID string, subObj *stripe.Subscription) (*model.Subscription, error) {
	if len(subObj.Items.Data) == 0 || subObj.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("subscription %s has no priced items", subObj.ID)
	}
	item := subObj.Items.Data[0]
	subID := subObj.ID
	return &model.Subscription{
		UserID:               userID,
		StripeSubscriptionID: &subID,
		Plan:                 s.planForPrice(item.Price.ID),
		Status:               "active",
		CurrentPeriodEnd:     time.Unix(item.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    subObj.CancelAtPeriodEnd,
	}, nil
}

// HandleWebhook processes Stripe webhook events. The payload signature is
// verified before anything is parsed.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		userID := cs.Metadata["user_id"]
		if userID == "" {
			s.logger.Error().Str("checkout_session", cs.ID).Msg("Missing user_id in checkout session metadata")
			http.Error(w, "missing user_id in metadata", http.StatusBadRequest)
			return
		}
		if cs.Subscription == nil || cs.Subscription.ID == "" {
			s.logger.Error().Str("checkout_session", cs.ID).Msg("Checkout session has no subscription")
			http.Error(w, "checkout session has no subscription", http.StatusBadRequest)
			return
		}
		subObj, err := subscriptionpkg.Get(cs.Subscription.ID, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription details")
			http.Error(w, "failed to fetch subscription details", http.StatusInternalServerError)
			return
		}
		sub, err := s.subscriptionFromStripe(userID, subObj)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to map Stripe subscription")
			http.Error(w, "invalid subscription object", http.StatusInternalServerError)
			return
		}
		if err := s.subSvc.UpsertStripeSubscription(ctx, sub); err != nil {
			s.logger.Error().Err(err).Msg("Failed to save subscription on checkout.session.completed")
			http.Error(w, "failed to save subscription", http.StatusInternalServerError)
			return
		}
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			s.logger.Error().Err(err).Msg("Invalid invoice.payment_succeeded payload")
			http.Error(w, "invalid invoice data", http.StatusBadRequest)
			return
		}
		var subID string
		if invoice.Lines != nil {
			for _, line := range invoice.Lines.Data {
				if line.Subscription != nil && line.Subscription.ID != "" {
					subID = line.Subscription.ID
					break
				}
			}
		}
		// One-time invoices carry no subscription and need no update.
		if subID == "" {
			s.logger.Info().Str("invoice_id", invoice.ID).Msg("Invoice has no subscription, skipping")
			w.WriteHeader(http.StatusOK)
			return
		}
		existing, err := s.subSvc.GetSubscriptionByStripeID(ctx, subID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to look up subscription for invoice")
			http.Error(w, "failed to look up subscription", http.StatusInternalServerError)
			return
		}
		if existing == nil {
			s.logger.Warn().Str("subscription_id", subID).Msg("Invoice for unknown subscription, skipping")
			w.WriteHeader(http.StatusOK)
			return
		}
		subObj, err := subscriptionpkg.Get(subID, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", subID).Msg("Failed to fetch subscription details")
			http.Error(w, "failed to fetch subscription details", http.StatusInternalServerError)
			return
		}
		sub, err := s.subscriptionFromStripe(existing.UserID, subObj)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to map Stripe subscription")
			http.Error(w, "invalid subscription object", http.StatusInternalServerError)
			return
		}
		sub.ID = existing.ID
		if err := s.subSvc.UpsertStripeSubscription(ctx, sub); err != nil {
			s.logger.Error().Err(err).Str("user_id", existing.UserID).Msg("Failed to extend subscription on invoice.payment_succeeded")
			http.Error(w, "failed to update subscription", http.StatusInternalServerError)
			return
		}
	case "customer.subscription.deleted":
		var ss stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &ss); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		if err := s.subSvc.MarkCanceledByStripeID(ctx, ss.ID); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", ss.ID).Msg("Failed to mark subscription canceled")
			http.Error(w, "failed to cancel subscription", http.StatusInternalServerError)
			return
		}
	default:
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unhandled Stripe webhook event")
	}
	w.WriteHeader(http.StatusOK)
}
