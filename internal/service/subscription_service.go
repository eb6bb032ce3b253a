package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sqltutor/internal/model"
	"sqltutor/internal/repository"

	"github.com/rs/zerolog"
)

// Gated feature names.
const (
	FeatureGenerateSchema    = "generate_schema"
	FeatureCompetition       = "competition"
	FeatureCertificate       = "download_certificate"
	FeatureMasterCertificate = "master_certificate"
)

var ErrUnknownFeature = errors.New("unknown feature")

var planConfigs = map[string]model.PlanConfig{
	model.PlanFree: {
		Name:        model.PlanFree,
		DisplayName: "Free Plan",
		Limits:      model.PlanLimits{MaxSchemasPerMonth: 5, MaxCompetitionsPerMonth: 3},
		Features:    model.PlanFeatures{AIModelTier: "gpt-4o-mini"},
	},
	model.PlanPro: {
		Name:        model.PlanPro,
		DisplayName: "Pro Plan",
		Limits:      model.PlanLimits{MaxSchemasPerMonth: 15, MaxCompetitionsPerMonth: 15},
		Features: model.PlanFeatures{
			CanDownloadCertificates: true,
			CanGetMasterCertificate: true,
			AIModelTier:             "gpt-4o",
		},
	},
	model.PlanMax: {
		Name:        model.PlanMax,
		DisplayName: "Max Plan",
		Limits:      model.PlanLimits{MaxSchemasPerMonth: 50, MaxCompetitionsPerMonth: 50},
		Features: model.PlanFeatures{
			CanDownloadCertificates: true,
			CanGetMasterCertificate: true,
			AIModelTier:             "gpt-4o",
		},
	},
}

// PlanConfigFor returns the static configuration for a plan name, falling back
// to the free tier for unknown names.
func PlanConfigFor(plan string) model.PlanConfig {
	if cfg, ok := planConfigs[plan]; ok {
		return cfg
	}
	return planConfigs[model.PlanFree]
}

type SubscriptionService interface {
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	GetPlan(ctx context.Context, userID string) (model.PlanConfig, error)
	GetUsage(ctx context.Context, userID string) (*model.UserUsage, error)
	CanUseFeature(ctx context.Context, userID, feature string) (*model.FeatureCheck, error)
	IncrementUsage(ctx context.Context, userID, feature string) error
	UpsertStripeSubscription(ctx context.Context, sub *model.Subscription) error
	SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error
	MarkCanceledByStripeID(ctx context.Context, stripeSubscriptionID string) error
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
}

type subscriptionService struct {
	subRepo     repository.SubscriptionRepository
	usageRepo   repository.UsageRepository
	defaultPlan string
	plans       map[string]model.PlanConfig
	now         func() time.Time
	logger      zerolog.Logger
}

// NewSubscriptionService builds the plan catalog from the static configs, with
// the configured model names overriding the free and paid tiers.
func NewSubscriptionService(subRepo repository.SubscriptionRepository, usageRepo repository.UsageRepository, defaultPlan, freeModel, paidModel string, logger zerolog.Logger) SubscriptionService {
	if _, ok := planConfigs[defaultPlan]; !ok {
		defaultPlan = model.PlanFree
	}
	plans := make(map[string]model.PlanConfig, len(planConfigs))
	for name, cfg := range planConfigs {
		if name == model.PlanFree {
			if freeModel != "" {
				cfg.Features.AIModelTier = freeModel
			}
		} else if paidModel != "" {
			cfg.Features.AIModelTier = paidModel
		}
		plans[name] = cfg
	}
	return &subscriptionService{
		subRepo:     subRepo,
		usageRepo:   usageRepo,
		defaultPlan: defaultPlan,
		plans:       plans,
		now:         time.Now,
		logger:      logger.With().Str("service", "SubscriptionService").Logger(),
	}
}

func (s *subscriptionService) planFor(name string) model.PlanConfig {
	if cfg, ok := s.plans[name]; ok {
		return cfg
	}
	return s.plans[model.PlanFree]
}

// GetSubscription returns the user's subscription, creating a default-plan one
// for users who have never been through checkout.
func (s *subscriptionService) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.subRepo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch subscription")
		return nil, err
	}
	if sub == nil {
		sub = repository.DefaultSubscription(userID, s.defaultPlan)
		if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create default subscription")
			return nil, err
		}
	}
	return sub, nil
}

// GetPlan resolves the user's plan configuration. An expired or inactive paid
// subscription degrades to the default plan's limits.
func (s *subscriptionService) GetPlan(ctx context.Context, userID string) (model.PlanConfig, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return model.PlanConfig{}, err
	}
	if sub.Status != "active" || sub.CurrentPeriodEnd.Before(s.now()) {
		return s.planFor(s.defaultPlan), nil
	}
	return s.planFor(sub.Plan), nil
}

func (s *subscriptionService) GetUsage(ctx context.Context, userID string) (*model.UserUsage, error) {
	usage, err := s.usageRepo.GetOrCreateUsage(ctx, userID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to fetch usage")
		return nil, err
	}
	return usage, nil
}

func (s *subscriptionService) CanUseFeature(ctx context.Context, userID, feature string) (*model.FeatureCheck, error) {
	plan, err := s.GetPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch feature {
	case FeatureGenerateSchema, FeatureCompetition:
		usage, err := s.GetUsage(ctx, userID)
		if err != nil {
			return nil, err
		}
		check := &model.FeatureCheck{}
		if feature == FeatureGenerateSchema {
			check.Limit = plan.Limits.MaxSchemasPerMonth
			check.Used = usage.SchemasGenerated
		} else {
			check.Limit = plan.Limits.MaxCompetitionsPerMonth
			check.Used = usage.CompetitionsEntered
		}
		check.Allowed = check.Used < check.Limit
		if !check.Allowed {
			check.Reason = fmt.Sprintf("Monthly limit reached (%d)", check.Limit)
		}
		return check, nil
	case FeatureCertificate:
		check := &model.FeatureCheck{Allowed: plan.Features.CanDownloadCertificates}
		if !check.Allowed {
			check.Reason = "Certificate download requires Pro or Max plan"
		}
		return check, nil
	case FeatureMasterCertificate:
		check := &model.FeatureCheck{Allowed: plan.Features.CanGetMasterCertificate}
		if !check.Allowed {
			check.Reason = "Master certificate requires Pro or Max plan"
		}
		return check, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
}

func (s *subscriptionService) IncrementUsage(ctx context.Context, userID, feature string) error {
	switch feature {
	case FeatureGenerateSchema:
		return s.usageRepo.IncrementSchemasGenerated(ctx, userID, s.now())
	case FeatureCompetition:
		return s.usageRepo.IncrementCompetitionsEntered(ctx, userID, s.now())
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
}

func (s *subscriptionService) UpsertStripeSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.subRepo.UpsertSubscription(ctx, sub); err != nil {
		s.logger.Error().Err(err).Str("user_id", sub.UserID).Msg("Failed to upsert stripe subscription")
		return err
	}
	return nil
}

func (s *subscriptionService) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	return s.subRepo.SetCancelAtPeriodEnd(ctx, userID, cancel)
}

func (s *subscriptionService) MarkCanceledByStripeID(ctx context.Context, stripeSubscriptionID string) error {
	return s.subRepo.MarkCanceledByStripeID(ctx, stripeSubscriptionID)
}

func (s *subscriptionService) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	return s.subRepo.GetSubscriptionByStripeID(ctx, stripeSubscriptionID)
}
