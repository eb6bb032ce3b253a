package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sqltutor/internal/model"

	"github.com/rs/zerolog"
)

type fakeSubRepo struct {
	subs map[string]*model.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: map[string]*model.Subscription{}}
}

func (f *fakeSubRepo) GetSubscriptionByUser(_ context.Context, userID string) (*model.Subscription, error) {
	return f.subs[userID], nil
}

func (f *fakeSubRepo) GetSubscriptionByStripeID(_ context.Context, stripeID string) (*model.Subscription, error) {
	for _, s := range f.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeID {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) UpsertSubscription(_ context.Context, sub *model.Subscription) error {
	f.subs[sub.UserID] = sub
	return nil
}

func (f *fakeSubRepo) SetCancelAtPeriodEnd(_ context.Context, userID string, cancel bool) error {
	s, ok := f.subs[userID]
	if !ok {
		return errors.New("no subscription")
	}
	s.CancelAtPeriodEnd = cancel
	return nil
}

func (f *fakeSubRepo) MarkCanceledByStripeID(_ context.Context, stripeID string) error {
	for _, s := range f.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeID {
			s.Status = "canceled"
			return nil
		}
	}
	return errors.New("no subscription")
}

type fakeUsageRepo struct {
	schemas      int
	competitions int
}

func (f *fakeUsageRepo) GetOrCreateUsage(_ context.Context, userID string, at time.Time) (*model.UserUsage, error) {
	return &model.UserUsage{
		UserID:              userID,
		Year:                at.Year(),
		Month:               int(at.Month()),
		SchemasGenerated:    f.schemas,
		CompetitionsEntered: f.competitions,
	}, nil
}

func (f *fakeUsageRepo) IncrementSchemasGenerated(_ context.Context, _ string, _ time.Time) error {
	f.schemas++
	return nil
}

func (f *fakeUsageRepo) IncrementCompetitionsEntered(_ context.Context, _ string, _ time.Time) error {
	f.competitions++
	return nil
}

func newTestSubService(subRepo *fakeSubRepo, usageRepo *fakeUsageRepo) *subscriptionService {
	svc := NewSubscriptionService(subRepo, usageRepo, model.PlanFree, "", "", zerolog.Nop())
	return svc.(*subscriptionService)
}

func TestGetSubscriptionCreatesDefault(t *testing.T) {
	subRepo := newFakeSubRepo()
	svc := newTestSubService(subRepo, &fakeUsageRepo{})

	sub, err := svc.GetSubscription(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetSubscription returned error: %v", err)
	}
	if sub.Plan != model.PlanFree {
		t.Errorf("expected free plan, got %q", sub.Plan)
	}
	if subRepo.subs["u1"] == nil {
		t.Error("expected default subscription to be persisted")
	}
}

func TestGetPlanExpiredSubscriptionDegrades(t *testing.T) {
	subRepo := newFakeSubRepo()
	subRepo.subs["u1"] = &model.Subscription{
		UserID:           "u1",
		Plan:             model.PlanPro,
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(-time.Hour),
	}
	svc := newTestSubService(subRepo, &fakeUsageRepo{})

	plan, err := svc.GetPlan(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetPlan returned error: %v", err)
	}
	if plan.Name != model.PlanFree {
		t.Errorf("expected expired pro to degrade to free, got %q", plan.Name)
	}
}

func TestGetPlanUsesConfiguredModels(t *testing.T) {
	subRepo := newFakeSubRepo()
	subRepo.subs["u2"] = &model.Subscription{
		UserID:           "u2",
		Plan:             model.PlanPro,
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
	}
	svc := NewSubscriptionService(subRepo, &fakeUsageRepo{}, model.PlanFree, "free-model", "paid-model", zerolog.Nop())

	plan, err := svc.GetPlan(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetPlan returned error: %v", err)
	}
	if plan.Features.AIModelTier != "free-model" {
		t.Errorf("expected free plan model %q, got %q", "free-model", plan.Features.AIModelTier)
	}

	plan, err = svc.GetPlan(context.Background(), "u2")
	if err != nil {
		t.Fatalf("GetPlan returned error: %v", err)
	}
	if plan.Features.AIModelTier != "paid-model" {
		t.Errorf("expected pro plan model %q, got %q", "paid-model", plan.Features.AIModelTier)
	}
}

func TestCanUseFeatureQuota(t *testing.T) {
	subRepo := newFakeSubRepo()
	usageRepo := &fakeUsageRepo{schemas: 5}
	svc := newTestSubService(subRepo, usageRepo)

	check, err := svc.CanUseFeature(context.Background(), "u1", FeatureGenerateSchema)
	if err != nil {
		t.Fatalf("CanUseFeature returned error: %v", err)
	}
	if check.Allowed {
		t.Error("expected quota to be exhausted at 5/5 on free plan")
	}
	if check.Limit != 5 || check.Used != 5 {
		t.Errorf("unexpected limit/used: %d/%d", check.Limit, check.Used)
	}

	usageRepo.schemas = 2
	check, err = svc.CanUseFeature(context.Background(), "u1", FeatureGenerateSchema)
	if err != nil {
		t.Fatalf("CanUseFeature returned error: %v", err)
	}
	if !check.Allowed {
		t.Error("expected 2/5 to be allowed")
	}
}

func TestCanUseFeatureCertificateByPlan(t *testing.T) {
	subRepo := newFakeSubRepo()
	svc := newTestSubService(subRepo, &fakeUsageRepo{})

	check, err := svc.CanUseFeature(context.Background(), "u1", FeatureCertificate)
	if err != nil {
		t.Fatalf("CanUseFeature returned error: %v", err)
	}
	if check.Allowed {
		t.Error("free plan should not allow certificate download")
	}

	subRepo.subs["u2"] = &model.Subscription{
		UserID:           "u2",
		Plan:             model.PlanPro,
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
	}
	check, err = svc.CanUseFeature(context.Background(), "u2", FeatureCertificate)
	if err != nil {
		t.Fatalf("CanUseFeature returned error: %v", err)
	}
	if !check.Allowed {
		t.Error("pro plan should allow certificate download")
	}
}

func TestCanUseFeatureUnknown(t *testing.T) {
	svc := newTestSubService(newFakeSubRepo(), &fakeUsageRepo{})
	if _, err := svc.CanUseFeature(context.Background(), "u1", "teleportation"); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestIncrementUsage(t *testing.T) {
	usageRepo := &fakeUsageRepo{}
	svc := newTestSubService(newFakeSubRepo(), usageRepo)

	if err := svc.IncrementUsage(context.Background(), "u1", FeatureCompetition); err != nil {
		t.Fatalf("IncrementUsage returned error: %v", err)
	}
	if usageRepo.competitions != 1 {
		t.Errorf("expected 1 competition entry recorded, got %d", usageRepo.competitions)
	}
}
