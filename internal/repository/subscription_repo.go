package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sqltutor/internal/model"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	GetSubscriptionByUser(ctx context.Context, userID string) (*model.Subscription, error)
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error
	MarkCanceledByStripeID(ctx context.Context, stripeSubscriptionID string) error
}

type subscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

func (r *subscriptionRepo) GetSubscriptionByUser(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `
        SELECT id, user_id, stripe_subscription_id, plan, status, current_period_end, cancel_at_period_end, created_at, updated_at
        FROM subscriptions
        WHERE user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, userID))
}

func (r *subscriptionRepo) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	const q = `
        SELECT id, user_id, stripe_subscription_id, plan, status, current_period_end, cancel_at_period_end, created_at, updated_at
        FROM subscriptions
        WHERE stripe_subscription_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, stripeSubscriptionID))
}

func (r *subscriptionRepo) scanOne(row *sql.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.StripeSubscriptionID, &s.Plan, &s.Status,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription: %w", err)
	}
	return &s, nil
}

// UpsertSubscription writes the subscription keyed by user. A missing ID gets
// generated so webhook-driven upserts can pass partial records.
func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	const q = `
        INSERT INTO subscriptions (id, user_id, stripe_subscription_id, plan, status, current_period_end, cancel_at_period_end, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        ON CONFLICT (user_id) DO UPDATE
        SET stripe_subscription_id = EXCLUDED.stripe_subscription_id,
            plan = EXCLUDED.plan,
            status = EXCLUDED.status,
            current_period_end = EXCLUDED.current_period_end,
            cancel_at_period_end = EXCLUDED.cancel_at_period_end,
            updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, q, sub.ID, sub.UserID, sub.StripeSubscriptionID,
		sub.Plan, sub.Status, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *subscriptionRepo) SetCancelAtPeriodEnd(ctx context.Context, userID string, cancel bool) error {
	const q = `
        UPDATE subscriptions
        SET cancel_at_period_end = $2, updated_at = NOW()
        WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, q, userID, cancel)
	if err != nil {
		return fmt.Errorf("set cancel_at_period_end for user %s: %w", userID, err)
	}
	return nil
}

func (r *subscriptionRepo) MarkCanceledByStripeID(ctx context.Context, stripeSubscriptionID string) error {
	const q = `
        UPDATE subscriptions
        SET status = 'canceled', updated_at = NOW()
        WHERE stripe_subscription_id = $1`
	_, err := r.db.ExecContext(ctx, q, stripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("mark subscription %s canceled: %w", stripeSubscriptionID, err)
	}
	return nil
}

// DefaultSubscription builds the free-tier record handed to users who have
// never been through checkout.
func DefaultSubscription(userID, plan string) *model.Subscription {
	return &model.Subscription{
		ID:               uuid.NewString(),
		UserID:           userID,
		Plan:             plan,
		Status:           "active",
		CurrentPeriodEnd: time.Now().AddDate(1, 0, 0),
	}
}
