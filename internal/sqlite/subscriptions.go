package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jdholdren/clearly/internal/clearly"
)

const subscriptionNamespace = "-sub"

func (r Repo) InsertSubscription(ctx context.Context, sub clearly.Subscription) (clearly.Subscription, error) {
	const q = `INSERT INTO list_subscriptions (
		id, list_id, email, verification_token, unsubscribe_token, verified_at, verification_expires_at, created_at
	) VALUES (
		:id, :list_id, :email, :verification_token, :unsubscribe_token, :verified_at, :verification_expires_at, :created_at
	);`

	sub.ID = uuid.NewString() + subscriptionNamespace
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = r.stamp()
	}
	_, err := r.db.NamedExecContext(ctx, q, sub)
	if isUniqueViolation(err) {
		return clearly.Subscription{}, fmt.Errorf("subscription token collision: %w", clearly.ErrConflict)
	}
	if err != nil {
		return clearly.Subscription{}, fmt.Errorf("error inserting subscription: %s", err)
	}

	return r.subscription(ctx, sub.ID)
}

func (r Repo) subscription(ctx context.Context, id string) (clearly.Subscription, error) {
	const q = `SELECT * FROM list_subscriptions WHERE id = ?;`

	sub, err := get[clearly.Subscription](ctx, r.db, q, id)
	if err != nil {
		return clearly.Subscription{}, fmt.Errorf("error fetching subscription: %w", err)
	}

	return sub, nil
}

func (r Repo) UnverifiedSubscription(ctx context.Context, listID, email string) (clearly.Subscription, error) {
	const q = `SELECT * FROM list_subscriptions
	WHERE list_id = ? AND email = ? AND verified_at IS NULL
	ORDER BY created_at DESC LIMIT 1;`

	sub, err := get[clearly.Subscription](ctx, r.db, q, listID, email)
	if err != nil {
		return clearly.Subscription{}, fmt.Errorf("error fetching unverified subscription: %w", err)
	}

	return sub, nil
}

func (r Repo) VerifiedSubscription(ctx context.Context, listID, email string) (clearly.Subscription, error) {
	const q = `SELECT * FROM list_subscriptions
	WHERE list_id = ? AND email = ? AND verified_at IS NOT NULL
	ORDER BY created_at DESC LIMIT 1;`

	sub, err := get[clearly.Subscription](ctx, r.db, q, listID, email)
	if err != nil {
		return clearly.Subscription{}, fmt.Errorf("error fetching verified subscription: %w", err)
	}

	return sub, nil
}

func (r Repo) SubscriptionByVerificationToken(ctx context.Context, token string) (clearly.Subscription, error) {
	const q = `SELECT * FROM list_subscriptions WHERE verification_token = ?;`

	sub, err := get[clearly.Subscription](ctx, r.db, q, token)
	if err != nil {
		return clearly.Subscription{}, fmt.Errorf("error fetching subscription by token: %w", err)
	}

	return sub, nil
}

// MarkSubscriptionVerified stamps the subscription and burns its verification token.
func (r Repo) MarkSubscriptionVerified(ctx context.Context, id string, at clearly.Timestamp) error {
	const q = `UPDATE list_subscriptions SET verified_at = ?, verification_token = NULL WHERE id = ?;`

	res, err := r.db.ExecContext(ctx, q, at, id)
	if err != nil {
		return fmt.Errorf("error verifying subscription: %s", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return clearly.ErrNotFound
	}

	return nil
}

func (r Repo) DeleteSubscriptionByUnsubscribeToken(ctx context.Context, token string) error {
	const q = `DELETE FROM list_subscriptions WHERE unsubscribe_token = ?;`

	res, err := r.db.ExecContext(ctx, q, token)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %s", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return clearly.ErrNotFound
	}

	return nil
}

func (r Repo) VerifiedSubscriptions(ctx context.Context) ([]clearly.Subscription, error) {
	const q = `SELECT * FROM list_subscriptions WHERE verified_at IS NOT NULL ORDER BY created_at ASC;`

	subs := []clearly.Subscription{}
	if err := r.db.SelectContext(ctx, &subs, q); err != nil {
		return nil, fmt.Errorf("error selecting verified subscriptions: %s", err)
	}

	return subs, nil
}
