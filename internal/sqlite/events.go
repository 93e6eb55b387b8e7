package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jdholdren/clearly/internal/clearly"
)

const (
	eventNamespace = "-evt"
	batchNamespace = "-bch"
)

func (r Repo) InsertEvent(ctx context.Context, ev clearly.SubscriptionEvent) error {
	const q = `INSERT INTO list_subscription_events (id, list_id, event_type, item_id, item_name, metadata, created_at)
	VALUES (:id, :list_id, :event_type, :item_id, :item_name, :metadata, :created_at);`

	ev.ID = uuid.NewString() + eventNamespace
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.stamp()
	}
	if _, err := r.db.NamedExecContext(ctx, q, ev); err != nil {
		return fmt.Errorf("error inserting subscription event: %s", err)
	}

	return nil
}

func (r Repo) Events(ctx context.Context, w clearly.EventWindow) ([]clearly.SubscriptionEvent, error) {
	var since sq.Sqlizer = sq.GtOrEq{"created_at": w.Since}
	if w.Exclusive {
		since = sq.Gt{"created_at": w.Since}
	}

	query, args, err := sq.Select("*").
		From("list_subscription_events").
		Where(sq.Eq{"list_id": w.ListID}).
		Where(since).
		OrderBy("created_at ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	events := []clearly.SubscriptionEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting subscription events: %s", err)
	}

	return events, nil
}

// LatestBatch returns nil when the subscription has no matching batch.
func (r Repo) LatestBatch(ctx context.Context, subscriptionID string, sent bool) (*clearly.SubscriptionBatch, error) {
	var sentFilter sq.Sqlizer = sq.Eq{"sent_at": nil}
	if sent {
		sentFilter = sq.NotEq{"sent_at": nil}
	}

	query, args, err := sq.Select("*").
		From("list_subscription_batches").
		Where(sq.Eq{"list_subscription_id": subscriptionID}).
		Where(sentFilter).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var batch clearly.SubscriptionBatch
	err = r.db.GetContext(ctx, &batch, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching latest batch: %s", err)
	}

	return &batch, nil
}

func (r Repo) InsertBatch(ctx context.Context, batch clearly.SubscriptionBatch) error {
	const q = `INSERT INTO list_subscription_batches (id, list_subscription_id, sent_at, last_event_at, created_at)
	VALUES (:id, :list_subscription_id, :sent_at, :last_event_at, :created_at);`

	batch.ID = uuid.NewString() + batchNamespace
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = r.stamp()
	}
	if _, err := r.db.NamedExecContext(ctx, q, batch); err != nil {
		return fmt.Errorf("error inserting subscription batch: %s", err)
	}

	return nil
}
