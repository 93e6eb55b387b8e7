package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/migrations"
)

func newTestRepo(t *testing.T) Repo {
	t.Helper()

	dbx, err := Open(filepath.Join(t.TempDir(), "clearly.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, migrations.Run(dbx))

	return New(dbx)
}

func TestLists(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	l, err := r.InsertList(ctx, "Birthday", "tok1")
	require.NoError(t, err)
	assert.Equal(t, "Birthday", l.Name)
	assert.False(t, l.CreatedAt.IsZero())

	_, err = r.InsertList(ctx, "Other", "tok1")
	assert.ErrorIs(t, err, clearly.ErrConflict)

	byTok, err := r.ListByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, l.ID, byTok.ID)

	_, err = r.List(ctx, "nope")
	assert.ErrorIs(t, err, clearly.ErrNotFound)

	require.NoError(t, r.IncrementListViews(ctx, l.ID))
	require.NoError(t, r.IncrementListViews(ctx, l.ID))
	l, err = r.List(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, l.ViewCount)
	assert.ErrorIs(t, r.IncrementListViews(ctx, "nope"), clearly.ErrNotFound)
}

func TestItemClaims(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	l, err := r.InsertList(ctx, "Birthday", "tok1")
	require.NoError(t, err)

	item, err := r.InsertItem(ctx, clearly.NewItem{
		ListID:       l.ID,
		Name:         "Lego",
		URL:          "https://amazon.com/dp/1?tag=x",
		FormattedURL: "https://amazon.com/dp/1?tag=clearly-20",
	})
	require.NoError(t, err)
	assert.Nil(t, item.Description)
	assert.Equal(t, "https://amazon.com/dp/1?tag=clearly-20", item.Destination())
	assert.False(t, item.Claimed())

	require.NoError(t, r.ClaimItem(ctx, item.ID, "Sam"))
	assert.ErrorIs(t, r.ClaimItem(ctx, item.ID, "Alex"), clearly.ErrConflict)
	assert.ErrorIs(t, r.ClaimItem(ctx, "nope", "Alex"), clearly.ErrNotFound)

	item, err = r.Item(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, item.Claimed())
	assert.Equal(t, "Sam", *item.ClaimedBy)

	require.NoError(t, r.UnclaimItem(ctx, item.ID))
	assert.ErrorIs(t, r.UnclaimItem(ctx, item.ID), clearly.ErrConflict)

	require.NoError(t, r.IncrementItemClicks(ctx, item.ID))
	items, err := r.ListItems(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].ClickCount)
	assert.Nil(t, items[0].ClaimedBy)

	require.NoError(t, r.DeleteItem(ctx, item.ID))
	assert.ErrorIs(t, r.DeleteItem(ctx, item.ID), clearly.ErrNotFound)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	l, err := r.InsertList(ctx, "Birthday", "tok1")
	require.NoError(t, err)

	verifyTok := "verify1"
	sub, err := r.InsertSubscription(ctx, clearly.Subscription{
		ListID:                l.ID,
		Email:                 "sam@example.com",
		VerificationToken:     &verifyTok,
		UnsubscribeToken:      "unsub1",
		VerificationExpiresAt: clearly.At(time.Now().Add(24 * time.Hour)),
	})
	require.NoError(t, err)
	assert.False(t, sub.Verified())

	pending, err := r.UnverifiedSubscription(ctx, l.ID, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, pending.ID)
	_, err = r.VerifiedSubscription(ctx, l.ID, "sam@example.com")
	assert.ErrorIs(t, err, clearly.ErrNotFound)

	byTok, err := r.SubscriptionByVerificationToken(ctx, verifyTok)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byTok.ID)

	require.NoError(t, r.MarkSubscriptionVerified(ctx, sub.ID, clearly.At(time.Now())))
	_, err = r.SubscriptionByVerificationToken(ctx, verifyTok)
	assert.ErrorIs(t, err, clearly.ErrNotFound, "token is single use")

	verified, err := r.VerifiedSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.True(t, verified[0].Verified())
	assert.Nil(t, verified[0].VerificationToken)

	require.NoError(t, r.DeleteSubscriptionByUnsubscribeToken(ctx, "unsub1"))
	assert.ErrorIs(t, r.DeleteSubscriptionByUnsubscribeToken(ctx, "unsub1"), clearly.ErrNotFound)

	verified, err = r.VerifiedSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, verified)
}

func TestEventWindow(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	l, err := r.InsertList(ctx, "Birthday", "tok1")
	require.NoError(t, err)

	base := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"Lego", "Kite", "Book"} {
		require.NoError(t, r.InsertEvent(ctx, clearly.SubscriptionEvent{
			ListID:    l.ID,
			EventType: clearly.EventItemAdded,
			ItemID:    "item" + name,
			ItemName:  name,
			CreatedAt: clearly.At(base.Add(time.Duration(i) * time.Minute)),
		}))
	}
	require.NoError(t, r.InsertEvent(ctx, clearly.SubscriptionEvent{
		ListID:    l.ID,
		EventType: clearly.EventItemClaimed,
		ItemID:    "itemLego",
		ItemName:  "Lego",
		Metadata:  clearly.ClaimedMetadata("Sam"),
		CreatedAt: clearly.At(base.Add(3 * time.Minute)),
	}))

	all, err := r.Events(ctx, clearly.EventWindow{ListID: l.ID, Since: clearly.At(base)})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Lego", all[0].ItemName)
	assert.Equal(t, "Sam", *all[3].Metadata.ClaimedBy())
	assert.Nil(t, all[0].Metadata)

	since := clearly.At(base.Add(time.Minute))
	inclusive, err := r.Events(ctx, clearly.EventWindow{ListID: l.ID, Since: since})
	require.NoError(t, err)
	assert.Len(t, inclusive, 3)

	exclusive, err := r.Events(ctx, clearly.EventWindow{ListID: l.ID, Since: since, Exclusive: true})
	require.NoError(t, err)
	assert.Len(t, exclusive, 2)

	other, err := r.Events(ctx, clearly.EventWindow{ListID: "other", Since: clearly.At(base)})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBatches(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	l, err := r.InsertList(ctx, "Birthday", "tok1")
	require.NoError(t, err)
	sub, err := r.InsertSubscription(ctx, clearly.Subscription{
		ListID:                l.ID,
		Email:                 "sam@example.com",
		UnsubscribeToken:      "unsub1",
		VerificationExpiresAt: clearly.At(time.Now()),
	})
	require.NoError(t, err)

	none, err := r.LatestBatch(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Nil(t, none)

	first := clearly.At(time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC))
	second := clearly.At(first.Add(time.Minute))
	sentAt := clearly.At(time.Now())
	require.NoError(t, r.InsertBatch(ctx, clearly.SubscriptionBatch{SubscriptionID: sub.ID, SentAt: &sentAt, LastEventAt: first, CreatedAt: first}))
	require.NoError(t, r.InsertBatch(ctx, clearly.SubscriptionBatch{SubscriptionID: sub.ID, SentAt: &sentAt, LastEventAt: second, CreatedAt: second}))

	latest, err := r.LatestBatch(ctx, sub.ID, true)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, second.Equal(latest.LastEventAt.Time))
	require.NotNil(t, latest.SentAt)

	// Every batch is written with sent_at set, so the unsent lookup never matches.
	unsent, err := r.LatestBatch(ctx, sub.ID, false)
	require.NoError(t, err)
	assert.Nil(t, unsent)
}
