// Package tracker appends subscription events whenever a list's items change.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/logger"
)

// EventWriter persists a single event.
type EventWriter interface {
	InsertEvent(ctx context.Context, ev clearly.SubscriptionEvent) error
}

type Tracker struct {
	w   EventWriter
	now func() time.Time
}

func New(w EventWriter) Tracker {
	return Tracker{w: w, now: time.Now}
}

// Record appends an event for the item, stamped with the current time.
//
// A failure is logged and returned. Callers treat it as best effort: the item
// change that triggered it stands either way.
func (t Tracker) Record(
	ctx context.Context,
	listID string,
	eventType clearly.EventType,
	itemID string,
	itemName string,
	md clearly.EventMetadata,
) error {
	ctx = logger.Ctx(ctx,
		slog.String("list_id", listID),
		slog.String("item_id", itemID),
		slog.String("event_type", string(eventType)),
	)

	if !eventType.Valid() {
		err := fmt.Errorf("unknown event type %q", eventType)
		slog.ErrorContext(ctx, "not recording event", "error", err)
		return err
	}

	ev := clearly.SubscriptionEvent{
		ListID:    listID,
		EventType: eventType,
		ItemID:    itemID,
		ItemName:  itemName,
		Metadata:  md,
		CreatedAt: clearly.At(t.now()),
	}
	if err := t.w.InsertEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "error recording subscription event", "error", err)
		return fmt.Errorf("error recording event: %w", err)
	}

	return nil
}

func (t Tracker) ItemAdded(ctx context.Context, listID, itemID, itemName string) error {
	return t.Record(ctx, listID, clearly.EventItemAdded, itemID, itemName, nil)
}

func (t Tracker) ItemRemoved(ctx context.Context, listID, itemID, itemName string) error {
	return t.Record(ctx, listID, clearly.EventItemRemoved, itemID, itemName, nil)
}

func (t Tracker) ItemClaimed(ctx context.Context, listID, itemID, itemName, claimedBy string) error {
	return t.Record(ctx, listID, clearly.EventItemClaimed, itemID, itemName, clearly.ClaimedMetadata(claimedBy))
}

func (t Tracker) ItemUnclaimed(ctx context.Context, listID, itemID, itemName string) error {
	return t.Record(ctx, listID, clearly.EventItemUnclaimed, itemID, itemName, nil)
}
