package clearly

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type (
	// Subscription is an email address watching a list for changes.
	Subscription struct {
		ID                    string     `db:"id"`
		ListID                string     `db:"list_id"`
		Email                 string     `db:"email"`
		VerificationToken     *string    `db:"verification_token"` // Cleared once used
		UnsubscribeToken      string     `db:"unsubscribe_token"`
		VerifiedAt            *Timestamp `db:"verified_at"`
		VerificationExpiresAt Timestamp  `db:"verification_expires_at"`
		CreatedAt             Timestamp  `db:"created_at"`
	}

	// SubscriptionEvent is an immutable record of something that happened to an item.
	SubscriptionEvent struct {
		ID        string        `db:"id"`
		ListID    string        `db:"list_id"`
		EventType EventType     `db:"event_type"`
		ItemID    string        `db:"item_id"`
		ItemName  string        `db:"item_name"` // As it was when the event happened
		Metadata  EventMetadata `db:"metadata"`
		CreatedAt Timestamp     `db:"created_at"`
	}

	// SubscriptionBatch is the watermark left behind by a digest send.
	SubscriptionBatch struct {
		ID             string     `db:"id"`
		SubscriptionID string     `db:"list_subscription_id"`
		SentAt         *Timestamp `db:"sent_at"`
		LastEventAt    Timestamp  `db:"last_event_at"`
		CreatedAt      Timestamp  `db:"created_at"`
	}

	SubscriptionRepo interface {
		InsertSubscription(ctx context.Context, sub Subscription) (Subscription, error)
		// UnverifiedSubscription finds the pending subscription for the email on the list.
		UnverifiedSubscription(ctx context.Context, listID, email string) (Subscription, error)
		VerifiedSubscription(ctx context.Context, listID, email string) (Subscription, error)
		SubscriptionByVerificationToken(ctx context.Context, token string) (Subscription, error)
		MarkSubscriptionVerified(ctx context.Context, id string, at Timestamp) error
		DeleteSubscriptionByUnsubscribeToken(ctx context.Context, token string) error
		VerifiedSubscriptions(ctx context.Context) ([]Subscription, error)
	}

	// EventWindow selects a list's events from Since onwards.
	EventWindow struct {
		ListID    string
		Since     Timestamp
		Exclusive bool // Leave out events at exactly Since
	}

	EventRepo interface {
		InsertEvent(ctx context.Context, ev SubscriptionEvent) error
		// Events returns the events inside the window, oldest first.
		Events(ctx context.Context, w EventWindow) ([]SubscriptionEvent, error)
	}

	BatchRepo interface {
		// LatestBatch returns the newest batch for the subscription, filtered to rows
		// that have (sent) or have not (!sent) been marked as sent.
		LatestBatch(ctx context.Context, subscriptionID string, sent bool) (*SubscriptionBatch, error)
		InsertBatch(ctx context.Context, batch SubscriptionBatch) error
	}
)

// Verified reports whether the subscription's email has been confirmed.
func (s Subscription) Verified() bool {
	return s.VerifiedAt != nil
}

type EventType string

const (
	EventItemAdded     EventType = "item_added"
	EventItemRemoved   EventType = "item_removed"
	EventItemClaimed   EventType = "item_claimed"
	EventItemUnclaimed EventType = "item_unclaimed"
)

func (t EventType) Valid() bool {
	switch t {
	case EventItemAdded, EventItemRemoved, EventItemClaimed, EventItemUnclaimed:
		return true
	}

	return false
}

// EventMetadata is the free-form JSON attached to an event.
type EventMetadata map[string]string

const metaClaimedBy = "claimed_by"

// ClaimedMetadata builds the metadata recorded with a claim.
func ClaimedMetadata(claimedBy string) EventMetadata {
	return EventMetadata{metaClaimedBy: claimedBy}
}

// ClaimedBy returns the claimer's name, or nil if none was recorded.
func (m EventMetadata) ClaimedBy() *string {
	v, ok := m[metaClaimedBy]
	if !ok {
		return nil
	}

	return &v
}

func (m EventMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	byts, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("error encoding event metadata: %w", err)
	}

	return string(byts), nil
}

func (m *EventMetadata) Scan(src any) error {
	var byts []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		byts = []byte(v)
	case []byte:
		byts = v
	default:
		return fmt.Errorf("cannot scan %T into event metadata", src)
	}

	if err := json.Unmarshal(byts, m); err != nil {
		return fmt.Errorf("error decoding event metadata: %w", err)
	}

	return nil
}
