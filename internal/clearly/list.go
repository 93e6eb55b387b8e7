package clearly

import (
	"context"
)

type (
	// List is a named collection of wishlist items, shared publicly by its token.
	List struct {
		ID        string    `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		Token     string    `db:"token" json:"token"`
		ViewCount int       `db:"view_count" json:"view_count"`
		CreatedAt Timestamp `db:"created_at" json:"created_at"`
		UpdatedAt Timestamp `db:"updated_at" json:"updated_at"`
	}

	// Item is a single wishlist entry.
	Item struct {
		ID           string     `db:"id" json:"id"`
		ListID       string     `db:"list_id" json:"list_id"`
		Name         string     `db:"name" json:"name"`
		Description  *string    `db:"description" json:"description,omitempty"`
		URL          *string    `db:"url" json:"url,omitempty"`
		FormattedURL *string    `db:"formatted_url" json:"formatted_url,omitempty"`
		ClaimedAt    *Timestamp `db:"claimed_at" json:"claimed_at,omitempty"`
		ClaimedBy    *string    `db:"claimed_by" json:"claimed_by,omitempty"`
		ClickCount   int        `db:"click_count" json:"click_count"`
		CreatedAt    Timestamp  `db:"created_at" json:"created_at"`
		UpdatedAt    Timestamp  `db:"updated_at" json:"updated_at"`
	}

	// NewItem holds what's needed to insert an item.
	NewItem struct {
		ListID       string
		Name         string
		Description  string
		URL          string
		FormattedURL string
	}

	ListRepo interface {
		InsertList(ctx context.Context, name, token string) (List, error)
		List(ctx context.Context, id string) (List, error)
		ListByToken(ctx context.Context, token string) (List, error)
		IncrementListViews(ctx context.Context, id string) error
		InsertItem(ctx context.Context, item NewItem) (Item, error)
		Item(ctx context.Context, id string) (Item, error)
		ListItems(ctx context.Context, listID string) ([]Item, error)
		DeleteItem(ctx context.Context, id string) error
		// ClaimItem marks the item claimed only if it is currently unclaimed.
		// Returns ErrConflict if the item was already claimed.
		ClaimItem(ctx context.Context, id, claimedBy string) error
		UnclaimItem(ctx context.Context, id string) error
		IncrementItemClicks(ctx context.Context, id string) error
	}
)

// Claimed reports whether someone has claimed the item.
func (i Item) Claimed() bool {
	return i.ClaimedAt != nil
}

// Destination is the link a visitor should be sent to, preferring the normalized one.
func (i Item) Destination() string {
	if i.FormattedURL != nil && *i.FormattedURL != "" {
		return *i.FormattedURL
	}
	if i.URL != nil {
		return *i.URL
	}

	return ""
}
