package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/jdholdren/clearly/internal/clearly"
)

const (
	listNamespace = "-lst"
	itemNamespace = "-itm"
)

func (r Repo) InsertList(ctx context.Context, name, token string) (clearly.List, error) {
	const q = `INSERT INTO lists (id, name, token, created_at, updated_at)
	VALUES (:id, :name, :token, :created_at, :updated_at);`

	now := r.stamp()
	l := clearly.List{
		ID:        uuid.NewString() + listNamespace,
		Name:      name,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NamedExecContext(ctx, q, l)
	if isUniqueViolation(err) {
		return clearly.List{}, fmt.Errorf("list token already taken: %w", clearly.ErrConflict)
	}
	if err != nil {
		return clearly.List{}, fmt.Errorf("error inserting list: %s", err)
	}

	return r.List(ctx, l.ID)
}

func (r Repo) List(ctx context.Context, id string) (clearly.List, error) {
	const q = `SELECT * FROM lists WHERE id = ?;`

	l, err := get[clearly.List](ctx, r.db, q, id)
	if err != nil {
		return clearly.List{}, fmt.Errorf("error fetching list: %w", err)
	}

	return l, nil
}

func (r Repo) ListByToken(ctx context.Context, token string) (clearly.List, error) {
	const q = `SELECT * FROM lists WHERE token = ?;`

	l, err := get[clearly.List](ctx, r.db, q, token)
	if err != nil {
		return clearly.List{}, fmt.Errorf("error fetching list by token: %w", err)
	}

	return l, nil
}

func (r Repo) IncrementListViews(ctx context.Context, id string) error {
	const q = `UPDATE lists SET view_count = view_count + 1 WHERE id = ?;`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("error incrementing list views: %s", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return clearly.ErrNotFound
	}

	return nil
}

func (r Repo) InsertItem(ctx context.Context, item clearly.NewItem) (clearly.Item, error) {
	const q = `INSERT INTO items (id, list_id, name, description, url, formatted_url, created_at, updated_at)
	VALUES (:id, :list_id, :name, :description, :url, :formatted_url, :created_at, :updated_at);`

	now := r.stamp()
	i := clearly.Item{
		ID:           uuid.NewString() + itemNamespace,
		ListID:       item.ListID,
		Name:         item.Name,
		Description:  nullable(item.Description),
		URL:          nullable(item.URL),
		FormattedURL: nullable(item.FormattedURL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := r.db.NamedExecContext(ctx, q, i); err != nil {
		return clearly.Item{}, fmt.Errorf("error inserting item: %s", err)
	}

	return r.Item(ctx, i.ID)
}

func (r Repo) Item(ctx context.Context, id string) (clearly.Item, error) {
	const q = `SELECT * FROM items WHERE id = ?;`

	i, err := get[clearly.Item](ctx, r.db, q, id)
	if err != nil {
		return clearly.Item{}, fmt.Errorf("error fetching item: %w", err)
	}

	return i, nil
}

func (r Repo) ListItems(ctx context.Context, listID string) ([]clearly.Item, error) {
	const q = `SELECT * FROM items WHERE list_id = ? ORDER BY created_at ASC, rowid ASC;`

	items := []clearly.Item{}
	if err := r.db.SelectContext(ctx, &items, q, listID); err != nil {
		return nil, fmt.Errorf("error selecting items: %s", err)
	}

	return items, nil
}

func (r Repo) DeleteItem(ctx context.Context, id string) error {
	const q = `DELETE FROM items WHERE id = ?;`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("error deleting item: %s", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return clearly.ErrNotFound
	}

	return nil
}

func (r Repo) ClaimItem(ctx context.Context, id, claimedBy string) error {
	now := r.stamp()
	return r.updateItem(ctx, id,
		sq.Update("items").
			SetMap(map[string]any{
				"claimed_at": now,
				"claimed_by": claimedBy,
				"updated_at": now,
			}).
			Where(sq.Eq{"id": id, "claimed_at": nil}),
	)
}

func (r Repo) UnclaimItem(ctx context.Context, id string) error {
	return r.updateItem(ctx, id,
		sq.Update("items").
			SetMap(map[string]any{
				"claimed_at": nil,
				"claimed_by": nil,
				"updated_at": r.stamp(),
			}).
			Where(sq.Eq{"id": id}).
			Where(sq.NotEq{"claimed_at": nil}),
	)
}

// Runs a guarded update of a single item. When nothing matched, tells apart a
// missing item from one whose state failed the guard.
func (r Repo) updateItem(ctx context.Context, id string, b sq.UpdateBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating item: %s", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := r.Item(ctx, id); err != nil {
		return err
	}

	return fmt.Errorf("item %s is not in a state to change: %w", id, clearly.ErrConflict)
}

func (r Repo) IncrementItemClicks(ctx context.Context, id string) error {
	const q = `UPDATE items SET click_count = click_count + 1 WHERE id = ?;`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("error incrementing item clicks: %s", err)
	}
	if ok, err := affectedOne(res); err != nil {
		return err
	} else if !ok {
		return clearly.ErrNotFound
	}

	return nil
}
