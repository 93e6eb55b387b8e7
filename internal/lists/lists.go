// Package lists holds the item mutations of a wishlist. Every change is
// reported to the event tracker so subscribers hear about it in their digest.
package lists

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goaway "github.com/TwiN/go-away"
	"github.com/sym01/htmlsanitizer"

	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/logger"
)

const (
	// Share tokens are long enough to be unguessable.
	tokenLength = 64

	defaultClaimer = "Anonymous"

	maxNameLength        = 200
	maxDescriptionLength = 2000
)

// EventTracker records item changes. Its errors are informational only.
//
// Calls are made once the change is committed, on a context that outlives the
// request.
type EventTracker interface {
	ItemAdded(ctx context.Context, listID, itemID, itemName string) error
	ItemRemoved(ctx context.Context, listID, itemID, itemName string) error
	ItemClaimed(ctx context.Context, listID, itemID, itemName, claimedBy string) error
	ItemUnclaimed(ctx context.Context, listID, itemID, itemName string) error
}

type URLNormalizer interface {
	Normalize(raw string) string
}

type Service struct {
	repo       clearly.ListRepo
	tracker    EventTracker
	normalizer URLNormalizer
	sanitizer  *htmlsanitizer.HTMLSanitizer
}

func NewService(repo clearly.ListRepo, tracker EventTracker, normalizer URLNormalizer) Service {
	return Service{
		repo:       repo,
		tracker:    tracker,
		normalizer: normalizer,
		sanitizer:  htmlsanitizer.NewHTMLSanitizer(),
	}
}

func (s Service) CreateList(ctx context.Context, name string) (clearly.List, error) {
	name = strings.TrimSpace(name)
	if err := validateName("name", name); err != nil {
		return clearly.List{}, err
	}

	// Retried in case of a token collision.
	const attempts = 3
	for range attempts {
		l, err := s.repo.InsertList(ctx, name, clearly.NewToken(tokenLength))
		if errors.Is(err, clearly.ErrConflict) {
			continue
		}
		if err != nil {
			return clearly.List{}, err
		}

		return l, nil
	}

	return clearly.List{}, fmt.Errorf("error generating a unique list token")
}

// PublicList is what someone following a share link gets to see.
type PublicList struct {
	clearly.List
	Items []clearly.Item `json:"items"`
}

// PublicList looks up a list by its share token, counting the view.
func (s Service) PublicList(ctx context.Context, token string) (PublicList, error) {
	l, err := s.repo.ListByToken(ctx, token)
	if err != nil {
		return PublicList{}, err
	}
	items, err := s.repo.ListItems(ctx, l.ID)
	if err != nil {
		return PublicList{}, err
	}

	if err := s.repo.IncrementListViews(ctx, l.ID); err != nil {
		slog.ErrorContext(ctx, "error counting list view", "list_id", l.ID, "error", err)
	}

	return PublicList{List: l, Items: items}, nil
}

type AddItemArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (s Service) AddItem(ctx context.Context, listID string, args AddItemArgs) (clearly.Item, error) {
	args.Name = strings.TrimSpace(args.Name)
	args.URL = strings.TrimSpace(args.URL)
	if err := validateName("name", args.Name); err != nil {
		return clearly.Item{}, err
	}
	if len(args.Description) > maxDescriptionLength {
		return clearly.Item{}, clerrs.E("description too long", http.StatusUnprocessableEntity)
	}

	if _, err := s.repo.List(ctx, listID); err != nil {
		return clearly.Item{}, err
	}

	desc, err := s.sanitizer.SanitizeString(args.Description)
	if err != nil {
		return clearly.Item{}, clerrs.E(fmt.Errorf("error sanitizing description: %s", err), http.StatusBadRequest)
	}

	nItem := clearly.NewItem{
		ListID:      listID,
		Name:        args.Name,
		Description: desc,
		URL:         args.URL,
	}
	if args.URL != "" {
		nItem.FormattedURL = s.normalizer.Normalize(args.URL)
	}

	item, err := s.repo.InsertItem(ctx, nItem)
	if err != nil {
		return clearly.Item{}, err
	}

	_ = s.tracker.ItemAdded(context.WithoutCancel(ctx), item.ListID, item.ID, item.Name)
	return item, nil
}

func (s Service) RemoveItem(ctx context.Context, itemID string) error {
	item, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	_ = s.tracker.ItemRemoved(context.WithoutCancel(ctx), item.ListID, item.ID, item.Name)
	return nil
}

// ClaimItem marks an item on the shared list as being bought. An empty name
// claims anonymously.
//
// Returns [clearly.ErrConflict] if someone got there first.
func (s Service) ClaimItem(ctx context.Context, token, itemID, claimedBy string) (clearly.Item, error) {
	claimedBy = strings.TrimSpace(claimedBy)
	if claimedBy == "" {
		claimedBy = defaultClaimer
	}
	if err := validateName("claimed_by", claimedBy); err != nil {
		return clearly.Item{}, err
	}

	item, err := s.sharedItem(ctx, token, itemID)
	if err != nil {
		return clearly.Item{}, err
	}
	ctx = logger.Ctx(ctx, slog.String("list_id", item.ListID), slog.String("item_id", item.ID))

	if err := s.repo.ClaimItem(ctx, item.ID, claimedBy); err != nil {
		return clearly.Item{}, err
	}
	slog.InfoContext(ctx, "item claimed")

	_ = s.tracker.ItemClaimed(context.WithoutCancel(ctx), item.ListID, item.ID, item.Name, claimedBy)
	return s.repo.Item(ctx, item.ID)
}

func (s Service) UnclaimItem(ctx context.Context, token, itemID string) (clearly.Item, error) {
	item, err := s.sharedItem(ctx, token, itemID)
	if err != nil {
		return clearly.Item{}, err
	}

	if err := s.repo.UnclaimItem(ctx, item.ID); err != nil {
		return clearly.Item{}, err
	}

	_ = s.tracker.ItemUnclaimed(context.WithoutCancel(ctx), item.ListID, item.ID, item.Name)
	return s.repo.Item(ctx, item.ID)
}

// VisitItem counts a click-through and returns where to send the visitor.
func (s Service) VisitItem(ctx context.Context, itemID string) (string, error) {
	item, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return "", err
	}
	dest := item.Destination()
	if dest == "" {
		return "", fmt.Errorf("item has no link: %w", clearly.ErrNotFound)
	}

	if err := s.repo.IncrementItemClicks(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "error counting item click", "item_id", item.ID, "error", err)
	}

	return dest, nil
}

// Items can only be claimed through the list they belong to.
func (s Service) sharedItem(ctx context.Context, token, itemID string) (clearly.Item, error) {
	l, err := s.repo.ListByToken(ctx, token)
	if err != nil {
		return clearly.Item{}, err
	}
	item, err := s.repo.Item(ctx, itemID)
	if err != nil {
		return clearly.Item{}, err
	}
	if item.ListID != l.ID {
		return clearly.Item{}, fmt.Errorf("item not on list: %w", clearly.ErrNotFound)
	}

	return item, nil
}

func validateName(field, v string) error {
	switch {
	case v == "":
		return clerrs.E("missing "+field, http.StatusBadRequest, clerrs.Detail{Field: field, Error: "required"})
	case len(v) > maxNameLength:
		return clerrs.E(field+" too long", http.StatusUnprocessableEntity, clerrs.Detail{Field: field, Error: "too long"})
	case goaway.IsProfane(v):
		return clerrs.E("profanity detected in "+field, http.StatusUnprocessableEntity, clerrs.Detail{Field: field, Error: "profane"})
	}

	return nil
}
