// Package subscriptions manages the email subscriptions to a list: double
// opt-in through a verification link, and one-click unsubscribe.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jdholdren/clearly/internal/clearly"
	clerrs "github.com/jdholdren/clearly/internal/errors"
	"github.com/jdholdren/clearly/internal/logger"
	"github.com/jdholdren/clearly/internal/mail"
)

const (
	VerificationWindow = 24 * time.Hour

	tokenLength = 32

	insertAttempts = 3
)

type Repo interface {
	clearly.SubscriptionRepo
	List(ctx context.Context, id string) (clearly.List, error)
}

type Service struct {
	repo   Repo
	mailer mail.Mailer
	links  clearly.Links
	now    func() time.Time
	token  func(n int) string
}

func NewService(repo Repo, mailer mail.Mailer, links clearly.Links) Service {
	return Service{
		repo:   repo,
		mailer: mailer,
		links:  links,
		now:    time.Now,
		token:  clearly.NewToken,
	}
}

// Subscribe starts a subscription to the list, emailing a verification link.
//
// A pending subscription that hasn't expired gets its link sent again rather
// than a new one. An address that is already verified is left alone.
func (s Service) Subscribe(ctx context.Context, listID, email string) error {
	email = strings.TrimSpace(email)
	if listID == "" || email == "" {
		return clerrs.E("Missing list_id or email", http.StatusBadRequest)
	}
	if !clearly.ValidEmail(email) {
		return clerrs.E("Invalid email format", http.StatusBadRequest, clerrs.Detail{Field: "email", Error: "invalid"})
	}
	ctx = logger.Ctx(ctx, slog.String("list_id", listID))

	list, err := s.repo.List(ctx, listID)
	if err != nil {
		return err
	}

	_, err = s.repo.VerifiedSubscription(ctx, listID, email)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "already subscribed")
		return nil
	case !errors.Is(err, clearly.ErrNotFound):
		return err
	}

	pending, err := s.repo.UnverifiedSubscription(ctx, listID, email)
	switch {
	case err == nil && pending.VerificationToken != nil && s.now().Before(pending.VerificationExpiresAt.Time):
		slog.InfoContext(ctx, "resending verification", "subscription_id", pending.ID)
		return s.sendVerification(ctx, email, list.Name, *pending.VerificationToken)
	case err != nil && !errors.Is(err, clearly.ErrNotFound):
		return err
	}

	// Retried in case of a token collision.
	var (
		sub         clearly.Subscription
		verifyToken string
	)
	for i := range insertAttempts {
		verifyToken = s.token(tokenLength)
		sub, err = s.repo.InsertSubscription(ctx, clearly.Subscription{
			ListID:                listID,
			Email:                 email,
			VerificationToken:     &verifyToken,
			UnsubscribeToken:      s.token(tokenLength),
			VerificationExpiresAt: clearly.At(s.now().Add(VerificationWindow)),
			CreatedAt:             clearly.At(s.now()),
		})
		if !errors.Is(err, clearly.ErrConflict) {
			break
		}
		slog.WarnContext(ctx, "subscription token collision", "attempt", i+1)
	}
	if errors.Is(err, clearly.ErrConflict) {
		return fmt.Errorf("error generating unique subscription tokens")
	}
	if err != nil {
		return fmt.Errorf("error creating subscription: %w", err)
	}
	slog.InfoContext(ctx, "subscription created", "subscription_id", sub.ID)

	return s.sendVerification(ctx, email, list.Name, verifyToken)
}

func (s Service) sendVerification(ctx context.Context, email, listName, token string) error {
	msg, err := mail.VerificationEmail(email, listName, s.links.Verify(token))
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("error sending verification email: %w", err)
	}

	return nil
}

// Verify confirms the subscription holding the token. Tokens are single use.
//
// Returns [clearly.ErrNotFound] for unknown or used tokens and
// [clearly.ErrExpired] once the verification window has passed.
func (s Service) Verify(ctx context.Context, token string) error {
	if token == "" {
		return clerrs.E("Missing verification token", http.StatusBadRequest)
	}

	sub, err := s.repo.SubscriptionByVerificationToken(ctx, token)
	if err != nil {
		return err
	}
	if sub.Verified() {
		return fmt.Errorf("subscription already verified: %w", clearly.ErrNotFound)
	}

	now := s.now()
	if !sub.VerificationExpiresAt.IsZero() && sub.VerificationExpiresAt.Before(now) {
		return fmt.Errorf("verification for %s: %w", sub.ID, clearly.ErrExpired)
	}

	if err := s.repo.MarkSubscriptionVerified(ctx, sub.ID, clearly.At(now)); err != nil {
		return fmt.Errorf("error verifying subscription: %w", err)
	}
	slog.InfoContext(ctx, "subscription verified", "subscription_id", sub.ID, "list_id", sub.ListID)

	return nil
}

// Unsubscribe deletes the subscription for good. Unknown tokens are not an error.
func (s Service) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return clerrs.E("Missing unsubscribe token", http.StatusBadRequest)
	}

	err := s.repo.DeleteSubscriptionByUnsubscribeToken(ctx, token)
	if errors.Is(err, clearly.ErrNotFound) {
		slog.InfoContext(ctx, "unsubscribe for unknown token")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error unsubscribing: %w", err)
	}

	return nil
}
