// Package notify runs the digest job: for every verified subscription it
// collects the list's events since the last digest, emails a summary and
// moves the subscription's watermark forward.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/digest"
	"github.com/jdholdren/clearly/internal/logger"
	"github.com/jdholdren/clearly/internal/mail"
)

// Repo is the storage the runner reads from and writes watermarks to.
type Repo interface {
	VerifiedSubscriptions(ctx context.Context) ([]clearly.Subscription, error)
	LatestBatch(ctx context.Context, subscriptionID string, sent bool) (*clearly.SubscriptionBatch, error)
	Events(ctx context.Context, w clearly.EventWindow) ([]clearly.SubscriptionEvent, error)
	List(ctx context.Context, id string) (clearly.List, error)
	InsertBatch(ctx context.Context, batch clearly.SubscriptionBatch) error
}

const DefaultWindow = 30 * time.Minute

type Options struct {
	// Workers bounds how many subscriptions are processed at once. A subscription
	// is only ever handled by one worker per run.
	Workers int

	// WatermarkFromSent reads the window start from the latest sent batch,
	// excluding the event it ended on. Off, the lookup only considers batches
	// without a sent_at, which the runner itself never writes.
	WatermarkFromSent bool

	// How far back to look when a subscription has no usable watermark.
	DefaultWindow time.Duration

	// Caps the time spent on a single subscription. Zero means no limit.
	SubscriptionTimeout time.Duration
}

// Report tallies what happened to each subscription in a run.
type Report struct {
	Subscriptions int `json:"subscriptions"`
	Sent          int `json:"sent"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

type Runner struct {
	repo   Repo
	mailer mail.Mailer
	links  clearly.Links
	opts   Options
	now    func() time.Time

	// Held for the length of a run
	running sync.Mutex
}

func NewRunner(repo Repo, mailer mail.Mailer, links clearly.Links, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.DefaultWindow <= 0 {
		opts.DefaultWindow = DefaultWindow
	}

	return &Runner{
		repo:   repo,
		mailer: mailer,
		links:  links,
		opts:   opts,
		now:    time.Now,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

// Run processes every verified subscription once.
//
// Errors from individual subscriptions are logged and counted, never returned.
// An error means the run couldn't start: the subscriptions couldn't be loaded or
// another run is still going.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if !r.running.TryLock() {
		return Report{}, clearly.ErrRunInProgress
	}
	defer r.running.Unlock()

	subs, err := r.repo.VerifiedSubscriptions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("error fetching subscriptions: %w", err)
	}

	report := Report{Subscriptions: len(subs)}
	if len(subs) == 0 {
		slog.InfoContext(ctx, "no verified subscriptions found")
		return report, nil
	}

	slog.InfoContext(ctx, "starting digest run", "subscriptions", len(subs), "workers", r.opts.Workers)
	fallback := clearly.At(r.now().Add(-r.opts.DefaultWindow))

	// Each worker writes only its own slot.
	outcomes := make([]outcome, len(subs))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i] = r.process(ctx, sub, fallback)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		switch o {
		case outcomeSent:
			report.Sent++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	slog.InfoContext(ctx, "digest run completed",
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (r *Runner) process(ctx context.Context, sub clearly.Subscription, fallback clearly.Timestamp) outcome {
	ctx = logger.Ctx(ctx,
		slog.String("subscription_id", sub.ID),
		slog.String("list_id", sub.ListID),
	)
	if r.opts.SubscriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.SubscriptionTimeout)
		defer cancel()
	}

	window, span, err := r.window(ctx, sub, fallback)
	if err != nil {
		slog.ErrorContext(ctx, "error determining digest window", "error", err)
		return outcomeFailed
	}

	events, err := r.repo.Events(ctx, window)
	if err != nil {
		slog.ErrorContext(ctx, "error fetching events", "error", err)
		return outcomeFailed
	}
	if len(events) == 0 {
		slog.DebugContext(ctx, "no new events")
		return outcomeSkipped
	}

	list, err := r.repo.List(ctx, sub.ListID)
	if errors.Is(err, clearly.ErrNotFound) {
		slog.WarnContext(ctx, "list no longer exists, skipping")
		return outcomeSkipped
	}
	if err != nil {
		slog.ErrorContext(ctx, "error fetching list", "error", err)
		return outcomeFailed
	}

	html, err := digest.RenderSince(list.Name, digest.Group(events), r.links.List(list), r.links.Unsubscribe(sub.UnsubscribeToken), span)
	if err != nil {
		slog.ErrorContext(ctx, "error rendering digest", "error", err)
		return outcomeFailed
	}

	if err := r.mailer.Send(ctx, mail.Message{
		To:      sub.Email,
		Subject: digest.Subject(list.Name),
		HTML:    html,
	}); err != nil {
		// No batch row: the same events go out again next run.
		slog.ErrorContext(ctx, "error sending digest", "error", err)
		return outcomeFailed
	}

	sentAt := clearly.At(r.now())
	if err := r.repo.InsertBatch(ctx, clearly.SubscriptionBatch{
		SubscriptionID: sub.ID,
		SentAt:         &sentAt,
		LastEventAt:    events[len(events)-1].CreatedAt,
		CreatedAt:      sentAt,
	}); err != nil {
		// The email is out, so it still counts. Expect a duplicate next run.
		slog.ErrorContext(ctx, "digest sent but batch not recorded", "error", err)
	}

	slog.InfoContext(ctx, "digest sent", "events", len(events))
	return outcomeSent
}

// Also returns how far back the window reaches, zero when it starts at the
// previous batch.
func (r *Runner) window(ctx context.Context, sub clearly.Subscription, fallback clearly.Timestamp) (clearly.EventWindow, time.Duration, error) {
	w := clearly.EventWindow{ListID: sub.ListID, Since: fallback}

	batch, err := r.repo.LatestBatch(ctx, sub.ID, r.opts.WatermarkFromSent)
	if err != nil {
		return w, 0, fmt.Errorf("error fetching latest batch: %w", err)
	}
	if batch == nil {
		return w, r.opts.DefaultWindow, nil
	}

	w.Since = batch.LastEventAt
	w.Exclusive = r.opts.WatermarkFromSent
	return w, 0, nil
}
