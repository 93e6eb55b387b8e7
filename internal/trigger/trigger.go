// Package trigger calls the digest endpoint on a cron schedule, for deployments
// that don't run the temporal worker.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"
)

const (
	// Every 30 minutes, matching the digest window.
	DefaultSpec = "*/30 * * * *"

	fireTimeout = 5 * time.Minute
)

// Response is the body the digest endpoint answers with.
type Response struct {
	Message string `json:"message"`
	Sent    int    `json:"sent"`
}

type Trigger struct {
	client *http.Client
	url    string
	secret string

	cron    *cron.Cron
	backoff func() retry.Backoff
}

func New(client *http.Client, url, secret string) *Trigger {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	return &Trigger{
		client: client,
		url:    url,
		secret: secret,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
		},
	}
}

// Start fires on every tick of spec until ctx is done or Stop is called.
func (t *Trigger) Start(ctx context.Context, spec string) error {
	if _, err := t.cron.AddFunc(spec, func() { t.tick(ctx) }); err != nil {
		return fmt.Errorf("error scheduling %q: %w", spec, err)
	}
	t.cron.Start()

	return nil
}

// Stop waits for a running fire to finish.
func (t *Trigger) Stop() {
	<-t.cron.Stop().Done()
}

func (t *Trigger) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fireTimeout)
	defer cancel()

	resp, err := t.Fire(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "error triggering digests", "error", err)
		return
	}
	slog.InfoContext(ctx, "triggered digests", "message", resp.Message, "sent", resp.Sent)
}

// Fire makes one call to the digest endpoint. Connection errors and gateway
// failures are retried; an overlapping run is not an error.
func (t *Trigger) Fire(ctx context.Context) (Response, error) {
	var out Response
	err := retry.Do(ctx, t.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %s", err)
		}
		req.Header.Set("Authorization", "Bearer "+t.secret)

		resp, err := t.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("error decoding response: %s", err)
			}
			return nil
		case http.StatusConflict:
			out = Response{Message: "Digest run already in progress"}
			return nil
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return retry.RetryableError(fmt.Errorf("digest endpoint unavailable: %s", resp.Status))
		default:
			return fmt.Errorf("unexpected response from digest endpoint: %s", resp.Status)
		}
	})
	if err != nil {
		return Response{}, err
	}

	return out, nil
}
