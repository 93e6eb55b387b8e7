package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 5
	DefaultTimeout     = 10 * time.Second

	userAgent = "Mozilla/5.0 (compatible; ClearlyGiftLinkChecker/1.0)"
)

// Result is the outcome of requesting a link.
type Result struct {
	Link
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r Result) OK() bool {
	return r.Error == ""
}

type Checker struct {
	client      *http.Client
	concurrency int
	attempts    uint64
}

// NewChecker builds a checker that fetches with the given client. A nil client
// gets one with [DefaultTimeout]; redirects are followed either way.
func NewChecker(client *http.Client, concurrency int) Checker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return Checker{
		client:      client,
		concurrency: concurrency,
		attempts:    2,
	}
}

// CheckLive requests every link, a few at a time, and returns the results in
// the same order as links. Any final status of 400 or above is a failure.
func (c Checker) CheckLive(ctx context.Context, links []Link) []Result {
	results := make([]Result, len(links))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, l := range links {
		g.Go(func() error {
			results[i] = c.check(ctx, l)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Connection errors get another go. A status code is an answer and is not retried.
func (c Checker) check(ctx context.Context, l Link) Result {
	res := Result{Link: l}

	b := retry.WithMaxRetries(c.attempts, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		code, err := c.do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		res.StatusCode = code
		return nil
	})

	var nErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &nErr) && nErr.Timeout():
		res.Error = "Timeout"
	case err != nil:
		res.Error = err.Error()
	case res.StatusCode >= http.StatusBadRequest:
		res.Error = fmt.Sprintf("HTTP %d", res.StatusCode)
	}
	if res.Error != "" {
		slog.DebugContext(ctx, "link failed", "link", l.String(), "error", res.Error)
	}

	return res
}

func (c Checker) do(req *http.Request) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	return resp.StatusCode, nil
}
