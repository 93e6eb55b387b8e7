// Clearly-Worker sends the digest emails on a temporal schedule.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/logger"
	"github.com/jdholdren/clearly/internal/mail"
	"github.com/jdholdren/clearly/internal/migrations"
	"github.com/jdholdren/clearly/internal/notify"
	"github.com/jdholdren/clearly/internal/sqlite"
	digestworker "github.com/jdholdren/clearly/internal/worker"
)

type config struct {
	Database         string `env:"DATABASE, required"`
	TemporalHostPort string `env:"TEMPORAL_HOST_PORT, required"`

	LoggerFormat   string        `env:"LOGGER_FORMAT, default=text"`
	DigestInterval time.Duration `env:"DIGEST_INTERVAL, default=30m"`

	AppURL       string `env:"APP_URL, default=https://clearly.gift"`
	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM"`

	DigestWorkers           int  `env:"DIGEST_WORKERS, default=1"`
	DigestWatermarkFromSent bool `env:"DIGEST_WATERMARK_FROM_SENT, default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	l := logger.New(os.Stdout, cfg.LoggerFormat, slog.LevelInfo)
	slog.SetDefault(l)

	// Connect to the sqlite db
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}

	// Retry until temporal is ready
	var c client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		cli, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHostPort,
			Logger:   temporallog.NewStructuredLogger(l),
		})
		if err != nil {
			slog.Warn("temporal not ready", "error", err)
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer c.Close()

	if err := digestworker.EnsureDefaultNamespace(ctx, c.WorkflowService()); err != nil {
		log.Fatalln("Unable to ensure namespace:", err)
	}

	runner := notify.NewRunner(
		sqlite.New(dbx),
		mail.New(cfg.ResendAPIKey, cfg.MailFrom),
		clearly.Links{AppURL: cfg.AppURL},
		notify.Options{
			Workers:           cfg.DigestWorkers,
			WatermarkFromSent: cfg.DigestWatermarkFromSent,
		},
	)

	w, err := digestworker.NewWorker(ctx, runner, c, cfg.DigestInterval)
	if err != nil {
		log.Fatalln("Unable to create worker:", err)
	}

	slog.Info("starting worker", "task_queue", digestworker.TaskQueue, "interval", cfg.DigestInterval)
	if err := w.Run(workerInterrupt(ctx)); err != nil {
		log.Fatalln("Unable to start worker:", err)
	}
}

// Adapts the signal context to what the worker listens on.
func workerInterrupt(ctx context.Context) <-chan any {
	ch := make(chan any)
	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch
}
