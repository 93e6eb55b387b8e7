// Clearly-Trigger calls the api's digest endpoint on a cron schedule.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/clearly/internal/logger"
	"github.com/jdholdren/clearly/internal/trigger"
)

type config struct {
	TriggerURL     string `env:"TRIGGER_URL, default=http://localhost:4444/api/jobs/digests"`
	BatchJobSecret string `env:"BATCH_JOB_SECRET, required"`
	CronSpec       string `env:"CRON_SPEC"`

	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	// Fire once and exit instead of staying on the schedule.
	Once bool `env:"TRIGGER_ONCE, default=false"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelInfo))

	if cfg.CronSpec == "" {
		cfg.CronSpec = trigger.DefaultSpec
	}
	t := trigger.New(nil, cfg.TriggerURL, cfg.BatchJobSecret)

	if cfg.Once {
		resp, err := t.Fire(ctx)
		if err != nil {
			slog.Error("error triggering digests", "error", err)
			os.Exit(1)
		}
		slog.Info("triggered digests", "message", resp.Message, "sent", resp.Sent)
		return
	}

	if err := t.Start(ctx, cfg.CronSpec); err != nil {
		log.Fatalf("error starting trigger: %s", err)
	}
	slog.Info("trigger scheduled", "spec", cfg.CronSpec, "url", cfg.TriggerURL)

	<-ctx.Done()
	t.Stop()
}
