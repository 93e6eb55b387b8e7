// Clearly-API serves the wishlist: shared lists, claims, email subscriptions,
// and the digest trigger.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/clearly/internal/affiliate"
	"github.com/jdholdren/clearly/internal/api"
	"github.com/jdholdren/clearly/internal/clearly"
	"github.com/jdholdren/clearly/internal/lists"
	"github.com/jdholdren/clearly/internal/logger"
	"github.com/jdholdren/clearly/internal/mail"
	"github.com/jdholdren/clearly/internal/metadata"
	"github.com/jdholdren/clearly/internal/migrations"
	"github.com/jdholdren/clearly/internal/notify"
	"github.com/jdholdren/clearly/internal/sqlite"
	"github.com/jdholdren/clearly/internal/subscriptions"
	"github.com/jdholdren/clearly/internal/tracker"
)

type config struct {
	Port     int    `env:"PORT, default=4444"`
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	AppURL     string `env:"APP_URL, default=https://clearly.gift"`
	CorsOrigin string `env:"CORS_ORIGIN, default=https://clearly.gift"`

	BatchJobSecret string `env:"BATCH_JOB_SECRET"`
	AdminToken     string `env:"ADMIN_TOKEN"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM"`

	AmazonAffiliateTag string `env:"AMAZON_AFFILIATE_TAG"`
	TargetAffiliateID  string `env:"TARGET_AFFILIATE_ID"`
	WalmartAffiliateID string `env:"WALMART_AFFILIATE_ID"`
	EtsyAffiliateID    string `env:"ETSY_AFFILIATE_ID"`

	DigestWorkers           int  `env:"DIGEST_WORKERS, default=1"`
	DigestWatermarkFromSent bool `env:"DIGEST_WATERMARK_FROM_SENT, default=false"`

	MetadataCacheSize int `env:"METADATA_CACHE_SIZE, default=256"`
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

	if err := runServer(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg config) error {
	slog.Info("running", "port", cfg.Port, "database", cfg.Database, "app_url", cfg.AppURL)

	// Connect to the sqlite db
	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	var (
		repo       = sqlite.New(dbx)
		links      = clearly.Links{AppURL: cfg.AppURL}
		mailer     = mail.New(cfg.ResendAPIKey, cfg.MailFrom)
		normalizer = affiliate.NewNormalizer(affiliate.Config{
			Amazon:  cfg.AmazonAffiliateTag,
			Target:  cfg.TargetAffiliateID,
			Walmart: cfg.WalmartAffiliateID,
			Etsy:    cfg.EtsyAffiliateID,
		})
	)
	fetcher, err := metadata.NewFetcher(nil, cfg.MetadataCacheSize)
	if err != nil {
		return err
	}
	runner := notify.NewRunner(repo, mailer, links, notify.Options{
		Workers:           cfg.DigestWorkers,
		WatermarkFromSent: cfg.DigestWatermarkFromSent,
	})

	s := api.NewServer(
		api.ServerConfig{
			Port:           cfg.Port,
			CorsOrigin:     cfg.CorsOrigin,
			BatchJobSecret: cfg.BatchJobSecret,
			AdminToken:     cfg.AdminToken,
		},
		lists.NewService(repo, tracker.New(repo), normalizer),
		subscriptions.NewService(repo, mailer, links),
		runner,
		fetcher,
		links,
	)

	var g run.Group
	g.Add(func() error {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})
	runCtx, stop := context.WithCancel(ctx)
	g.Add(func() error {
		// Block until the process is told to stop
		<-runCtx.Done()
		return nil
	}, func(error) {
		stop()
	})

	return g.Run()
}
