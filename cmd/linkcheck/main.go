// Clearly-Linkcheck reports suspicious and broken links in the gift guides.
//
// By default only the static rules run. Set LINKCHECK_LIVE to also request
// every link.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/clearly/internal/linkcheck"
	"github.com/jdholdren/clearly/internal/logger"
)

type config struct {
	GuidesDir   string        `env:"GUIDES_DIR, default=content/guides"`
	Live        bool          `env:"LINKCHECK_LIVE, default=false"`
	Concurrency int           `env:"LINKCHECK_CONCURRENCY, default=5"`
	Timeout     time.Duration `env:"LINKCHECK_TIMEOUT, default=10s"`

	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, slog.LevelWarn))

	failed, err := check(ctx, cfg)
	if err != nil {
		slog.Error("error checking links", "error", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

// Prints a report to stdout. Returns true if any link needs attention.
func check(ctx context.Context, cfg config) (bool, error) {
	links, err := linkcheck.Scan(os.DirFS(cfg.GuidesDir), ".")
	if err != nil {
		return false, err
	}
	fmt.Printf("Found %d links in %s\n\n", len(links), cfg.GuidesDir)

	var issues int
	for _, l := range links {
		found := linkcheck.Analyze(l)
		if len(found) == 0 {
			continue
		}
		issues++
		fmt.Printf("%s %q\n", l, l.Text)
		for _, issue := range found {
			fmt.Printf("   %s\n", issue)
		}
	}
	fmt.Printf("\n%d of %d links have known issues\n", issues, len(links))

	if !cfg.Live {
		return issues > 0, nil
	}

	checker := linkcheck.NewChecker(&http.Client{Timeout: cfg.Timeout}, cfg.Concurrency)
	var broken int
	for _, res := range checker.CheckLive(ctx, links) {
		if res.OK() {
			continue
		}
		broken++
		fmt.Printf("%s\n   %s\n", res.Link, res.Error)
	}
	fmt.Printf("\n%d of %d links are broken\n", broken, len(links))

	return issues > 0 || broken > 0, nil
}
