// Command fetch downloads players.csv and per-player season history from the
// FPL API into the data directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/stitts-dev/ff-epl/internal/providers"
	"github.com/stitts-dev/ff-epl/pkg/config"
	"github.com/stitts-dev/ff-epl/pkg/logger"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.String("data-dir", "data", "directory to write CSV files into")
	fs.String("fpl-base-url", providers.DefaultBaseURL, "FPL API base URL")
	fs.Int("fetch-workers", 8, "concurrent history downloads")
	force := fs.Bool("force", false, "delete existing CSV files before fetching")
	skipHistory := fs.Bool("skip-history", false, "only write players.csv")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.LoadConfigWithFlags(fs)
	if err != nil {
		logrus.Errorf("Failed to load config: %v", err)
		return 1
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	entry := log.WithField("service", "fetch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := providers.NewFPLClient(providers.ClientConfig{
		BaseURL:          cfg.FPLBaseURL,
		RequestsPerSec:   float64(cfg.FPLRateLimit),
		Timeout:          cfg.ExternalAPITimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, entry.WithField("component", "fpl_client"), metrics.Default())

	result, err := providers.Sync(ctx, client, providers.SyncOptions{
		DataDir:     cfg.DataDir,
		Force:       *force,
		SkipHistory: *skipHistory,
		Workers:     cfg.FetchWorkers,
	}, entry)
	if errors.Is(err, providers.ErrDataExists) {
		entry.WithField("data_dir", cfg.DataDir).Error("Data already fetched; rerun with --force to replace it")
		return 1
	}
	if err != nil {
		entry.WithError(err).Error("Fetch failed")
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %d players to %s\n", result.Players, result.PlayersPath)
	if result.Removed > 0 {
		fmt.Fprintf(stdout, "Removed %d old files\n", result.Removed)
	}
	if h := result.History; h != nil {
		fmt.Fprintf(stdout, "History: %d stored, %d without past seasons, %d failed\n", h.Stored, h.Empty, len(h.Failures))
		for _, f := range h.Failures {
			fmt.Fprintf(stdout, "  %v\n", f)
		}
		if len(h.Failures) > 0 {
			return 1
		}
	}
	return 0
}
