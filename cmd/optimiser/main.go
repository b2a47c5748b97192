// Command optimiser picks the best starting XI from a players.csv export.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/internal/players"
	"github.com/stitts-dev/ff-epl/internal/providers"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/internal/solver/backends"
	"github.com/stitts-dev/ff-epl/pkg/config"
	"github.com/stitts-dev/ff-epl/pkg/logger"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

const (
	exitOK         = 0
	exitError      = 1
	exitNotOptimal = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("optimiser", pflag.ContinueOnError)
	fs.String("data-dir", "data", "directory holding players.csv")
	fs.String("players-file", "players.csv", "players file name inside the data directory")
	fs.Bool("live-availability", false, "overlay availability from the FPL API before solving")
	lpPath := fs.String("write-lp", "", "write the model in LP format to this path")
	config.RegisterRuleFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	cfg, err := config.LoadConfigWithFlags(fs)
	if err != nil {
		logrus.Errorf("Failed to load config: %v", err)
		return exitError
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	entry := log.WithField("service", "optimiser")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := loadPool(ctx, cfg, entry)
	if err != nil {
		entry.WithError(err).Error("Failed to load players")
		return exitError
	}

	backend, err := backends.New(cfg)
	if err != nil {
		entry.WithError(err).Error("Solver backend unavailable; install highs or pass --solver-backend=bnb")
		return exitError
	}
	entry.WithField("backend", backend.Name()).Debug("Using solver backend")

	engine, err := optimizer.NewEngine(optimizer.RulesFromConfig(cfg), backend,
		optimizer.WithSolveOptions(solver.Options{
			Timeout:  cfg.SolverTimeout,
			Verbose:  cfg.SolverVerbose,
			MaxNodes: cfg.SolverMaxNodes,
		}),
		optimizer.WithMetrics(metrics.Default()),
	)
	if err != nil {
		entry.WithError(err).Error("Invalid squad rules")
		return exitError
	}

	r := engine.NewRun(cfg.Metric)
	if err := engine.Build(r, pool); err != nil {
		entry.WithError(err).Error("Failed to build model")
		return exitError
	}
	if *lpPath != "" {
		if err := writeLP(*lpPath, r.Model); err != nil {
			entry.WithError(err).Error("Failed to write LP file")
			return exitError
		}
		entry.WithField("path", *lpPath).Info("Wrote model")
	}
	if err := engine.Solve(ctx, r); err != nil {
		entry.WithError(err).Error("Solver failed")
		return exitError
	}
	if err := engine.Extract(r); err != nil {
		entry.WithError(err).Error("Solution failed validation")
		return exitError
	}

	printRoster(stdout, r)
	if r.Status() != solver.Optimal {
		return exitNotOptimal
	}
	return exitOK
}

func loadPool(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*models.PlayerPool, error) {
	opts := players.LoadOptions{
		Metric:           cfg.Metric,
		NowCostDivisor:   cfg.NowCostDivisor,
		DefaultAvailable: cfg.AssumeAvailable,
	}
	path := filepath.Join(cfg.DataDir, cfg.PlayersFile)
	pool, err := players.LoadFile(path, opts)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"path": path, "players": pool.Len()}).Info("Loaded players")

	if !cfg.LiveAvailability {
		return pool, nil
	}
	client := providers.NewFPLClient(providers.ClientConfig{
		BaseURL:          cfg.FPLBaseURL,
		RequestsPerSec:   float64(cfg.FPLRateLimit),
		Timeout:          cfg.ExternalAPITimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, log.WithField("component", "fpl_client"), metrics.Default())
	overrides, err := providers.LiveAvailability(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("live availability: %w", err)
	}
	pool, unknown := players.ApplyAvailability(pool, overrides)
	if len(unknown) > 0 {
		log.WithField("count", len(unknown)).Warn("FPL players missing from players.csv; refetch the data")
	}
	return pool, nil
}

func writeLP(path string, m *optimizer.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.LP.WriteLP(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printRoster(w io.Writer, r *optimizer.Run) {
	roster := r.Roster
	fmt.Fprintf(w, "Status: %s\n", roster.Status)
	if !roster.Feasible {
		fmt.Fprintln(w, "No lineup satisfies the rules.")
		return
	}

	order := make(map[models.Position]int, len(models.Positions))
	for i, pos := range models.Positions {
		order[pos] = i
	}
	picked := append([]models.PlayerRecord(nil), roster.Players...)
	sort.SliceStable(picked, func(i, j int) bool {
		return order[picked[i].Position] < order[picked[j].Position]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "POS\tPLAYER\tCLUB\tCOST\t%s\n", roster.Metric)
	for _, p := range picked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%g\n", p.Position, p.Name, p.Club, p.Cost, p.Metrics[roster.Metric])
	}
	tw.Flush()

	fmt.Fprintf(w, "\nTotal %s: %g\n", roster.Metric, roster.TotalMetric)
	fmt.Fprintf(w, "Starting XI cost: %.1f\n", roster.TotalCost)
	fmt.Fprintf(w, "Bench reserve: %.1f\n", roster.BenchReserve)
	fmt.Fprintf(w, "Solved in %s (%d nodes)\n", r.Duration().Round(time.Millisecond), r.Result.Nodes)
}
