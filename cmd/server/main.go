package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/api"
	"github.com/stitts-dev/ff-epl/internal/api/handlers"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/internal/players"
	"github.com/stitts-dev/ff-epl/internal/providers"
	"github.com/stitts-dev/ff-epl/internal/services"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/internal/solver/backends"
	"github.com/stitts-dev/ff-epl/pkg/config"
	"github.com/stitts-dev/ff-epl/pkg/database"
	"github.com/stitts-dev/ff-epl/pkg/logger"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	entry := log.WithField("service", "ff-epl")
	m := metrics.Default()

	rules := optimizer.RulesFromConfig(cfg)
	if err := rules.Validate(); err != nil {
		entry.Fatalf("Invalid squad rules: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		entry.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	backend, err := backends.New(cfg)
	if err != nil {
		entry.Fatalf("Solver backend unavailable (set SOLVER_BACKEND=bnb to use the built-in solver): %v", err)
	}
	entry.WithField("backend", backend.Name()).Info("Using solver backend")

	runStore := services.NewRunStore(db.DB, entry.WithField("component", "run_store"))
	if err := runStore.Migrate(); err != nil {
		entry.Fatalf("Failed to migrate run history: %v", err)
	}

	deps := api.Dependencies{
		Solver: backend,
		Optimise: handlers.OptimiseConfig{
			Rules:  rules,
			Metric: cfg.Metric,
			SolveOptions: solver.Options{
				Timeout:  cfg.SolverTimeout,
				Verbose:  cfg.SolverVerbose,
				MaxNodes: cfg.SolverMaxNodes,
			},
		},
		Runs:        runStore,
		DB:          db,
		Metrics:     m,
		Logger:      log,
		CORSOrigins: cfg.CorsOrigins,
	}

	// Redis is optional; without it every request solves
	var flusher services.Flusher
	if cfg.RedisURL != "" {
		redisClient, err := services.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			entry.WithError(err).Warn("Redis unavailable, roster cache disabled")
		} else {
			defer redisClient.Close()
			cache := services.NewRedisRosterCache(redisClient, cfg.CacheTTL, entry.WithField("component", "roster_cache"), m)
			deps.Cache = cache
			deps.CachePing = cache
			flusher = cache
		}
	}

	// Player pool
	holder := services.NewPoolHolder(poolSource(cfg, entry, m), entry.WithField("component", "pool"), m)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.ExternalAPITimeout+30*time.Second)
	if err := holder.Refresh(loadCtx); err != nil {
		entry.WithError(err).Warn("Starting without a player pool; /ready reports not_ready until a refresh succeeds")
	}
	cancelLoad()
	deps.Pools = holder

	if cfg.EnableBackgroundJobs {
		dataFetcher := services.NewDataFetcherService(holder, flusher, cfg.DataFetchSchedule, entry.WithField("component", "data_fetcher"))
		if err := dataFetcher.Start(); err != nil {
			entry.Errorf("Failed to start data fetcher: %v", err)
		} else {
			defer dataFetcher.Stop()
			deps.Jobs = dataFetcher
		}
	}

	router := api.NewRouter(deps)

	// Log all registered routes
	entry.Info("=== REGISTERED ROUTES ===")
	for _, route := range router.Routes() {
		entry.Infof("%s %s", route.Method, route.Path)
	}
	entry.Info("=========================")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SolverTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		entry.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	entry.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		entry.Errorf("Server forced to shutdown: %v", err)
	}

	entry.Info("Server exited")
}

// poolSource reads players.csv when it exists and falls back to the live
// FPL API otherwise.
func poolSource(cfg *config.Config, log *logrus.Entry, m *metrics.Manager) services.PoolSource {
	opts := players.LoadOptions{
		Metric:           cfg.Metric,
		NowCostDivisor:   cfg.NowCostDivisor,
		DefaultAvailable: cfg.AssumeAvailable,
	}
	client := providers.NewFPLClient(providers.ClientConfig{
		BaseURL:          cfg.FPLBaseURL,
		RequestsPerSec:   float64(cfg.FPLRateLimit),
		Timeout:          cfg.ExternalAPITimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, log.WithField("component", "fpl_client"), m)

	path := filepath.Join(cfg.DataDir, cfg.PlayersFile)
	if _, err := os.Stat(path); err != nil {
		log.WithField("path", path).Info("No players file, loading the pool from the FPL API")
		return &services.LivePoolSource{Client: client, Options: opts}
	}

	source := &services.FilePoolSource{Path: path, Options: opts}
	if cfg.LiveAvailability {
		source.Live = client
	}
	return source
}
