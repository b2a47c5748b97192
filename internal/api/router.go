// Package api wires the HTTP routes of the optimiser service.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/api/handlers"
	"github.com/stitts-dev/ff-epl/internal/api/middleware"
	"github.com/stitts-dev/ff-epl/internal/services"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
	"github.com/stitts-dev/ff-epl/pkg/utils"
)

// Dependencies are the collaborators behind the routes. Cache, CachePing,
// Runs, DB and Jobs are optional.
type Dependencies struct {
	Pools       handlers.PoolProvider
	Solver      solver.Solver
	Optimise    handlers.OptimiseConfig
	Cache       services.RosterCache
	CachePing   handlers.Pinger
	Runs        handlers.RunRecorder
	DB          handlers.HealthChecker
	Jobs        handlers.JobRunner
	Metrics     *metrics.Manager
	Logger      *logrus.Logger
	CORSOrigins []string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger, deps.Metrics), middleware.CORS(deps.CORSOrigins))

	entry := logrus.NewEntry(deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Pools, deps.DB, deps.CachePing)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	v1 := router.Group("/api/v1")
	SetupRoutes(v1, deps, entry)
	return router
}

// SetupRoutes registers the /api/v1 routes on group.
func SetupRoutes(group *gin.RouterGroup, deps Dependencies, logger *logrus.Entry) {
	optimiseHandler := handlers.NewOptimiseHandler(
		deps.Pools,
		deps.Solver,
		deps.Optimise,
		deps.Cache,
		deps.Runs,
		deps.Metrics,
		logger.WithField("component", "optimise_handler"),
	)
	playerHandler := handlers.NewPlayerHandler(deps.Pools)

	group.POST("/optimise", optimiseHandler.Optimise)
	group.POST("/optimise/model", optimiseHandler.ExportModel)

	group.GET("/pool", playerHandler.GetPool)
	group.GET("/players", playerHandler.GetPlayers)

	if deps.Runs != nil {
		runHandler := handlers.NewRunHandler(deps.Runs, logger.WithField("component", "run_handler"))
		group.GET("/runs", runHandler.ListRuns)
		group.GET("/runs/:id", runHandler.GetRun)
	} else {
		group.GET("/runs", unavailable("Run history is not configured"))
		group.GET("/runs/:id", unavailable("Run history is not configured"))
	}

	if deps.Jobs != nil {
		jobHandler := handlers.NewJobHandler(deps.Jobs)
		group.GET("/jobs", jobHandler.ListJobs)
		group.POST("/jobs/:id/trigger", jobHandler.TriggerJob)
	}
}

func unavailable(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.SendUnavailable(c, message)
	}
}
