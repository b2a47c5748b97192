package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/internal/services"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
	"github.com/stitts-dev/ff-epl/pkg/utils"
)

// PoolProvider hands out the current player pool snapshot.
type PoolProvider interface {
	Current() (*models.PlayerPool, time.Time, error)
}

// RunRecorder persists and reads back run summaries.
type RunRecorder interface {
	Save(ctx context.Context, run *optimizer.Run) (*models.OptimisationRun, error)
	Get(ctx context.Context, id string) (*models.OptimisationRun, error)
	List(ctx context.Context, f services.RunFilter) ([]models.OptimisationRun, int64, error)
}

// OptimiseConfig holds the server-side defaults a request can narrow.
type OptimiseConfig struct {
	Rules        optimizer.SquadRules
	Metric       string
	SolveOptions solver.Options
}

// OptimiseHandler runs optimisations against the current pool.
type OptimiseHandler struct {
	pools   PoolProvider
	solver  solver.Solver
	config  OptimiseConfig
	cache   services.RosterCache
	runs    RunRecorder
	metrics *metrics.Manager
	logger  *logrus.Entry
}

// NewOptimiseHandler wires the handler. cache and runs may be nil.
func NewOptimiseHandler(
	pools PoolProvider,
	s solver.Solver,
	config OptimiseConfig,
	cache services.RosterCache,
	runs RunRecorder,
	m *metrics.Manager,
	logger *logrus.Entry,
) *OptimiseHandler {
	return &OptimiseHandler{
		pools:   pools,
		solver:  s,
		config:  config,
		cache:   cache,
		runs:    runs,
		metrics: m,
		logger:  logger,
	}
}

// Optimise handles POST /optimise.
func (h *OptimiseHandler) Optimise(c *gin.Context) {
	req, ok := bindOptimiseRequest(c)
	if !ok {
		return
	}
	pool, unknown, ok := h.requestPool(c, req)
	if !ok {
		return
	}

	metric := h.metric(req)
	rules := req.Rules.Apply(h.config.Rules)
	engine, err := optimizer.NewEngine(rules, h.solver,
		optimizer.WithSolveOptions(h.solveOptions(req)),
		optimizer.WithMetrics(h.metrics),
	)
	if err != nil {
		c.Error(err)
		utils.SendFromError(c, err)
		return
	}

	ctx := c.Request.Context()
	key := services.RosterCacheKey(pool.Fingerprint(), metric, rules)
	if h.cache != nil && !req.NoCache {
		entry, err := h.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.Set("run_id", entry.RunID)
			utils.SendSuccess(c, OptimiseResponse{
				RunID:          entry.RunID,
				Solver:         entry.Solver,
				Status:         entry.Roster.Status,
				Cached:         true,
				Roster:         entry.Roster,
				UnknownPlayers: unknown,
			})
			return
		case !errors.Is(err, services.ErrCacheMiss):
			h.logger.WithError(err).Warn("Roster cache lookup failed")
		}
	}

	run, err := engine.Optimize(ctx, pool, metric)
	c.Set("run_id", run.ID)
	h.record(ctx, run)
	if err != nil {
		c.Error(err)
		utils.SendFromError(c, err)
		return
	}

	resp := OptimiseResponse{
		RunID:          run.ID,
		Solver:         run.Solver,
		Status:         run.Roster.Status,
		Roster:         run.Roster,
		Nodes:          run.Result.Nodes,
		DurationMs:     run.Duration().Milliseconds(),
		UnknownPlayers: unknown,
	}
	if !run.Roster.Feasible {
		utils.SendInfeasible(c, resp, run.Roster.Status)
		return
	}

	if h.cache != nil {
		entry := &services.CachedRoster{RunID: run.ID, Solver: run.Solver, Roster: run.Roster, CachedAt: time.Now()}
		if err := h.cache.Set(ctx, key, entry); err != nil {
			h.logger.WithError(err).Warn("Failed to cache roster")
		}
	}
	utils.SendSuccess(c, resp)
}

// ExportModel handles POST /optimise/model: the LP text of the model the
// request would solve.
func (h *OptimiseHandler) ExportModel(c *gin.Context) {
	req, ok := bindOptimiseRequest(c)
	if !ok {
		return
	}
	pool, _, ok := h.requestPool(c, req)
	if !ok {
		return
	}

	m, err := optimizer.NewModelBuilder(req.Rules.Apply(h.config.Rules)).Build(pool, h.metric(req))
	if err != nil {
		c.Error(err)
		utils.SendFromError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(m.LP.String()))
}

func bindOptimiseRequest(c *gin.Context) (OptimiseRequest, bool) {
	var req OptimiseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request format", err.Error())
		return req, false
	}
	if req.TimeoutSeconds < 0 {
		utils.SendValidationError(c, "Invalid request format", "timeout_seconds must not be negative")
		return req, false
	}
	return req, true
}

// requestPool returns the current pool with the request's availability
// overrides applied.
func (h *OptimiseHandler) requestPool(c *gin.Context, req OptimiseRequest) (*models.PlayerPool, []string, bool) {
	pool, _, err := h.pools.Current()
	if err != nil {
		utils.SendUnavailable(c, "Player pool is not loaded yet")
		return nil, nil, false
	}
	if len(req.Availability) == 0 {
		return pool, nil, true
	}
	pool, unknown := pool.WithAvailability(req.Availability)
	return pool, unknown, true
}

func (h *OptimiseHandler) metric(req OptimiseRequest) string {
	if m := models.NormalizeMetric(req.Metric); m != "" {
		return m
	}
	return models.NormalizeMetric(h.config.Metric)
}

func (h *OptimiseHandler) solveOptions(req OptimiseRequest) solver.Options {
	opts := h.config.SolveOptions
	if req.TimeoutSeconds > 0 {
		d := time.Duration(req.TimeoutSeconds * float64(time.Second))
		if opts.Timeout <= 0 || d < opts.Timeout {
			opts.Timeout = d
		}
	}
	return opts
}

// record stores every run that reached the solver.
func (h *OptimiseHandler) record(ctx context.Context, run *optimizer.Run) {
	if h.runs == nil || run.Result == nil {
		return
	}
	if _, err := h.runs.Save(ctx, run); err != nil {
		h.logger.WithField("run_id", run.ID).WithError(err).Warn("Failed to record run")
	}
}
