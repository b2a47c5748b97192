package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/ff-epl/internal/services"
	"github.com/stitts-dev/ff-epl/pkg/utils"
)

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker is satisfied by *database.DB.
type HealthChecker interface {
	HealthCheck() error
}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthHandler reports liveness and readiness. db and cache may be nil.
type HealthHandler struct {
	pools PoolProvider
	db    HealthChecker
	cache Pinger
}

func NewHealthHandler(pools PoolProvider, db HealthChecker, cache Pinger) *HealthHandler {
	return &HealthHandler{pools: pools, db: db, cache: cache}
}

func (h *HealthHandler) checks(c *gin.Context) (map[string]string, bool) {
	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			checks["database"] = "failed: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	// the cache is optional, so a failure only degrades
	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			checks["redis"] = "failed: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not_configured"
	}

	if _, loadedAt, err := h.pools.Current(); err != nil {
		checks["player_pool"] = "not_loaded"
	} else {
		checks["player_pool"] = "loaded " + loadedAt.UTC().Format(time.RFC3339)
	}
	return checks, healthy
}

// GetHealth handles GET /health.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	checks, healthy := h.checks(c)
	status := HealthStatus{Status: "ok", Service: "ff-epl", Timestamp: time.Now(), Checks: checks}
	code := http.StatusOK
	if !healthy {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// GetReady handles GET /ready: the service can optimise once a pool is
// loaded.
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks, healthy := h.checks(c)
	status := HealthStatus{Status: "ready", Service: "ff-epl", Timestamp: time.Now(), Checks: checks}
	code := http.StatusOK
	if _, _, err := h.pools.Current(); err != nil || !healthy {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// JobRunner exposes the background scheduler.
type JobRunner interface {
	GetJobs() []services.JobInfo
	TriggerJob(id string) error
}

// JobHandler lists and triggers background jobs.
type JobHandler struct {
	jobs JobRunner
}

func NewJobHandler(jobs JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	utils.SendSuccess(c, h.jobs.GetJobs())
}

// TriggerJob handles POST /jobs/:id/trigger.
func (h *JobHandler) TriggerJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.TriggerJob(id); err != nil {
		utils.SendNotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, utils.Response{Success: true, Data: gin.H{"job_id": id, "status": "triggered"}})
}
