package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/services"
	"github.com/stitts-dev/ff-epl/pkg/utils"
)

// RunHandler serves run history.
type RunHandler struct {
	runs   RunRecorder
	logger *logrus.Entry
}

func NewRunHandler(runs RunRecorder, logger *logrus.Entry) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

// ListRuns handles GET /runs?metric=&feasible=&limit=&offset=.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, offset, ok := pagination(c, 20, 100)
	if !ok {
		return
	}
	filter := services.RunFilter{Metric: c.Query("metric"), Limit: limit, Offset: offset}
	if raw := c.Query("feasible"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid feasible flag", raw)
			return
		}
		filter.FeasibleOnly = b
	}

	runs, total, err := h.runs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		utils.SendInternalError(c, "Failed to list runs")
		return
	}
	utils.SendSuccessWithMeta(c, runs, &utils.Meta{Limit: limit, Offset: offset, Total: total})
}

// GetRun handles GET /runs/:id.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrRunNotFound) {
		utils.SendNotFound(c, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load run")
		utils.SendInternalError(c, "Failed to load run")
		return
	}
	utils.SendSuccess(c, run)
}
