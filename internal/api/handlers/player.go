package handlers

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/pkg/utils"
)

// PlayerHandler serves the current pool.
type PlayerHandler struct {
	pools PoolProvider
}

func NewPlayerHandler(pools PoolProvider) *PlayerHandler {
	return &PlayerHandler{pools: pools}
}

// PoolSummary describes the loaded snapshot.
type PoolSummary struct {
	Players     int                     `json:"players"`
	Available   map[models.Position]int `json:"available_by_position"`
	Clubs       []string                `json:"clubs"`
	Metrics     []string                `json:"metrics"`
	Fingerprint string                  `json:"fingerprint"`
	LoadedAt    time.Time               `json:"loaded_at"`
}

// GetPool handles GET /pool.
func (h *PlayerHandler) GetPool(c *gin.Context) {
	pool, loadedAt, err := h.pools.Current()
	if err != nil {
		utils.SendUnavailable(c, "Player pool is not loaded yet")
		return
	}
	utils.SendSuccess(c, PoolSummary{
		Players:     pool.Len(),
		Available:   pool.AvailableCount(),
		Clubs:       pool.Clubs(),
		Metrics:     pool.MetricNames(),
		Fingerprint: pool.Fingerprint(),
		LoadedAt:    loadedAt,
	})
}

// GetPlayers handles GET /players with optional position, club, available,
// sort (a metric, descending), limit and offset filters.
func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	pool, _, err := h.pools.Current()
	if err != nil {
		utils.SendUnavailable(c, "Player pool is not loaded yet")
		return
	}

	var position models.Position
	if raw := c.Query("position"); raw != "" {
		position, err = models.ParsePosition(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid position", err.Error())
			return
		}
	}
	var available *bool
	if raw := c.Query("available"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid available flag", raw)
			return
		}
		available = &b
	}
	limit, offset, ok := pagination(c, 50, 500)
	if !ok {
		return
	}

	club := c.Query("club")
	filtered := make([]models.PlayerRecord, 0, pool.Len())
	for _, p := range pool.Players() {
		if position != "" && p.Position != position {
			continue
		}
		if club != "" && !strings.EqualFold(p.Club, club) {
			continue
		}
		if available != nil && p.Available != *available {
			continue
		}
		filtered = append(filtered, p)
	}

	if metric := models.NormalizeMetric(c.Query("sort")); metric != "" {
		if _, err := pool.MetricValues(metric); err != nil {
			utils.SendFromError(c, err)
			return
		}
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Metrics[metric] > filtered[j].Metrics[metric]
		})
	}

	total := len(filtered)
	start := min(offset, total)
	end := min(start+limit, total)
	utils.SendSuccessWithMeta(c, filtered[start:end], &utils.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  int64(total),
	})
}

// pagination reads limit and offset, clamping limit to maxLimit.
func pagination(c *gin.Context, def, maxLimit int) (int, int, bool) {
	limit, offset := def, 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.SendValidationError(c, "Invalid limit", raw)
			return 0, 0, false
		}
		limit = min(n, maxLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.SendValidationError(c, "Invalid offset", raw)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
