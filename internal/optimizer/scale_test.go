package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/internal/solver/bnb"
)

// seasonPool builds a pool the size of a Premier League season: 20 clubs of
// 32 players. Points track price with noise and roughly one in seventeen
// players is unavailable.
func seasonPool(t *testing.T) *models.PlayerPool {
	t.Helper()
	rng := rand.New(rand.NewSource(2024))
	squad := []struct {
		pos      models.Position
		n        int
		min, max float64
	}{
		{models.Goalkeeper, 3, 4.0, 6.0},
		{models.Defender, 10, 4.0, 7.0},
		{models.Midfielder, 12, 4.5, 13.0},
		{models.Forward, 7, 4.5, 14.5},
	}

	var records []models.PlayerRecord
	for club := 1; club <= 20; club++ {
		for _, s := range squad {
			for k := 0; k < s.n; k++ {
				steps := int((s.max - s.min) / 0.5)
				cost := s.min + 0.5*float64(rng.Intn(steps+1))
				points := math.Max(0, math.Round(cost*15+rng.NormFloat64()*20))
				id := len(records) + 1
				records = append(records, models.PlayerRecord{
					ID:        fmt.Sprint(id),
					Position:  s.pos,
					Club:      fmt.Sprintf("Club %02d", club),
					Cost:      cost,
					Available: id%17 != 0,
					Metrics:   map[string]float64{metric: points},
				})
			}
		}
	}
	pool, err := models.NewPlayerPool(records)
	require.NoError(t, err)
	require.Equal(t, 640, pool.Len())
	return pool
}

func TestEngine_SeasonSizedPool(t *testing.T) {
	e := newTestEngine(t, DefaultSquadRules())
	start := time.Now()
	run, err := e.Optimize(context.Background(), seasonPool(t), metric)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 30*time.Second)
	require.Equal(t, solver.Optimal, run.Status(), "solved in %s over %d nodes", run.SolveDuration, run.Result.Nodes)
	require.True(t, run.Roster.Feasible)
	assert.Len(t, run.Roster.Players, 11)
	assert.LessOrEqual(t, run.Roster.TotalCost+run.Roster.BenchReserve, 100.0+1e-6)
	for club, n := range run.Roster.CountByClub() {
		assert.LessOrEqual(t, n, 3, club)
	}
	for _, p := range run.Roster.Players {
		assert.True(t, p.Available, p.ID)
	}
}

func TestEngine_SeasonSizedPoolHonoursDeadline(t *testing.T) {
	m, err := NewModelBuilder(DefaultSquadRules()).Build(seasonPool(t), metric)
	require.NoError(t, err)

	start := time.Now()
	res, err := bnb.New().Solve(context.Background(), m.LP, solver.Options{Timeout: 20 * time.Millisecond})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Less(t, elapsed, 2*time.Second, "status %s after %d nodes", res.Status, res.Nodes)
	assert.Contains(t, []solver.Status{solver.TimedOut, solver.Optimal}, res.Status)
}
