package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

const metric = "total_points"

// fixtureRecords is a 15 player pool. Club A holds four available starters
// worth picking, so the club quota decides the goalkeeper; player 15 scores
// best of all but is unavailable.
func fixtureRecords() []models.PlayerRecord {
	rows := []struct {
		id        string
		pos       models.Position
		club      string
		cost      float64
		points    float64
		available bool
	}{
		{"1", models.Goalkeeper, "A", 5.0, 10, true},
		{"2", models.Goalkeeper, "B", 4.5, 8, true},
		{"3", models.Defender, "A", 5.5, 9, true},
		{"4", models.Defender, "B", 5.0, 8, true},
		{"5", models.Defender, "C", 4.5, 7, true},
		{"6", models.Defender, "D", 4.0, 6, true},
		{"7", models.Defender, "E", 4.5, 5, true},
		{"8", models.Midfielder, "A", 8.0, 12, true},
		{"9", models.Midfielder, "B", 7.0, 10, true},
		{"10", models.Midfielder, "C", 6.5, 4, true},
		{"11", models.Midfielder, "D", 6.0, 3, true},
		{"12", models.Forward, "E", 9.0, 11, true},
		{"13", models.Forward, "A", 7.5, 9, true},
		{"14", models.Forward, "D", 6.0, 2, true},
		{"15", models.Forward, "A", 7.0, 20, false},
	}

	records := make([]models.PlayerRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, models.PlayerRecord{
			ID:        r.id,
			Name:      "Player " + r.id,
			Position:  r.pos,
			Club:      r.club,
			Cost:      r.cost,
			Available: r.available,
			Metrics:   map[string]float64{metric: r.points},
		})
	}
	return records
}

func fixturePool(t *testing.T) *models.PlayerPool {
	t.Helper()
	pool, err := models.NewPlayerPool(fixtureRecords())
	require.NoError(t, err)
	return pool
}

// MockSolver lets tests choose what the backend answers.
type MockSolver struct {
	mock.Mock
}

func (m *MockSolver) Name() string {
	return "mock"
}

func (m *MockSolver) Solve(ctx context.Context, model *lp.Model, opts solver.Options) (*solver.Result, error) {
	args := m.Called(ctx, model, opts)
	res, _ := args.Get(0).(*solver.Result)
	return res, args.Error(1)
}

// assignmentFor builds a consistent assignment selecting ids.
func assignmentFor(t *testing.T, m *Model, ids ...string) solver.Assignment {
	t.Helper()
	values := make(solver.Assignment, m.LP.NumVars())
	counts := make(map[models.Position]int)
	for _, id := range ids {
		i, ok := m.Pool.IndexOf(id)
		require.True(t, ok, id)
		values[m.Decisions[i].Index] = 1
		counts[m.Pool.At(i).Position]++
	}
	for _, pos := range models.Positions {
		values[m.Bench[pos].Index] = float64(m.Rules.SquadComposition[pos] - counts[pos])
	}
	return values
}
