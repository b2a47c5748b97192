package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
	"github.com/stitts-dev/ff-epl/internal/solver/bnb"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// tinyRules picks two starters from a one-per-position squad.
func tinyRules() optimizer.SquadRules {
	return optimizer.SquadRules{
		Starters:           2,
		GoalkeeperStarters: 1,
		DefenderMin:        0,
		DefenderMax:        1,
		MidfielderMax:      1,
		ForwardMin:         0,
		SquadComposition: map[models.Position]int{
			models.Goalkeeper: 1,
			models.Defender:   1,
			models.Midfielder: 1,
			models.Forward:    1,
		},
		BudgetCap:  100,
		MaxPerClub: 3,
	}
}

func tinyPool(t *testing.T) *models.PlayerPool {
	t.Helper()
	rec := func(id string, pos models.Position, club string, cost, points float64) models.PlayerRecord {
		return models.PlayerRecord{
			ID: id, Name: "P" + id, Position: pos, Club: club, Cost: cost, Available: true,
			Metrics: map[string]float64{"total_points": points},
		}
	}
	pool, err := models.NewPlayerPool([]models.PlayerRecord{
		rec("a", models.Goalkeeper, "X", 4, 5),
		rec("b", models.Defender, "X", 4, 3),
		rec("c", models.Midfielder, "Y", 5, 8),
		rec("d", models.Forward, "Z", 5, 6),
	})
	require.NoError(t, err)
	return pool
}

func solvedRun(t *testing.T, rules optimizer.SquadRules) *optimizer.Run {
	t.Helper()
	engine, err := optimizer.NewEngine(rules, bnb.New())
	require.NoError(t, err)
	run, err := engine.Optimize(context.Background(), tinyPool(t), "total_points")
	require.NoError(t, err)
	return run
}

type staticSource struct {
	pool  *models.PlayerPool
	err   error
	calls int
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) LoadPool(ctx context.Context) (*models.PlayerPool, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pool, nil
}

var errUpstream = errors.New("upstream unavailable")
