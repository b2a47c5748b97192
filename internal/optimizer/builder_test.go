package optimizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/models"
)

func TestModelBuilder_Build(t *testing.T) {
	pool := fixturePool(t)
	m, err := NewModelBuilder(DefaultSquadRules()).Build(pool, metric)
	require.NoError(t, err)

	assert.Equal(t, lp.Maximize, m.LP.Direction)
	assert.Equal(t, 15+4, m.LP.NumVars())
	assert.Len(t, m.Decisions, 15)
	assert.Equal(t, "x_0", m.Decisions[0].Name)
	assert.Equal(t, "slack_fwd", m.Bench[models.Forward].Name)

	assert.Equal(t, map[models.Position]float64{
		models.Goalkeeper: 4.5,
		models.Defender:   4.0,
		models.Midfielder: 6.0,
		models.Forward:    6.0,
	}, m.MinBenchCost, "player 15 is unavailable and never sets the forward reserve")

	var names []string
	for _, c := range m.LP.Constraints() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"squad_size",
		"formation_gk", "formation_def_min", "formation_def_max", "formation_mid_max", "formation_fwd_min",
		"bench_gk", "bench_def", "bench_mid", "bench_fwd",
		"budget",
		"club_quota_01_A", "club_quota_02_B", "club_quota_03_C", "club_quota_04_D", "club_quota_05_E",
		"availability",
	}, names)

	budget, ok := m.LP.Constraint(ConBudget)
	require.True(t, ok)
	assert.Equal(t, lp.LessEqual, budget.Sense)
	assert.Equal(t, 100.0, budget.RHS)
	assert.Equal(t, 15+4, budget.Expr.Len())

	avail, ok := m.LP.Constraint(ConAvailability)
	require.True(t, ok)
	require.Equal(t, 1, avail.Expr.Len())
	assert.Equal(t, "x_14", avail.Expr.Terms()[0].Var.Name)
}

func TestModelBuilder_LPDump(t *testing.T) {
	m, err := NewModelBuilder(DefaultSquadRules()).Build(fixturePool(t), metric)
	require.NoError(t, err)

	out := m.LP.String()
	assert.True(t, strings.HasPrefix(out, `\* FantasyFootball *\`))
	assert.Contains(t, out, "total_points: 10 x_0 + 8 x_1 + 9 x_2")
	assert.Contains(t, out, "bench_gk: x_0 + x_1 + slack_gk = 2\n")
	assert.Contains(t, out, "club_quota_01_A: x_0 + x_2 + x_7 + x_12 + x_14 <= 3\n")
	assert.Contains(t, out, "availability: x_14 = 0\n")
	assert.Contains(t, out, "4.5 slack_gk + 4 slack_def + 6 slack_mid + 6 slack_fwd <= 100\n")
}

func TestModelBuilder_IsDeterministic(t *testing.T) {
	b := NewModelBuilder(DefaultSquadRules())
	first, err := b.Build(fixturePool(t), metric)
	require.NoError(t, err)
	second, err := b.Build(fixturePool(t), metric)
	require.NoError(t, err)
	assert.Equal(t, first.LP.String(), second.LP.String())
}

func TestModelBuilder_Errors(t *testing.T) {
	t.Run("missing metric", func(t *testing.T) {
		_, err := NewModelBuilder(DefaultSquadRules()).Build(fixturePool(t), "ict_index")
		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "ict_index", verr.Field)
	})

	t.Run("no available goalkeeper", func(t *testing.T) {
		pool, _ := fixturePool(t).WithAvailability(map[string]bool{"1": false, "2": false})
		_, err := NewModelBuilder(DefaultSquadRules()).Build(pool, metric)
		var cerr *models.ConfigurationError
		require.True(t, errors.As(err, &cerr))
		assert.Contains(t, cerr.Reason, "GK")
	})

	t.Run("no goalkeeper at all", func(t *testing.T) {
		pool, err := models.NewPlayerPool(fixtureRecords()[2:])
		require.NoError(t, err)
		_, err = NewModelBuilder(DefaultSquadRules()).Build(pool, metric)
		var cerr *models.ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	})

	t.Run("empty pool", func(t *testing.T) {
		_, err := NewModelBuilder(DefaultSquadRules()).Build(nil, metric)
		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestSquadRules_Validate(t *testing.T) {
	require.NoError(t, DefaultSquadRules().Validate())

	tests := []struct {
		name   string
		mutate func(*SquadRules)
		field  string
	}{
		{"defender range inverted", func(r *SquadRules) { r.DefenderMin = 6 }, "def_min"},
		{"negative starters", func(r *SquadRules) { r.Starters = -1 }, "starters"},
		{"zero club quota", func(r *SquadRules) { r.MaxPerClub = 0 }, "max_per_club"},
		{"negative budget", func(r *SquadRules) { r.BudgetCap = -5 }, "budget_cap"},
		{"goalkeepers exceed squad", func(r *SquadRules) { r.GoalkeeperStarters = 3 }, "squad_gk"},
		{"minimums exceed starters", func(r *SquadRules) { r.Starters = 4 }, "starters"},
		{"maximums below starters", func(r *SquadRules) { r.MidfielderMax = 1; r.DefenderMax = 3 }, "starters"},
		{"missing composition", func(r *SquadRules) { delete(r.SquadComposition, models.Forward) }, "squad_fwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultSquadRules()
			tt.mutate(&rules)
			err := rules.Validate()
			var cerr *models.ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Nott_m_Forest", sanitizeName("Nott'm Forest"))
	assert.Equal(t, "Man_Utd", sanitizeName("Man Utd"))
}
