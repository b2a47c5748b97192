package optimizer

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/models"
)

// Constraint names shared by the builder and the extractor.
const (
	ModelName          = "FantasyFootball"
	ConSquadSize       = "squad_size"
	ConFormationGK     = "formation_gk"
	ConFormationDefMin = "formation_def_min"
	ConFormationDefMax = "formation_def_max"
	ConFormationMidMax = "formation_mid_max"
	ConFormationFwdMin = "formation_fwd_min"
	ConBudget          = "budget"
	ConAvailability    = "availability"
)

// Model is a built MILP together with everything needed to read its answer
// back in terms of players.
type Model struct {
	LP           *lp.Model
	Pool         *models.PlayerPool
	Metric       string
	Rules        SquadRules
	Decisions    []*lp.Var // one per pool index
	Bench        map[models.Position]*lp.Var
	MinBenchCost map[models.Position]float64
	ClubQuotas   []string // constraint names, in club first-seen order

	metricValues []float64
}

// MetricValue returns the objective weight of pool index i.
func (m *Model) MetricValue(i int) float64 {
	return m.metricValues[i]
}

// ModelBuilder turns a pool and a metric into a Model.
type ModelBuilder struct {
	rules SquadRules
}

func NewModelBuilder(rules SquadRules) *ModelBuilder {
	return &ModelBuilder{rules: rules}
}

// BenchConstraintName is the bench identity constraint of pos.
func BenchConstraintName(pos models.Position) string {
	return "bench_" + pos.Lower()
}

// SlackName is the bench slack variable of pos.
func SlackName(pos models.Position) string {
	return "slack_" + pos.Lower()
}

// ClubQuotaName is the quota constraint of the n-th club (0-based).
func ClubQuotaName(n int, club string) string {
	return fmt.Sprintf("club_quota_%02d_%s", n+1, sanitizeName(club))
}

// Build declares one binary per player and one bench slack per position,
// then adds the objective and every constraint family. The result is a
// pure function of the pool order, the metric and the rules.
func (b *ModelBuilder) Build(pool *models.PlayerPool, metric string) (*Model, error) {
	if err := b.rules.Validate(); err != nil {
		return nil, err
	}
	if pool == nil || pool.Len() == 0 {
		return nil, &models.ValidationError{Field: "players", Reason: "player pool is empty"}
	}
	metric = models.NormalizeMetric(metric)

	values, err := pool.MetricValues(metric)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &models.ValidationError{Field: metric, Row: i + 1, Value: pool.At(i).ID, Reason: "metric value is not finite"}
		}
	}

	minCost, err := cheapestAvailable(pool)
	if err != nil {
		return nil, err
	}

	m := &Model{
		LP:           lp.NewModel(ModelName, lp.Maximize),
		Pool:         pool,
		Metric:       metric,
		Rules:        b.rules,
		Decisions:    make([]*lp.Var, pool.Len()),
		Bench:        make(map[models.Position]*lp.Var, len(models.Positions)),
		MinBenchCost: minCost,
		metricValues: values,
	}

	for i := 0; i < pool.Len(); i++ {
		v, err := m.LP.NewBinary(fmt.Sprintf("x_%d", i))
		if err != nil {
			return nil, err
		}
		m.Decisions[i] = v
	}
	for _, pos := range models.Positions {
		v, err := m.LP.NewContinuous(SlackName(pos), 0, math.Inf(1))
		if err != nil {
			return nil, err
		}
		m.Bench[pos] = v
	}

	objective := lp.NewExpr()
	for i, v := range m.Decisions {
		objective.Add(v, values[i])
	}
	m.LP.SetObjective(metric, objective)

	if err := b.addConstraints(m); err != nil {
		return nil, fmt.Errorf("build model: %w", err)
	}
	return m, nil
}

func (b *ModelBuilder) addConstraints(m *Model) error {
	r := b.rules
	players := m.Pool.Players()

	all := lp.NewExpr()
	byPos := make(map[models.Position]*lp.Expr, len(models.Positions))
	for _, pos := range models.Positions {
		byPos[pos] = lp.NewExpr()
	}
	budget := lp.NewExpr()
	unavailable := lp.NewExpr()

	for i, p := range players {
		x := m.Decisions[i]
		all.Add(x, 1)
		byPos[p.Position].Add(x, 1)
		budget.Add(x, p.Cost)
		if !p.Available {
			unavailable.Add(x, 1)
		}
	}

	add := func(name string, c lp.Constraint) error {
		return m.LP.AddConstraint(name, c)
	}

	if err := add(ConSquadSize, all.EQ(float64(r.Starters))); err != nil {
		return err
	}
	formation := []struct {
		name string
		c    lp.Constraint
	}{
		{ConFormationGK, byPos[models.Goalkeeper].EQ(float64(r.GoalkeeperStarters))},
		{ConFormationDefMin, byPos[models.Defender].GE(float64(r.DefenderMin))},
		{ConFormationDefMax, byPos[models.Defender].LE(float64(r.DefenderMax))},
		{ConFormationMidMax, byPos[models.Midfielder].LE(float64(r.MidfielderMax))},
		{ConFormationFwdMin, byPos[models.Forward].GE(float64(r.ForwardMin))},
	}
	for _, f := range formation {
		if err := add(f.name, f.c); err != nil {
			return err
		}
	}

	for _, pos := range models.Positions {
		identity := lp.NewExpr()
		for _, t := range byPos[pos].Terms() {
			identity.Add(t.Var, t.Coef)
		}
		identity.Add(m.Bench[pos], 1)
		if err := add(BenchConstraintName(pos), identity.EQ(float64(r.SquadComposition[pos]))); err != nil {
			return err
		}
	}

	for _, pos := range models.Positions {
		budget.Add(m.Bench[pos], m.MinBenchCost[pos])
	}
	if err := add(ConBudget, budget.LE(r.BudgetCap)); err != nil {
		return err
	}

	for n, club := range m.Pool.Clubs() {
		quota := lp.NewExpr()
		for i, p := range players {
			if p.Club == club {
				quota.Add(m.Decisions[i], 1)
			}
		}
		name := ClubQuotaName(n, club)
		if err := add(name, quota.LE(float64(r.MaxPerClub))); err != nil {
			return err
		}
		m.ClubQuotas = append(m.ClubQuotas, name)
	}

	return add(ConAvailability, unavailable.EQ(0))
}

// cheapestAvailable finds the lowest cost among available players per
// position. A position with no available player leaves the bench reserve
// undefined.
func cheapestAvailable(pool *models.PlayerPool) (map[models.Position]float64, error) {
	minCost := make(map[models.Position]float64, len(models.Positions))
	for _, p := range pool.Players() {
		if !p.Available {
			continue
		}
		if c, ok := minCost[p.Position]; !ok || p.Cost < c {
			minCost[p.Position] = p.Cost
		}
	}
	for _, pos := range models.Positions {
		if _, ok := minCost[pos]; !ok {
			return nil, &models.ConfigurationError{
				Field:  "position",
				Reason: fmt.Sprintf("no available %s players in the pool", pos),
			}
		}
	}
	return minCost, nil
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
