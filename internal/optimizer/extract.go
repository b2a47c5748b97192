package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

const extractTolerance = 1e-6

// SolutionExtractor turns a solver assignment into a Roster and re-checks
// it against the rules the model was built from.
type SolutionExtractor struct{}

// Extract reads the starters out of values. Any status but Optimal yields an
// empty, infeasible roster and no error. An Optimal assignment that breaks a
// rule after rounding is an InternalConsistencyError.
func (SolutionExtractor) Extract(m *Model, values solver.Assignment, status solver.Status) (*models.Roster, error) {
	roster := &models.Roster{
		Status:  status.String(),
		Metric:  m.Metric,
		Players: []models.PlayerRecord{},
	}
	if status != solver.Optimal {
		return roster, nil
	}
	if len(values) != m.LP.NumVars() {
		return nil, &models.InternalConsistencyError{Violations: []string{
			fmt.Sprintf("assignment has %d values for %d variables", len(values), m.LP.NumVars()),
		}}
	}

	var selected []int
	for i, v := range m.Decisions {
		if values.Value(v) >= 0.5 {
			selected = append(selected, i)
		}
	}

	slack := make(map[models.Position]float64, len(models.Positions))
	for _, pos := range models.Positions {
		slack[pos] = values.Value(m.Bench[pos])
	}

	if violations := m.check(selected, slack); len(violations) > 0 {
		return nil, &models.InternalConsistencyError{Violations: violations}
	}

	for _, i := range selected {
		p := m.Pool.At(i)
		roster.Players = append(roster.Players, p)
		roster.TotalCost += p.Cost
		roster.TotalMetric += m.metricValues[i]
	}
	for _, pos := range models.Positions {
		roster.BenchReserve += math.Round(slack[pos]) * m.MinBenchCost[pos]
	}

	metric := m.Metric
	sort.SliceStable(roster.Players, func(a, b int) bool {
		va, _ := roster.Players[a].Metric(metric)
		vb, _ := roster.Players[b].Metric(metric)
		return va > vb
	})
	roster.Feasible = true
	return roster, nil
}

// check re-validates the rounded selection against each constraint family.
func (m *Model) check(selected []int, slack map[models.Position]float64) []string {
	r := m.Rules
	var violations []string
	fail := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	byPos := make(map[models.Position]int, len(models.Positions))
	byClub := make(map[string]int)
	var cost float64
	for _, i := range selected {
		p := m.Pool.At(i)
		byPos[p.Position]++
		byClub[p.Club]++
		cost += p.Cost
		if !p.Available {
			fail("%s: player %s is unavailable", ConAvailability, p.ID)
		}
	}

	if len(selected) != r.Starters {
		fail("%s: %d selected, want %d", ConSquadSize, len(selected), r.Starters)
	}
	if n := byPos[models.Goalkeeper]; n != r.GoalkeeperStarters {
		fail("%s: %d goalkeepers, want %d", ConFormationGK, n, r.GoalkeeperStarters)
	}
	if n := byPos[models.Defender]; n < r.DefenderMin {
		fail("%s: %d defenders, want at least %d", ConFormationDefMin, n, r.DefenderMin)
	}
	if n := byPos[models.Defender]; n > r.DefenderMax {
		fail("%s: %d defenders, want at most %d", ConFormationDefMax, n, r.DefenderMax)
	}
	if n := byPos[models.Midfielder]; n > r.MidfielderMax {
		fail("%s: %d midfielders, want at most %d", ConFormationMidMax, n, r.MidfielderMax)
	}
	if n := byPos[models.Forward]; n < r.ForwardMin {
		fail("%s: %d forwards, want at least %d", ConFormationFwdMin, n, r.ForwardMin)
	}

	reserve := 0.0
	for _, pos := range models.Positions {
		s := slack[pos]
		want := float64(r.SquadComposition[pos])
		if s < -extractTolerance || math.Abs(float64(byPos[pos])+s-want) > extractTolerance {
			fail("%s: %d starters + %s bench != %d", BenchConstraintName(pos), byPos[pos], formatFloat(s), r.SquadComposition[pos])
		}
		reserve += s * m.MinBenchCost[pos]
	}

	if cost+reserve > r.BudgetCap+extractTolerance {
		fail("%s: %s starters + %s reserve exceeds %s", ConBudget, formatFloat(cost), formatFloat(reserve), formatFloat(r.BudgetCap))
	}

	for n, club := range m.Pool.Clubs() {
		if byClub[club] > r.MaxPerClub {
			fail("%s: %d players from %s, want at most %d", ClubQuotaName(n, club), byClub[club], club, r.MaxPerClub)
		}
	}
	return violations
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
