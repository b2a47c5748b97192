package optimizer

import (
	"fmt"
	"math"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/pkg/config"
)

// SquadRules holds every threshold the model is built from.
type SquadRules struct {
	Starters           int                     `json:"starters"`
	GoalkeeperStarters int                     `json:"gk_starters"`
	DefenderMin        int                     `json:"def_min"`
	DefenderMax        int                     `json:"def_max"`
	MidfielderMax      int                     `json:"mid_max"`
	ForwardMin         int                     `json:"fwd_min"`
	SquadComposition   map[models.Position]int `json:"squad_composition"`
	BudgetCap          float64                 `json:"budget_cap"`
	MaxPerClub         int                     `json:"max_per_club"`
}

// DefaultSquadRules returns the FPL rules: 11 starters in a legal formation
// out of a 2/5/5/3 squad costing at most 100 with no more than 3 per club.
func DefaultSquadRules() SquadRules {
	return SquadRules{
		Starters:           11,
		GoalkeeperStarters: 1,
		DefenderMin:        3,
		DefenderMax:        5,
		MidfielderMax:      5,
		ForwardMin:         1,
		SquadComposition: map[models.Position]int{
			models.Goalkeeper: 2,
			models.Defender:   5,
			models.Midfielder: 5,
			models.Forward:    3,
		},
		BudgetCap:  100,
		MaxPerClub: 3,
	}
}

// RulesFromConfig maps the loaded configuration onto SquadRules.
func RulesFromConfig(cfg *config.Config) SquadRules {
	return SquadRules{
		Starters:           cfg.Starters,
		GoalkeeperStarters: cfg.GoalkeeperStarters,
		DefenderMin:        cfg.DefenderMin,
		DefenderMax:        cfg.DefenderMax,
		MidfielderMax:      cfg.MidfielderMax,
		ForwardMin:         cfg.ForwardMin,
		SquadComposition: map[models.Position]int{
			models.Goalkeeper: cfg.SquadGoalkeepers,
			models.Defender:   cfg.SquadDefenders,
			models.Midfielder: cfg.SquadMidfielders,
			models.Forward:    cfg.SquadForwards,
		},
		BudgetCap:  cfg.BudgetCap,
		MaxPerClub: cfg.MaxPerClub,
	}
}

// Validate reports rules that cannot describe any lineup.
func (r SquadRules) Validate() error {
	nonNegative := map[string]int{
		"starters":     r.Starters,
		"gk_starters":  r.GoalkeeperStarters,
		"def_min":      r.DefenderMin,
		"def_max":      r.DefenderMax,
		"mid_max":      r.MidfielderMax,
		"fwd_min":      r.ForwardMin,
		"max_per_club": r.MaxPerClub,
	}
	for _, field := range []string{"starters", "gk_starters", "def_min", "def_max", "mid_max", "fwd_min", "max_per_club"} {
		if nonNegative[field] < 0 {
			return &models.ConfigurationError{Field: field, Reason: fmt.Sprintf("must not be negative, got %d", nonNegative[field])}
		}
	}
	if r.Starters == 0 {
		return &models.ConfigurationError{Field: "starters", Reason: "must be positive"}
	}
	if r.MaxPerClub == 0 {
		return &models.ConfigurationError{Field: "max_per_club", Reason: "must be positive"}
	}
	if math.IsNaN(r.BudgetCap) || r.BudgetCap < 0 {
		return &models.ConfigurationError{Field: "budget_cap", Reason: fmt.Sprintf("must be a non-negative number, got %g", r.BudgetCap)}
	}
	if r.DefenderMin > r.DefenderMax {
		return &models.ConfigurationError{Field: "def_min", Reason: fmt.Sprintf("minimum %d exceeds maximum %d", r.DefenderMin, r.DefenderMax)}
	}

	squad := 0
	for _, pos := range models.Positions {
		n, ok := r.SquadComposition[pos]
		if !ok || n < 0 {
			return &models.ConfigurationError{Field: "squad_" + pos.Lower(), Reason: "squad composition must be set and non-negative"}
		}
		squad += n
	}

	// A position's starters can never exceed its squad slots.
	lower := map[models.Position]int{
		models.Goalkeeper: r.GoalkeeperStarters,
		models.Defender:   r.DefenderMin,
		models.Forward:    r.ForwardMin,
	}
	for _, pos := range models.Positions {
		if n, ok := lower[pos]; ok && n > r.SquadComposition[pos] {
			return &models.ConfigurationError{Field: "squad_" + pos.Lower(), Reason: fmt.Sprintf("%d %s starters required but the squad holds %d", n, pos, r.SquadComposition[pos])}
		}
	}

	if r.Starters > squad {
		return &models.ConfigurationError{Field: "starters", Reason: fmt.Sprintf("%d starters exceed the squad size %d", r.Starters, squad)}
	}
	if minimum := r.GoalkeeperStarters + r.DefenderMin + r.ForwardMin; minimum > r.Starters {
		return &models.ConfigurationError{Field: "starters", Reason: fmt.Sprintf("formation minimums need %d starters but only %d are picked", minimum, r.Starters)}
	}
	maximum := r.GoalkeeperStarters +
		min(r.DefenderMax, r.SquadComposition[models.Defender]) +
		min(r.MidfielderMax, r.SquadComposition[models.Midfielder]) +
		r.SquadComposition[models.Forward]
	if maximum < r.Starters {
		return &models.ConfigurationError{Field: "starters", Reason: fmt.Sprintf("formation maximums allow only %d starters, %d required", maximum, r.Starters)}
	}
	return nil
}

// SquadSize is the full squad the budget reserve is computed against.
func (r SquadRules) SquadSize() int {
	total := 0
	for _, pos := range models.Positions {
		total += r.SquadComposition[pos]
	}
	return total
}
