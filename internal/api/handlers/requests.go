package handlers

import (
	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/optimizer"
)

// RulesOverride replaces individual thresholds of the server's rules.
type RulesOverride struct {
	Starters           *int                    `json:"starters,omitempty"`
	GoalkeeperStarters *int                    `json:"gk_starters,omitempty"`
	DefenderMin        *int                    `json:"def_min,omitempty"`
	DefenderMax        *int                    `json:"def_max,omitempty"`
	MidfielderMax      *int                    `json:"mid_max,omitempty"`
	ForwardMin         *int                    `json:"fwd_min,omitempty"`
	SquadComposition   map[models.Position]int `json:"squad_composition,omitempty"`
	BudgetCap          *float64                `json:"budget_cap,omitempty"`
	MaxPerClub         *int                    `json:"max_per_club,omitempty"`
}

// Apply returns base with every set field replaced.
func (o *RulesOverride) Apply(base optimizer.SquadRules) optimizer.SquadRules {
	out := base
	out.SquadComposition = make(map[models.Position]int, len(base.SquadComposition))
	for pos, n := range base.SquadComposition {
		out.SquadComposition[pos] = n
	}
	if o == nil {
		return out
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&out.Starters, o.Starters)
	setInt(&out.GoalkeeperStarters, o.GoalkeeperStarters)
	setInt(&out.DefenderMin, o.DefenderMin)
	setInt(&out.DefenderMax, o.DefenderMax)
	setInt(&out.MidfielderMax, o.MidfielderMax)
	setInt(&out.ForwardMin, o.ForwardMin)
	setInt(&out.MaxPerClub, o.MaxPerClub)
	if o.BudgetCap != nil {
		out.BudgetCap = *o.BudgetCap
	}
	for pos, n := range o.SquadComposition {
		out.SquadComposition[pos] = n
	}
	return out
}

// OptimiseRequest is the body of POST /optimise and /optimise/model. Every
// field is optional.
type OptimiseRequest struct {
	Metric string         `json:"metric"`
	Rules  *RulesOverride `json:"rules,omitempty"`
	// Availability overrides the pool per player id.
	Availability map[string]bool `json:"availability,omitempty"`
	// TimeoutSeconds caps the solve below the server limit.
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
	// NoCache forces a fresh solve.
	NoCache bool `json:"no_cache,omitempty"`
}

// OptimiseResponse is the result of one optimisation.
type OptimiseResponse struct {
	RunID          string         `json:"run_id"`
	Solver         string         `json:"solver"`
	Status         string         `json:"status"`
	Cached         bool           `json:"cached"`
	Roster         *models.Roster `json:"roster"`
	Nodes          int            `json:"nodes,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	UnknownPlayers []string       `json:"unknown_players,omitempty"`
}
