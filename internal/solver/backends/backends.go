// Package backends picks the configured MILP solver.
package backends

import (
	"fmt"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/internal/solver/bnb"
	"github.com/stitts-dev/ff-epl/internal/solver/highs"
	"github.com/stitts-dev/ff-epl/pkg/config"
)

// Names lists the accepted SOLVER_BACKEND values, default first.
var Names = []string{highs.Name, bnb.Name}

// New returns the solver named by cfg.SolverBackend. HiGHS fails here when
// its executable is missing rather than on the first solve.
func New(cfg *config.Config) (solver.Solver, error) {
	switch cfg.SolverBackend {
	case highs.Name, "":
		return highs.New(cfg.HighsPath)
	case bnb.Name:
		return bnb.New(), nil
	default:
		return nil, &models.ConfigurationError{
			Field:  "SOLVER_BACKEND",
			Reason: fmt.Sprintf("unknown backend %q, want one of %v", cfg.SolverBackend, Names),
		}
	}
}
