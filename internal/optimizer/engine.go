package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/pkg/logger"
	"github.com/stitts-dev/ff-epl/pkg/metrics"
)

// RunState is the position of a Run in build -> solve -> extract.
type RunState int

const (
	StateUnbuilt RunState = iota
	StateBuilt
	StateSolved
	StateExtracted
)

func (s RunState) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilt:
		return "built"
	case StateSolved:
		return "solved"
	case StateExtracted:
		return "extracted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Run is a single optimisation, created per request and never re-solved.
type Run struct {
	ID        string
	Metric    string
	Solver    string
	State     RunState
	Model     *Model
	Result    *solver.Result
	Roster    *models.Roster
	StartedAt time.Time

	BuildDuration   time.Duration
	SolveDuration   time.Duration
	ExtractDuration time.Duration

	log *logrus.Entry
}

// Status is the solver status once the run has been solved.
func (r *Run) Status() solver.Status {
	if r.Result == nil {
		return solver.Error
	}
	return r.Result.Status
}

// Duration is the wall time spent across all completed stages.
func (r *Run) Duration() time.Duration {
	return r.BuildDuration + r.SolveDuration + r.ExtractDuration
}

func (r *Run) advance(to RunState) error {
	if to != r.State+1 {
		return fmt.Errorf("run %s: illegal transition %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	return nil
}

// Engine runs build -> solve -> extract against a fixed rule set and
// backend. It holds no per-run state and may be shared between goroutines.
type Engine struct {
	rules     SquadRules
	builder   *ModelBuilder
	solver    solver.Solver
	extractor SolutionExtractor
	opts      solver.Options
	metrics   *metrics.Manager
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSolveOptions sets the options passed to every solve.
func WithSolveOptions(opts solver.Options) EngineOption {
	return func(e *Engine) {
		e.opts = opts
	}
}

// WithMetrics records runs on m.
func WithMetrics(m *metrics.Manager) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine validates rules and returns an engine using backend s.
func NewEngine(rules SquadRules, s solver.Solver, opts ...EngineOption) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, &models.ConfigurationError{Field: "solver", Reason: "no solver backend configured"}
	}
	e := &Engine{
		rules:   rules,
		builder: NewModelBuilder(rules),
		solver:  s,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Rules returns the rule set the engine builds models from.
func (e *Engine) Rules() SquadRules {
	return e.rules
}

// SolverName returns the backend name.
func (e *Engine) SolverName() string {
	return e.solver.Name()
}

// NewRun starts a run in the Unbuilt state.
func (e *Engine) NewRun(metric string) *Run {
	id := uuid.New().String()
	metric = models.NormalizeMetric(metric)
	return &Run{
		ID:        id,
		Metric:    metric,
		Solver:    e.solver.Name(),
		State:     StateUnbuilt,
		StartedAt: time.Now(),
		log:       logger.WithRunContext(id, metric, e.solver.Name()),
	}
}

// Build moves run from Unbuilt to Built.
func (e *Engine) Build(run *Run, pool *models.PlayerPool) error {
	if run.State != StateUnbuilt {
		return fmt.Errorf("run %s: cannot build in state %s", run.ID, run.State)
	}
	start := time.Now()
	model, err := e.builder.Build(pool, run.Metric)
	run.BuildDuration = time.Since(start)
	if err != nil {
		run.log.WithError(err).Warn("Model build failed")
		return err
	}
	run.Model = model
	if err := run.advance(StateBuilt); err != nil {
		return err
	}

	run.log.WithFields(logrus.Fields{
		"players":     pool.Len(),
		"variables":   model.LP.NumVars(),
		"constraints": len(model.LP.Constraints()),
		"duration_ms": run.BuildDuration.Milliseconds(),
	}).Debug("Model built")
	return nil
}

// Solve moves run from Built to Solved. A backend failure leaves the run
// in Built and returns the AdapterError.
func (e *Engine) Solve(ctx context.Context, run *Run) error {
	if run.State != StateBuilt {
		return fmt.Errorf("run %s: cannot solve in state %s", run.ID, run.State)
	}
	start := time.Now()
	result, err := e.solver.Solve(ctx, run.Model.LP, e.opts)
	run.SolveDuration = time.Since(start)
	if err != nil {
		run.Result = result
		run.log.WithError(err).Error("Solver failed")
		return err
	}
	run.Result = result
	if err := run.advance(StateSolved); err != nil {
		return err
	}

	e.metrics.RecordSolve(e.solver.Name(), run.SolveDuration.Seconds(), result.Nodes)
	run.log.WithFields(logrus.Fields{
		"status":      result.Status.String(),
		"nodes":       result.Nodes,
		"objective":   result.Objective,
		"duration_ms": run.SolveDuration.Milliseconds(),
	}).Info("Model solved")
	return nil
}

// Extract moves run from Solved to Extracted.
func (e *Engine) Extract(run *Run) error {
	if run.State != StateSolved {
		return fmt.Errorf("run %s: cannot extract in state %s", run.ID, run.State)
	}
	start := time.Now()
	roster, err := e.extractor.Extract(run.Model, run.Result.Values, run.Result.Status)
	run.ExtractDuration = time.Since(start)
	if err != nil {
		run.log.WithError(err).Error("Solver answer failed re-validation")
		return err
	}
	run.Roster = roster
	return run.advance(StateExtracted)
}

// Optimize walks a fresh run through every state. On error the returned run
// is still populated up to the stage that failed.
func (e *Engine) Optimize(ctx context.Context, pool *models.PlayerPool, metric string) (*Run, error) {
	run := e.NewRun(metric)
	run.log.Info("Starting optimisation")

	err := e.Build(run, pool)
	if err == nil {
		err = e.Solve(ctx, run)
	}
	if err == nil {
		err = e.Extract(run)
	}
	if err != nil {
		e.metrics.RecordRunError(ErrorKind(err))
		return run, err
	}

	e.metrics.RecordRun(metric, run.Roster.Status)
	if run.Roster.Feasible {
		e.metrics.SetRosterTotal(metric, run.Roster.TotalMetric)
	}
	run.log.WithFields(logrus.Fields{
		"status":        run.Roster.Status,
		"feasible":      run.Roster.Feasible,
		"total_cost":    run.Roster.TotalCost,
		"total_metric":  run.Roster.TotalMetric,
		"bench_reserve": run.Roster.BenchReserve,
		"duration_ms":   run.Duration().Milliseconds(),
	}).Info("Optimisation completed")
	return run, nil
}

// ErrorKind classifies err for metrics and API error codes.
func ErrorKind(err error) string {
	var (
		validation    *models.ValidationError
		configuration *models.ConfigurationError
		consistency   *models.InternalConsistencyError
		adapter       *solver.AdapterError
	)
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &configuration):
		return "configuration"
	case errors.As(err, &consistency):
		return "internal"
	case errors.As(err, &adapter):
		return "solver"
	default:
		return "unknown"
	}
}
