// Package highs runs models through the HiGHS MILP solver. The model is
// handed over as its CPLEX LP dump and the answer read back from the HiGHS
// solution file, so the module builds without cgo.
package highs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/pkg/logger"
)

// Name identifies the backend in logs, metrics and run history.
const Name = "highs"

// DefaultPath is looked up on PATH when no executable is configured.
const DefaultPath = "highs"

// Backend implements solver.Solver on top of the highs executable.
type Backend struct {
	Path string
	// Grace is how long HiGHS may run past its own time limit to write the
	// incumbent before the process is killed.
	Grace time.Duration

	log *logrus.Entry
}

// New resolves the executable and fails when it cannot be found.
func New(path string) (*Backend, error) {
	if path == "" {
		path = DefaultPath
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, &solver.AdapterError{Backend: Name, Err: fmt.Errorf("executable %q not found: %w", path, err)}
	}
	return &Backend{
		Path:  resolved,
		Grace: 5 * time.Second,
		log:   logger.WithService("solver-highs"),
	}, nil
}

func (b *Backend) Name() string { return Name }

// Solve writes model to a scratch directory, runs HiGHS on it and maps the
// reported model status onto solver.Status.
func (b *Backend) Solve(ctx context.Context, model *lp.Model, opts solver.Options) (*solver.Result, error) {
	start := time.Now()
	if b.log == nil {
		b.log = logger.WithService("solver-highs")
	}
	fail := func(err error) (*solver.Result, error) {
		return &solver.Result{Status: solver.Error, Duration: time.Since(start)}, &solver.AdapterError{Backend: Name, Err: err}
	}

	dir, err := os.MkdirTemp("", "ff-epl-highs-")
	if err != nil {
		return fail(err)
	}
	defer os.RemoveAll(dir)

	modelPath := filepath.Join(dir, "model.lp")
	optionsPath := filepath.Join(dir, "highs.opt")
	solutionPath := filepath.Join(dir, "model.sol")
	if err := writeFile(modelPath, model.WriteLP); err != nil {
		return fail(fmt.Errorf("write model: %w", err))
	}
	if err := os.WriteFile(optionsPath, []byte(optionsFile(opts, solutionPath)), 0o600); err != nil {
		return fail(fmt.Errorf("write options: %w", err))
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout+b.Grace)
		defer cancel()
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, b.Path,
		"--model_file", modelPath,
		"--options_file", optionsPath,
		"--solution_file", solutionPath,
	)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second
	runErr := cmd.Run()

	entry := b.log.WithFields(logrus.Fields{"model": model.Name, "path": b.Path})
	if opts.Verbose {
		entry.Info(output.String())
	} else {
		entry.Debug(output.String())
	}

	if ctx.Err() != nil {
		entry.WithField("duration_ms", time.Since(start).Milliseconds()).Warn("HiGHS killed at the deadline")
		return &solver.Result{Status: solver.TimedOut, Duration: time.Since(start)}, nil
	}

	raw, err := os.ReadFile(solutionPath)
	if err != nil {
		if runErr != nil {
			entry.Error(output.String())
			return fail(fmt.Errorf("run: %w", runErr))
		}
		return fail(fmt.Errorf("read solution: %w", err))
	}
	sol, err := parseSolution(raw)
	if err != nil {
		return fail(err)
	}

	result := &solver.Result{Status: sol.status(), Duration: time.Since(start)}
	if result.Status == solver.Error {
		return fail(fmt.Errorf("model status %q", sol.ModelStatus))
	}
	if sol.HasSolution() {
		values, err := sol.assignment(model)
		if err != nil {
			return fail(err)
		}
		result.Values = values
		result.Objective = model.Objective().Eval(values)
	}
	if result.Status == solver.Optimal && !result.HasSolution() {
		return fail(errors.New("optimal status without primal values"))
	}

	entry.WithFields(logrus.Fields{
		"status":       result.Status.String(),
		"model_status": sol.ModelStatus,
		"objective":    result.Objective,
		"duration_ms":  result.Duration.Milliseconds(),
	}).Debug("HiGHS finished")
	return result, nil
}

// optionsFile renders the HiGHS options for one solve.
func optionsFile(opts solver.Options, solutionPath string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "solution_file = %s\n", solutionPath)
	fmt.Fprintln(&buf, "write_solution_to_file = true")
	fmt.Fprintln(&buf, "write_solution_style = 0")
	if opts.Timeout > 0 {
		fmt.Fprintf(&buf, "time_limit = %g\n", opts.Timeout.Seconds())
	}
	if opts.MaxNodes > 0 {
		fmt.Fprintf(&buf, "mip_max_nodes = %d\n", opts.MaxNodes)
	}
	return buf.String()
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
