package backends

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/internal/solver/bnb"
	"github.com/stitts-dev/ff-epl/internal/solver/highs"
	"github.com/stitts-dev/ff-epl/pkg/config"
)

func TestNew_BranchAndBound(t *testing.T) {
	s, err := New(&config.Config{SolverBackend: bnb.Name})
	require.NoError(t, err)
	assert.Equal(t, bnb.Name, s.Name())
}

func TestNew_HighsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs an executable shell script")
	}
	path := filepath.Join(t.TempDir(), "highs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	s, err := New(&config.Config{SolverBackend: highs.Name, HighsPath: path})
	require.NoError(t, err)
	assert.Equal(t, highs.Name, s.Name())
}

func TestNew_HighsMissing(t *testing.T) {
	_, err := New(&config.Config{SolverBackend: highs.Name, HighsPath: filepath.Join(t.TempDir(), "absent")})
	var aerr *solver.AdapterError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, highs.Name, aerr.Backend)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(&config.Config{SolverBackend: "cbc"})
	var cerr *models.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "SOLVER_BACKEND", cerr.Field)
	assert.Contains(t, cerr.Reason, "cbc")
}
