package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&models.ValidationError{Field: "cost"}, http.StatusBadRequest, ErrCodeValidation},
		{fmt.Errorf("build: %w", &models.ConfigurationError{Reason: "no GK"}), http.StatusUnprocessableEntity, ErrCodeConfiguration},
		{&models.InternalConsistencyError{Violations: []string{"budget"}}, http.StatusInternalServerError, ErrCodeInternal},
		{&solver.AdapterError{Backend: "bnb", Err: errors.New("singular")}, http.StatusBadGateway, ErrCodeSolver},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tt := range tests {
		status, appErr := FromError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, appErr.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: run missing", NewAppError(ErrCodeNotFound, "run missing").Error())
	assert.Equal(t, "INFEASIBLE: no team - infeasible", NewAppError(ErrCodeInfeasible, "no team", "infeasible").Error())
}
