package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stitts-dev/ff-epl/internal/models"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewAppError(code string, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeInfeasible    = "INFEASIBLE"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeSolver        = "SOLVER_ERROR"
	ErrCodeUnavailable   = "SERVICE_UNAVAILABLE"
)

// FromError maps the optimiser's error taxonomy to an HTTP status and an
// AppError.
func FromError(err error) (int, *AppError) {
	var (
		validation    *models.ValidationError
		configuration *models.ConfigurationError
		consistency   *models.InternalConsistencyError
		adapter       *solver.AdapterError
		appErr        *AppError
	)
	switch {
	case errors.As(err, &appErr):
		return http.StatusBadRequest, appErr
	case errors.As(err, &validation):
		return http.StatusBadRequest, NewAppError(ErrCodeValidation, "Invalid player data", validation.Error())
	case errors.As(err, &configuration):
		return http.StatusUnprocessableEntity, NewAppError(ErrCodeConfiguration, "Rules cannot be satisfied by this pool", configuration.Error())
	case errors.As(err, &consistency):
		return http.StatusInternalServerError, NewAppError(ErrCodeInternal, "Solver answer failed validation", consistency.Error())
	case errors.As(err, &adapter):
		return http.StatusBadGateway, NewAppError(ErrCodeSolver, "Solver backend failed", adapter.Error())
	default:
		return http.StatusInternalServerError, NewAppError(ErrCodeInternal, "Internal server error")
	}
}
