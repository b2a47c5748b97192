package models

import (
	"fmt"
	"strings"
)

// ValidationError reports structurally invalid input. It is raised before any
// model is built.
type ValidationError struct {
	Field  string
	Row    int // 1-based data row, 0 when the problem is not tied to a row
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation error")
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// ConfigurationError reports rules or pool shapes that make the model
// undefined, detected before the solver is called.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// InternalConsistencyError means the rounded solver answer violates a
// declared constraint.
type InternalConsistencyError struct {
	Violations []string
}

func (e *InternalConsistencyError) Error() string {
	return "internal consistency error: " + strings.Join(e.Violations, "; ")
}
