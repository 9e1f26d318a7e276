// Package errors provides standardized error types for rolling-window operations.
// This package defines RollingError for consistent error handling across
// all public APIs, with an error-kind taxonomy, operation context and
// error wrapping support.
package errors

import (
	"fmt"
)

// Kind classifies a RollingError. Every failure the engine can produce maps
// to exactly one kind, and callers are expected to branch on it rather than
// on message text.
type Kind int

const (
	// KindInvalidArgument covers caller mistakes detected before any kernel
	// work: negative min_periods, mismatched array or group sizes, zero
	// grouping columns, wrong window-array element type, unsupported
	// timestamp resolution.
	KindInvalidArgument Kind = iota

	// KindUnsupportedOperation marks a (type, aggregation) combination that
	// is not in the dispatch matrix. No kernel is launched.
	KindUnsupportedOperation

	// KindUDFRestriction marks a user-defined aggregation that violates a
	// UDF-path precondition (nulls in the input, unknown dialect, missing
	// parameter annotations). Detected before compilation.
	KindUDFRestriction

	// KindCompileFailure marks user source that failed to compile. The
	// compiler diagnostic is carried as the cause.
	KindCompileFailure

	// KindKernelFailure marks a fault inside a launched kernel. Fatal to
	// the call; there is no row-level retry.
	KindKernelFailure
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindUnsupportedOperation:
		return "unsupported operation"
	case KindUDFRestriction:
		return "udf restriction"
	case KindCompileFailure:
		return "compile failure"
	case KindKernelFailure:
		return "kernel failure"
	default:
		return "unknown"
	}
}

// RollingError represents standardized errors across all rolling-window operations
type RollingError struct {
	Kind    Kind   // Error classification from the taxonomy above
	Op      string // Operation name (e.g., "RollingWindow", "GroupedRollingWindow")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *RollingError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s on column '%s': %s", e.Op, e.Kind, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *RollingError) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is()
func (e *RollingError) Is(target error) bool {
	if re, ok := target.(*RollingError); ok {
		return e.Kind == re.Kind && e.Op == re.Op && e.Message == re.Message
	}
	return false
}

// IsKind reports whether err is a RollingError of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if re, ok := err.(*RollingError); ok {
			return re.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Common error constructors for consistent error creation

// NewInvalidArgumentError creates an error for invalid operation inputs
func NewInvalidArgumentError(op, message string) *RollingError {
	return &RollingError{
		Kind:    KindInvalidArgument,
		Op:      op,
		Message: message,
	}
}

// NewUnsupportedAggregationError creates an error for a (type, aggregation)
// combination outside the dispatch matrix
func NewUnsupportedAggregationError(op, typeName, aggName string) *RollingError {
	return &RollingError{
		Kind:    KindUnsupportedOperation,
		Op:      op,
		Message: fmt.Sprintf("aggregation %s is not supported for type %s", aggName, typeName),
	}
}

// NewUDFRestrictionError creates an error for a violated UDF precondition
func NewUDFRestrictionError(op, message string) *RollingError {
	return &RollingError{
		Kind:    KindUDFRestriction,
		Op:      op,
		Message: message,
	}
}

// NewCompileFailureError creates an error carrying a UDF compiler diagnostic
func NewCompileFailureError(op string, cause error) *RollingError {
	return &RollingError{
		Kind:    KindCompileFailure,
		Op:      op,
		Message: "user-defined aggregation failed to compile",
		Cause:   cause,
	}
}

// NewKernelFailureError creates an error for a fault inside a launched kernel
func NewKernelFailureError(op string, cause error) *RollingError {
	return &RollingError{
		Kind:    KindKernelFailure,
		Op:      op,
		Message: "kernel execution failed",
		Cause:   cause,
	}
}
