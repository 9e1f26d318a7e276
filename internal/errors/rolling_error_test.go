package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingErrorMessage(t *testing.T) {
	err := NewInvalidArgumentError("RollingWindow", "min_periods must be non-negative, got -1")
	assert.Equal(t, "RollingWindow: invalid argument: min_periods must be non-negative, got -1", err.Error())

	withColumn := &RollingError{Kind: KindInvalidArgument, Op: "Sort", Column: "ts", Message: "bad"}
	assert.Contains(t, withColumn.Error(), "column 'ts'")
}

func TestRollingErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("unexpected token")
	err := NewCompileFailureError("RollingWindow", cause)
	require.ErrorIs(t, err, cause)
}

func TestIsKind(t *testing.T) {
	err := NewUnsupportedAggregationError("RollingWindow", "utf8", "SUM")
	assert.True(t, IsKind(err, KindUnsupportedOperation))
	assert.False(t, IsKind(err, KindInvalidArgument))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsKind(wrapped, KindUnsupportedOperation))

	assert.False(t, IsKind(nil, KindInvalidArgument))
	assert.False(t, IsKind(fmt.Errorf("plain"), KindInvalidArgument))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid argument", KindInvalidArgument.String())
	assert.Equal(t, "unsupported operation", KindUnsupportedOperation.String())
	assert.Equal(t, "udf restriction", KindUDFRestriction.String())
	assert.Equal(t, "compile failure", KindCompileFailure.String())
	assert.Equal(t, "kernel failure", KindKernelFailure.String())
}
