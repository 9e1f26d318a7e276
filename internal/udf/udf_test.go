package udf

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/rollframe/internal/agg"
	"github.com/paveg/rollframe/internal/errors"
)

func TestCompileExpressionDialect(t *testing.T) {
	prog, err := Compile("test", agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     "sum(window) / size",
		EntryPoint: "window_mean",
		Dialect:    agg.UDFExpression,
	})
	require.NoError(t, err)

	got, err := prog.Eval([]float64{1, 2, 3}, 3, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)

	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Float64, prog.Output()))
}

func TestCompilePositionalDialect(t *testing.T) {
	prog, err := Compile("test", agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     "maxOf(arg0) - minOf(arg0) + arg2 * 0",
		EntryPoint: "window_range",
		Dialect:    agg.UDFPositional,
		Params:     []agg.ParamRole{agg.RoleWindow, agg.RoleSize, agg.RoleRow},
	})
	require.NoError(t, err)

	got, err := prog.Eval([]float64{3, 9, 4}, 3, 5)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got, 1e-12)
}

func TestCompileDeclaredOutputType(t *testing.T) {
	prog, err := Compile("test", agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     "size",
		EntryPoint: "window_size",
		Dialect:    agg.UDFExpression,
		Output:     arrow.PrimitiveTypes.Int64,
	})
	require.NoError(t, err)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, prog.Output()))
}

func TestCompileRestrictions(t *testing.T) {
	tests := []struct {
		name string
		a    agg.Aggregation
	}{
		{
			name: "empty source",
			a:    agg.Aggregation{Kind: agg.UserDefined, Dialect: agg.UDFExpression},
		},
		{
			name: "positional without annotations",
			a: agg.Aggregation{
				Kind: agg.UserDefined, Source: "arg0", Dialect: agg.UDFPositional,
			},
		},
		{
			name: "unknown dialect",
			a: agg.Aggregation{
				Kind: agg.UserDefined, Source: "size", Dialect: agg.UDFDialect(99),
			},
		},
		{
			name: "unsupported output type",
			a: agg.Aggregation{
				Kind: agg.UserDefined, Source: "size", Dialect: agg.UDFExpression,
				Output: arrow.BinaryTypes.String,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("test", tt.a)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindUDFRestriction))
		})
	}
}

func TestCompileFailureCarriesDiagnostic(t *testing.T) {
	_, err := Compile("test", agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     "sum(window",
		EntryPoint: "broken",
		Dialect:    agg.UDFExpression,
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindCompileFailure))

	var re *errors.RollingError
	require.ErrorAs(t, err, &re)
	assert.Error(t, re.Cause)
}

func TestCacheKeyDependsOnSourceAndEntryPoint(t *testing.T) {
	k1 := cacheKey("sum(window)", "a")
	k2 := cacheKey("sum(window)", "b")
	k3 := cacheKey("sum(window) ", "a")
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, k1, cacheKey("sum(window)", "a"))
}

func TestCompileReusesCachedProgram(t *testing.T) {
	a := agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     "minOf(window)",
		EntryPoint: "cached_min",
		Dialect:    agg.UDFExpression,
	}

	first, err := Compile("test", a)
	require.NoError(t, err)
	second, err := Compile("test", a)
	require.NoError(t, err)

	// Same compiled artifact behind both wrappers.
	assert.Same(t, first.prog, second.prog)
}

func TestAssemblePositionalSubstitution(t *testing.T) {
	src, err := assemble("test", agg.Aggregation{
		Kind:    agg.UserDefined,
		Source:  "sum(arg0) / arg1",
		Dialect: agg.UDFPositional,
		Params:  []agg.ParamRole{agg.RoleWindow, agg.RoleSize},
	})
	require.NoError(t, err)
	assert.Equal(t, "(sum(window) / size)", src)
}
