// Package rollframe provides windowed aggregation over Apache Arrow columns.
// This package is the sole public API for the library.
//
// For every row of an input column the engine computes an aggregate over a
// neighborhood of rows whose bounds may be fixed, per-row variable,
// group-relative, or group-and-time-range-relative. Results come back as a
// fresh Arrow column with correct validity and null count; the caller owns
// the returned array.
package rollframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/paveg/rollframe/internal/agg"
	"github.com/paveg/rollframe/internal/column"
	"github.com/paveg/rollframe/internal/config"
	"github.com/paveg/rollframe/internal/errors"
	"github.com/paveg/rollframe/internal/gather"
	"github.com/paveg/rollframe/internal/grouping"
	"github.com/paveg/rollframe/internal/kernel"
	"github.com/paveg/rollframe/internal/logutil"
	"github.com/paveg/rollframe/internal/udf"
	"github.com/paveg/rollframe/internal/window"
)

// Aggregation describes what to compute over each row's window.
type Aggregation struct {
	desc agg.Aggregation
}

// Sum aggregates the window by addition. Output keeps the input type.
func Sum() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.Sum}} }

// Mean averages the valid window elements. Output is float64.
func Mean() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.Mean}} }

// Min takes the smallest valid window element. Strings resolve through the
// index-extremum path.
func Min() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.Min}} }

// Max takes the largest valid window element.
func Max() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.Max}} }

// CountValid counts the non-null window elements. Output is int32.
func CountValid() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.CountValid}} }

// CountAll counts every window position regardless of validity.
func CountAll() Aggregation { return Aggregation{desc: agg.Aggregation{Kind: agg.CountAll}} }

// ParamRole annotates one positional parameter of a low-level UDF.
type ParamRole = agg.ParamRole

// Parameter roles for the positional UDF dialect.
const (
	ParamWindow = agg.RoleWindow
	ParamSize   = agg.RoleSize
	ParamRow    = agg.RoleRow
)

// UDF builds a user-defined aggregation from expression-dialect source: a
// single expression over the bound names window ([]float64), size and row.
// Output defaults to float64.
func UDF(source, entryPoint string) Aggregation {
	return Aggregation{desc: agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     source,
		EntryPoint: entryPoint,
		Dialect:    agg.UDFExpression,
	}}
}

// UDFPositional builds a user-defined aggregation from low-level source
// referencing arg0..argN; roles maps each position onto a bound name.
func UDFPositional(source, entryPoint string, roles ...ParamRole) Aggregation {
	return Aggregation{desc: agg.Aggregation{
		Kind:       agg.UserDefined,
		Source:     source,
		EntryPoint: entryPoint,
		Dialect:    agg.UDFPositional,
		Params:     roles,
	}}
}

// WithOutputType declares the UDF output column type (float64 or int64).
func (a Aggregation) WithOutputType(dtype arrow.DataType) Aggregation {
	a.desc.Output = dtype
	return a
}

// String returns the aggregation name.
func (a Aggregation) String() string { return a.desc.Kind.String() }

// RollingWindow computes the aggregate over a fixed window of preceding
// rows (including the row itself) and following rows. Rows whose window
// holds fewer than minPeriods valid elements come back null. Empty input
// returns an empty column of the output type. A nil allocator selects the
// default Go allocator.
func RollingWindow(
	input arrow.Array,
	preceding, following, minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	const op = "RollingWindow"
	if minPeriods < 0 {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf("min_periods must be non-negative, got %d", minPeriods))
	}
	return launch(op, input, window.Fixed{Before: preceding, After: following}, minPeriods, aggr, mem)
}

// RollingWindowVariable computes the aggregate with per-row window extents.
// Both extent columns must be int32 and match the input length.
func RollingWindowVariable(
	input arrow.Array,
	preceding, following arrow.Array,
	minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	const op = "RollingWindowVariable"
	if minPeriods < 0 {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf("min_periods must be non-negative, got %d", minPeriods))
	}

	before, ok := preceding.(*array.Int32)
	if !ok {
		return nil, errors.NewInvalidArgumentError(op, "preceding window column must be int32, got "+preceding.DataType().Name())
	}
	after, ok := following.(*array.Int32)
	if !ok {
		return nil, errors.NewInvalidArgumentError(op, "following window column must be int32, got "+following.DataType().Name())
	}
	if before.Len() != input.Len() || after.Len() != input.Len() {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf(
			"window columns must match input length %d, got %d and %d", input.Len(), before.Len(), after.Len()))
	}

	return launch(op, input, window.PerRow{Before: before, After: after}, minPeriods, aggr, mem)
}

// GroupedRollingWindow computes the aggregate with windows clamped at group
// boundaries. groupKeys must be presorted; each key column matches the
// input length. minPeriods must be positive for the grouped variants.
func GroupedRollingWindow(
	groupKeys []arrow.Array,
	input arrow.Array,
	preceding, following, minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	const op = "GroupedRollingWindow"
	if minPeriods <= 0 {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf("min_periods must be positive, got %d", minPeriods))
	}

	offsets, labels, err := grouping.Offsets(op, groupKeys, input.Len())
	if err != nil {
		return nil, err
	}

	bounds := window.Grouped{Offsets: offsets, Labels: labels, Before: preceding, After: following}
	return launch(op, input, bounds, minPeriods, aggr, mem)
}

// GroupedTimeRangeRollingWindow bounds each row's window by a timestamp
// distance of whole days instead of a row count, within the row's group.
// The timestamp column must be date32 or a timestamp resolution, sorted
// ascending within each group.
func GroupedTimeRangeRollingWindow(
	groupKeys []arrow.Array,
	timestamps arrow.Array,
	input arrow.Array,
	precedingDays, followingDays, minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	const op = "GroupedTimeRangeRollingWindow"
	if minPeriods <= 0 {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf("min_periods must be positive, got %d", minPeriods))
	}
	if _, ok := window.DayMultiplier(timestamps.DataType()); !ok {
		return nil, errors.NewInvalidArgumentError(op,
			"unsupported timestamp resolution "+timestamps.DataType().Name())
	}
	if timestamps.Len() != input.Len() {
		return nil, errors.NewInvalidArgumentError(op, fmt.Sprintf(
			"timestamp column length %d does not match input length %d", timestamps.Len(), input.Len()))
	}

	offsets, labels, err := grouping.Offsets(op, groupKeys, input.Len())
	if err != nil {
		return nil, err
	}

	bounds := window.NewGroupedRange(offsets, labels, timestamps, precedingDays, followingDays)
	return launch(op, input, bounds, minPeriods, aggr, mem)
}

// launch routes a validated call to the dispatcher and the right kernel.
func launch(
	op string,
	input arrow.Array,
	bounds window.Bounds,
	minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	if aggr.desc.Kind == agg.UserDefined {
		return launchUDF(op, input, bounds, minPeriods, aggr, mem)
	}

	outType, err := agg.Resolve(op, input.DataType(), aggr.desc.Kind)
	if err != nil {
		return nil, err
	}
	if input.Len() == 0 {
		return column.Empty(mem, outType), nil
	}

	if agg.IsArgExtremum(input.DataType(), aggr.desc.Kind) {
		src := input.(*array.String)
		indices, err := kernel.LaunchArgExtremum(op, src, bounds, minPeriods, aggr.desc.Kind, mem)
		if err != nil {
			return nil, err
		}
		defer indices.Release()
		return gather.TakeStrings(mem, src, indices.(*array.Int32)), nil
	}

	return kernel.Launch(op, input, bounds, minPeriods, aggr.desc.Kind, outType, mem)
}

// launchUDF checks the UDF-path restrictions, compiles (or re-uses) the
// program and runs the generic kernel shape.
func launchUDF(
	op string,
	input arrow.Array,
	bounds window.Bounds,
	minPeriods int,
	aggr Aggregation,
	mem memory.Allocator,
) (arrow.Array, error) {
	if input.NullN() > 0 {
		return nil, errors.NewUDFRestrictionError(op, "user-defined aggregations do not support inputs containing nulls")
	}

	prog, err := udf.Compile(op, aggr.desc)
	if err != nil {
		return nil, err
	}
	if input.Len() == 0 {
		return column.Empty(mem, prog.Output()), nil
	}
	return kernel.LaunchUDF(op, input, bounds, minPeriods, prog, prog.Output(), mem)
}

// Config is the engine configuration.
type Config = config.Config

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config { return config.Default() }

// Configure validates and installs the global engine configuration.
func Configure(c Config) error { return config.Set(c) }

// CurrentConfig returns a copy of the global engine configuration.
func CurrentConfig() Config { return config.Get() }

// LoadConfigFromFile reads a YAML or JSON configuration file on top of the
// defaults; ROLLFRAME_* environment variables are applied last.
func LoadConfigFromFile(path string) (Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return Config{}, err
	}
	return config.LoadFromEnv(cfg), nil
}

// SetLogger installs the logger used for kernel-launch and UDF-cache
// diagnostics. Passing nil restores the nop logger.
func SetLogger(l *zap.Logger) { logutil.SetLogger(l) }
