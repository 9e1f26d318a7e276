package kernel

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/rollframe/internal/column"
	"github.com/paveg/rollframe/internal/config"
	"github.com/paveg/rollframe/internal/errors"
	"github.com/paveg/rollframe/internal/window"
)

// RowEvaluator is the generic kernel shape a compiled user-defined
// aggregation plugs into: one evaluation per output row over that row's
// window values.
type RowEvaluator interface {
	Eval(window []float64, size, row int) (float64, error)
}

// LaunchUDF runs a compiled user-defined aggregation over every row's
// window. The engine has already rejected inputs containing nulls, so every
// window element contributes and the valid count equals the window size.
// An evaluation error aborts the whole launch.
func LaunchUDF(
	op string,
	input arrow.Array,
	bounds window.Bounds,
	minPeriods int,
	eval RowEvaluator,
	output arrow.DataType,
	mem memory.Allocator,
) (arrow.Array, error) {
	cfg := config.Get()
	n := input.Len()

	value, ok := floatAccessor(input)
	if !ok {
		return nil, errors.NewUDFRestrictionError(op,
			"input type "+input.DataType().Name()+" is not supported by the UDF path")
	}

	bld := column.NewBuilder(mem, output, n)

	var store func(i int, v float64)
	switch output.ID() {
	case arrow.INT64:
		out := column.Values[int64](bld.ValuesBytes())
		store = func(i int, v float64) { out[i] = int64(v) }
	default:
		out := column.Values[float64](bld.ValuesBytes())
		store = func(i int, v float64) { out[i] = v }
	}

	valid, err := run(n, cfg, bld.ValidityBytes(), func(i int) bool {
		start, end := clampWindow(i, n, bounds)
		win := make([]float64, end-start)
		for j := start; j < end; j++ {
			win[j-start] = value(j)
		}
		v, evalErr := eval.Eval(win, len(win), i)
		if evalErr != nil {
			panic(evalErr) // recovered at the launch boundary
		}
		store(i, v)
		return len(win) >= minPeriods
	})
	if err != nil {
		bld.Release()
		return nil, errors.NewKernelFailureError(op, err)
	}
	return bld.Finish(int(valid)), nil
}

// floatAccessor adapts any fixed-width numeric or temporal column to the
// float64 view the UDF environment exposes.
func floatAccessor(input arrow.Array) (func(i int) float64, bool) {
	switch arr := input.(type) {
	case *array.Int8:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Int16:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Int32:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Int64:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Uint8:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Uint16:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Uint32:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Uint64:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Float32:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Float64:
		return func(i int) float64 { return arr.Value(i) }, true
	case *array.Date32:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	case *array.Timestamp:
		return func(i int) float64 { return float64(arr.Value(i)) }, true
	default:
		return nil, false
	}
}
