// Package kernel implements the parallel per-row windowed reduction. One
// logical worker serves each output row; rows are scheduled in fixed-size
// collective groups whose validity bits are assembled into whole 64-bit
// words and written with a single store per word. Per-group valid-row
// counts fold into a global total with an atomic add, so the final null
// count is deterministic regardless of scheduling order.
package kernel

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/paveg/rollframe/internal/agg"
	"github.com/paveg/rollframe/internal/column"
	"github.com/paveg/rollframe/internal/config"
	"github.com/paveg/rollframe/internal/errors"
	"github.com/paveg/rollframe/internal/logutil"
	"github.com/paveg/rollframe/internal/parallel"
	"github.com/paveg/rollframe/internal/window"
)

// Sentinel indices marking "no valid element in window" for the
// arg-extremum path. Both are outside any valid row index and distinct
// from each other, so the gather step nullifies them.
const (
	ArgMinSentinel int32 = -1
	ArgMaxSentinel int32 = -2
)

// span is one collective group's row range, word-aligned at lo.
type span struct {
	lo, hi int
}

// numericArray is the read side of the column contract the typed kernels
// need: length, per-element value, per-element validity bit.
type numericArray[T any] interface {
	Len() int
	Value(i int) T
	IsNull(i int) bool
}

// Launch runs a builtin aggregation over every row's window and returns the
// finished output column. The (type, kind) combination must already have
// passed dispatch; outType is the resolved output type.
func Launch(
	op string,
	input arrow.Array,
	bounds window.Bounds,
	minPeriods int,
	kind agg.Kind,
	outType arrow.DataType,
	mem memory.Allocator,
) (arrow.Array, error) {
	cfg := config.Get()
	if cfg.VerboseLogging {
		logutil.L().Debug("kernel launch",
			zap.String("op", op),
			zap.String("agg", kind.String()),
			zap.String("type", input.DataType().Name()),
			zap.Int("rows", input.Len()))
	}

	if kind == agg.CountValid || kind == agg.CountAll {
		return launchCount(op, input, bounds, minPeriods, kind, mem, cfg)
	}

	switch arr := input.(type) {
	case *array.Int8:
		return launchNumeric[int8](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Int16:
		return launchNumeric[int16](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Int32:
		return launchNumeric[int32](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Int64:
		return launchNumeric[int64](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Uint8:
		return launchNumeric[uint8](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Uint16:
		return launchNumeric[uint16](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Uint32:
		return launchNumeric[uint32](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Uint64:
		return launchNumeric[uint64](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Float32:
		return launchNumeric[float32](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Float64:
		return launchNumeric[float64](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Date32:
		return launchNumeric[arrow.Date32](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	case *array.Timestamp:
		return launchNumeric[arrow.Timestamp](op, arr, input.DataType(), bounds, minPeriods, kind, mem, cfg)
	default:
		return nil, errors.NewUnsupportedAggregationError(op, input.DataType().Name(), kind.String())
	}
}

// LaunchArgExtremum runs the variable-length MIN/MAX path: the output is a
// column of row indices into the input, with a sentinel where a window had
// no usable element. Every row reports valid here; invalidation happens in
// the gather step that consumes the indices.
func LaunchArgExtremum(
	op string,
	input *array.String,
	bounds window.Bounds,
	minPeriods int,
	kind agg.Kind,
	mem memory.Allocator,
) (arrow.Array, error) {
	cfg := config.Get()
	n := input.Len()

	sentinel := ArgMinSentinel
	if kind == agg.Max {
		sentinel = ArgMaxSentinel
	}

	bld := column.NewBuilder(mem, arrow.PrimitiveTypes.Int32, n)
	out := column.Values[int32](bld.ValuesBytes())

	_, err := run(n, cfg, bld.ValidityBytes(), func(i int) bool {
		start, end := clampWindow(i, n, bounds)
		best := sentinel
		count := 0
		for j := start; j < end; j++ {
			if input.IsNull(j) {
				continue
			}
			if best < 0 {
				best = int32(j)
			} else if kind == agg.Min {
				if input.Value(j) < input.Value(int(best)) {
					best = int32(j)
				}
			} else if input.Value(j) > input.Value(int(best)) {
				best = int32(j)
			}
			count++
		}
		if count < minPeriods {
			best = sentinel
		}
		out[i] = best
		return true
	})
	if err != nil {
		bld.Release()
		return nil, errors.NewKernelFailureError(op, err)
	}

	// Arg-extremum rows are all valid by construction; the gather step
	// applies the real invalidation via the sentinels.
	return bld.Finish(n), nil
}

// clampWindow turns the policy's (preceding, following) pair for row i into
// a half-open range clamped to [0, n).
func clampWindow(i, n int, bounds window.Bounds) (int, int) {
	start := i - bounds.Preceding(i) + 1
	if start < 0 {
		start = 0
	}
	end := i + bounds.Following(i) + 1
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

// launchNumeric serves SUM/MEAN/MIN/MAX over fixed-width values. MEAN
// reuses the SUM accumulation; the division happens in the output store.
func launchNumeric[T constraints.Integer | constraints.Float](
	op string,
	arr numericArray[T],
	dtype arrow.DataType,
	bounds window.Bounds,
	minPeriods int,
	kind agg.Kind,
	mem memory.Allocator,
	cfg config.Config,
) (arrow.Array, error) {
	n := arr.Len()

	var (
		bld   *column.Builder
		rowFn func(i int) bool
	)

	switch kind {
	case agg.Sum:
		bld = column.NewBuilder(mem, dtype, n)
		out := column.Values[T](bld.ValuesBytes())
		rowFn = func(i int) bool {
			start, end := clampWindow(i, n, bounds)
			var acc T
			count := 0
			for j := start; j < end; j++ {
				if arr.IsNull(j) {
					continue
				}
				acc += arr.Value(j)
				count++
			}
			out[i] = acc
			return count >= minPeriods
		}

	case agg.Mean:
		bld = column.NewBuilder(mem, arrow.PrimitiveTypes.Float64, n)
		out := column.Values[float64](bld.ValuesBytes())
		rowFn = func(i int) bool {
			start, end := clampWindow(i, n, bounds)
			var acc float64
			count := 0
			for j := start; j < end; j++ {
				if arr.IsNull(j) {
					continue
				}
				acc += float64(arr.Value(j))
				count++
			}
			if count > 0 {
				out[i] = acc / float64(count)
			} else {
				out[i] = 0
			}
			return count >= minPeriods
		}

	case agg.Min, agg.Max:
		bld = column.NewBuilder(mem, dtype, n)
		out := column.Values[T](bld.ValuesBytes())
		takeMin := kind == agg.Min
		rowFn = func(i int) bool {
			start, end := clampWindow(i, n, bounds)
			var best T
			count := 0
			for j := start; j < end; j++ {
				if arr.IsNull(j) {
					continue
				}
				v := arr.Value(j)
				if count == 0 || (takeMin && v < best) || (!takeMin && v > best) {
					best = v
				}
				count++
			}
			out[i] = best
			return count >= minPeriods
		}

	default:
		return nil, errors.NewUnsupportedAggregationError(op, dtype.Name(), kind.String())
	}

	valid, err := run(n, cfg, bld.ValidityBytes(), rowFn)
	if err != nil {
		bld.Release()
		return nil, errors.NewKernelFailureError(op, err)
	}
	return bld.Finish(int(valid)), nil
}

// launchCount serves COUNT_VALID and COUNT_ALL for any input type carrying
// a validity bitmap; values are never read.
func launchCount(
	op string,
	input arrow.Array,
	bounds window.Bounds,
	minPeriods int,
	kind agg.Kind,
	mem memory.Allocator,
	cfg config.Config,
) (arrow.Array, error) {
	n := input.Len()
	countAll := kind == agg.CountAll

	bld := column.NewBuilder(mem, arrow.PrimitiveTypes.Int32, n)
	out := column.Values[int32](bld.ValuesBytes())

	valid, err := run(n, cfg, bld.ValidityBytes(), func(i int) bool {
		start, end := clampWindow(i, n, bounds)
		count := 0
		if countAll {
			count = end - start
		} else {
			for j := start; j < end; j++ {
				if !input.IsNull(j) {
					count++
				}
			}
		}
		out[i] = int32(count)
		return count >= minPeriods
	})
	if err != nil {
		bld.Release()
		return nil, errors.NewKernelFailureError(op, err)
	}
	return bld.Finish(int(valid)), nil
}

// run executes rowFn for every row, sequentially below the parallel
// threshold and on the worker pool above it. Each collective group builds
// its validity words locally; the returned total is the number of valid
// rows. A panic inside any worker aborts the whole launch.
func run(n int, cfg config.Config, validity []byte, rowFn func(i int) bool) (int64, error) {
	spans := makeSpans(n, cfg.ChunkSize)

	var total atomic.Int64
	process := func(s span) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("row worker panic: %v", r)
			}
		}()
		total.Add(processSpan(s, validity, rowFn))
		return nil
	}

	if n < cfg.ParallelThreshold || len(spans) < 2 {
		for _, s := range spans {
			if err := process(s); err != nil {
				return 0, err
			}
		}
		return total.Load(), nil
	}

	pool := parallel.NewWorkerPool(cfg.WorkerPoolSize)
	defer pool.Close()

	errs := parallel.ProcessIndexed(pool, spans, func(_ int, s span) error {
		return process(s)
	})
	for _, err := range errs {
		if err != nil {
			return 0, err
		}
	}
	return total.Load(), nil
}

// processSpan evaluates one collective group: full 64-row words first, with
// one store per word, then the bit-granular tail of the final group.
func processSpan(s span, validity []byte, rowFn func(i int) bool) int64 {
	var valid int64
	i := s.lo
	for ; i+64 <= s.hi; i += 64 {
		var word uint64
		for b := 0; b < 64; b++ {
			if rowFn(i + b) {
				word |= 1 << b
				valid++
			}
		}
		column.WriteValidityWord(validity, i/64, word)
	}
	for ; i < s.hi; i++ {
		ok := rowFn(i)
		column.WriteValidityBit(validity, i, ok)
		if ok {
			valid++
		}
	}
	return valid
}

// makeSpans cuts [0, n) into collective groups of chunkSize rows. chunkSize
// is a multiple of 64 (config invariant), so only the final span can have a
// partial word.
func makeSpans(n, chunkSize int) []span {
	if n == 0 {
		return nil
	}
	spans := make([]span, 0, (n+chunkSize-1)/chunkSize)
	for lo := 0; lo < n; lo += chunkSize {
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo: lo, hi: hi})
	}
	return spans
}
