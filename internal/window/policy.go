// Package window implements the per-row boundary calculators for rolling
// windows. A policy is a pair of pure functions of the row index; for row i
// the window covers rows [i-Preceding(i)+1, i+Following(i)+1), clamped to
// the column bounds by the kernel. Preceding counts include row i itself.
package window

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Bounds produces the window extent for each row. Implementations are pure:
// no shared mutable state, safe to call concurrently from kernel workers.
type Bounds interface {
	Preceding(i int) int
	Following(i int) int
}

// Fixed applies the same preceding/following count to every row.
type Fixed struct {
	Before int
	After  int
}

func (f Fixed) Preceding(int) int { return f.Before }
func (f Fixed) Following(int) int { return f.After }

// PerRow reads the window extent for each row from caller-supplied arrays.
// The engine validates length and element type before constructing this.
type PerRow struct {
	Before *array.Int32
	After  *array.Int32
}

func (p PerRow) Preceding(i int) int { return int(p.Before.Value(i)) }
func (p PerRow) Following(i int) int { return int(p.After.Value(i)) }

// Grouped clamps a fixed window at group boundaries so no window crosses
// into a neighboring group.
type Grouped struct {
	Offsets []int // group start indices; first 0, last = column length
	Labels  []int // per-row group index
	Before  int
	After   int
}

func (g Grouped) Preceding(i int) int {
	start := g.Offsets[g.Labels[i]]
	if avail := i - start + 1; avail < g.Before {
		return avail
	}
	return g.Before
}

func (g Grouped) Following(i int) int {
	end := g.Offsets[g.Labels[i]+1]
	if avail := end - 1 - i; avail < g.After {
		return avail
	}
	return g.After
}

// GroupedRange bounds the window by a timestamp distance instead of a row
// count, still confined to the row's group. Timestamps must be sorted
// ascending within each group; that is the caller's contract and is not
// re-validated here.
type GroupedRange struct {
	Offsets    []int
	Labels     []int
	ts         func(i int) int64
	BeforeTick int64
	AfterTick  int64
}

func (g *GroupedRange) Preceding(i int) int {
	start := g.Offsets[g.Labels[i]]
	lowest := g.ts(i) - g.BeforeTick
	p := 1
	for j := i - 1; j >= start && g.ts(j) >= lowest; j-- {
		p++
	}
	return p
}

func (g *GroupedRange) Following(i int) int {
	end := g.Offsets[g.Labels[i]+1]
	highest := g.ts(i) + g.AfterTick
	f := 0
	for j := i + 1; j < end && g.ts(j) <= highest; j++ {
		f++
	}
	return f
}

// Ticks per day for each supported temporal resolution.
var dayTicks = map[arrow.TimeUnit]int64{
	arrow.Second:      86_400,
	arrow.Millisecond: 86_400_000,
	arrow.Microsecond: 86_400_000_000,
	arrow.Nanosecond:  86_400_000_000_000,
}

// DayMultiplier returns the number of native ticks per whole day for a
// temporal column type, or false if the type is not a supported resolution.
func DayMultiplier(dtype arrow.DataType) (int64, bool) {
	switch t := dtype.(type) {
	case *arrow.Date32Type:
		return 1, true
	case *arrow.TimestampType:
		m, ok := dayTicks[t.Unit]
		return m, ok
	}
	return 0, false
}

// NewGroupedRange builds the time-range policy over a temporal column whose
// type has already passed DayMultiplier. Durations are whole days converted
// to the column's tick resolution.
func NewGroupedRange(offsets, labels []int, timestamps arrow.Array, precedingDays, followingDays int) *GroupedRange {
	mult, _ := DayMultiplier(timestamps.DataType())

	var ts func(i int) int64
	switch arr := timestamps.(type) {
	case *array.Date32:
		ts = func(i int) int64 { return int64(arr.Value(i)) }
	case *array.Timestamp:
		ts = func(i int) int64 { return int64(arr.Value(i)) }
	}

	return &GroupedRange{
		Offsets:    offsets,
		Labels:     labels,
		ts:         ts,
		BeforeTick: int64(precedingDays) * mult,
		AfterTick:  int64(followingDays) * mult,
	}
}
