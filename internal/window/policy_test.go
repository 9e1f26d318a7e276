package window

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBounds(t *testing.T) {
	b := Fixed{Before: 2, After: 1}

	for _, i := range []int{0, 3, 17} {
		assert.Equal(t, 2, b.Preceding(i))
		assert.Equal(t, 1, b.Following(i))
	}
}

func TestPerRowBounds(t *testing.T) {
	mem := memory.NewGoAllocator()

	bld := array.NewInt32Builder(mem)
	bld.AppendValues([]int32{1, 2, 3}, nil)
	before := bld.NewInt32Array()
	defer before.Release()

	bld.AppendValues([]int32{0, 1, 0}, nil)
	after := bld.NewInt32Array()
	defer after.Release()

	b := PerRow{Before: before, After: after}

	assert.Equal(t, 1, b.Preceding(0))
	assert.Equal(t, 3, b.Preceding(2))
	assert.Equal(t, 1, b.Following(1))
	assert.Equal(t, 0, b.Following(2))
}

func TestGroupedBoundsClampAtGroupEdges(t *testing.T) {
	// Two groups of three rows each; requested extents far exceed them.
	offsets := []int{0, 3, 6}
	labels := []int{0, 0, 0, 1, 1, 1}
	b := Grouped{Offsets: offsets, Labels: labels, Before: 5, After: 5}

	tests := []struct {
		name      string
		row       int
		preceding int
		following int
	}{
		{name: "first row of first group", row: 0, preceding: 1, following: 2},
		{name: "last row of first group", row: 2, preceding: 3, following: 0},
		{name: "first row of second group", row: 3, preceding: 1, following: 2},
		{name: "last row of second group", row: 5, preceding: 3, following: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.preceding, b.Preceding(tt.row))
			assert.Equal(t, tt.following, b.Following(tt.row))
		})
	}
}

func TestGroupedBoundsSmallRequest(t *testing.T) {
	offsets := []int{0, 4}
	labels := []int{0, 0, 0, 0}
	b := Grouped{Offsets: offsets, Labels: labels, Before: 2, After: 1}

	assert.Equal(t, 2, b.Preceding(2))
	assert.Equal(t, 1, b.Following(2))
}

func TestGroupedRangeBounds(t *testing.T) {
	mem := memory.NewGoAllocator()

	// Single group, day-resolution timestamps 0,1,2,10,11.
	bld := array.NewDate32Builder(mem)
	bld.AppendValues([]arrow.Date32{0, 1, 2, 10, 11}, nil)
	ts := bld.NewDate32Array()
	defer ts.Release()

	offsets := []int{0, 5}
	labels := []int{0, 0, 0, 0, 0}
	b := NewGroupedRange(offsets, labels, ts, 1, 1)

	tests := []struct {
		row       int
		preceding int
		following int
	}{
		{row: 0, preceding: 1, following: 1},
		{row: 1, preceding: 2, following: 1},
		{row: 2, preceding: 2, following: 0},
		{row: 3, preceding: 1, following: 1},
		{row: 4, preceding: 2, following: 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.preceding, b.Preceding(tt.row), "preceding of row %d", tt.row)
		assert.Equal(t, tt.following, b.Following(tt.row), "following of row %d", tt.row)
	}
}

func TestGroupedRangeRespectsGroupBoundary(t *testing.T) {
	mem := memory.NewGoAllocator()

	// Identical timestamps across the boundary; windows still may not cross.
	bld := array.NewDate32Builder(mem)
	bld.AppendValues([]arrow.Date32{5, 5, 5, 5}, nil)
	ts := bld.NewDate32Array()
	defer ts.Release()

	offsets := []int{0, 2, 4}
	labels := []int{0, 0, 1, 1}
	b := NewGroupedRange(offsets, labels, ts, 3, 3)

	assert.Equal(t, 2, b.Preceding(1))
	assert.Equal(t, 0, b.Following(1))
	assert.Equal(t, 1, b.Preceding(2))
	assert.Equal(t, 1, b.Following(2))
}

func TestDayMultiplier(t *testing.T) {
	tests := []struct {
		name  string
		dtype arrow.DataType
		mult  int64
		ok    bool
	}{
		{name: "date32", dtype: arrow.FixedWidthTypes.Date32, mult: 1, ok: true},
		{name: "timestamp seconds", dtype: &arrow.TimestampType{Unit: arrow.Second}, mult: 86_400, ok: true},
		{name: "timestamp millis", dtype: &arrow.TimestampType{Unit: arrow.Millisecond}, mult: 86_400_000, ok: true},
		{name: "timestamp micros", dtype: &arrow.TimestampType{Unit: arrow.Microsecond}, mult: 86_400_000_000, ok: true},
		{name: "timestamp nanos", dtype: &arrow.TimestampType{Unit: arrow.Nanosecond}, mult: 86_400_000_000_000, ok: true},
		{name: "int64 is not temporal", dtype: arrow.PrimitiveTypes.Int64, ok: false},
		{name: "string is not temporal", dtype: arrow.BinaryTypes.String, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mult, ok := DayMultiplier(tt.dtype)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.mult, mult)
			}
		})
	}
}

func TestGroupedRangeTickConversion(t *testing.T) {
	mem := memory.NewGoAllocator()

	// Millisecond resolution: one day apart is 86_400_000 ticks.
	dtype := &arrow.TimestampType{Unit: arrow.Millisecond}
	bld := array.NewTimestampBuilder(mem, dtype)
	bld.AppendValues([]arrow.Timestamp{0, 86_400_000, 3 * 86_400_000}, nil)
	ts := bld.NewTimestampArray()
	defer ts.Release()

	b := NewGroupedRange([]int{0, 3}, []int{0, 0, 0}, ts, 1, 1)

	assert.Equal(t, 1, b.Preceding(0))
	assert.Equal(t, 1, b.Following(0))
	assert.Equal(t, 2, b.Preceding(1))
	assert.Equal(t, 0, b.Following(1))
	assert.Equal(t, 1, b.Preceding(2))
}
