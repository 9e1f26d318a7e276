package column

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderFinish(t *testing.T) {
	mem := memory.NewGoAllocator()

	bld := NewBuilder(mem, arrow.PrimitiveTypes.Int64, 3)
	values := Values[int64](bld.ValuesBytes())
	values[0], values[1], values[2] = 10, 20, 30

	bitmap := bld.ValidityBytes()
	WriteValidityBit(bitmap, 0, true)
	WriteValidityBit(bitmap, 1, false)
	WriteValidityBit(bitmap, 2, true)

	out := bld.Finish(2)
	defer out.Release()

	arr, ok := out.(*array.Int64)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Len())
	assert.Equal(t, 1, arr.NullN())
	assert.Equal(t, int64(10), arr.Value(0))
	assert.True(t, arr.IsNull(1))
	assert.Equal(t, int64(30), arr.Value(2))
}

func TestWriteValidityWord(t *testing.T) {
	mem := memory.NewGoAllocator()

	const n = 128
	bld := NewBuilder(mem, arrow.PrimitiveTypes.Float64, n)
	bitmap := bld.ValidityBytes()

	// Alternate bits in word 0, all-valid word 1.
	WriteValidityWord(bitmap, 0, 0xAAAA_AAAA_AAAA_AAAA)
	WriteValidityWord(bitmap, 1, ^uint64(0))

	for i := 0; i < 64; i++ {
		assert.Equal(t, i%2 == 1, bitutil.BitIsSet(bitmap, i), "bit %d", i)
	}
	for i := 64; i < 128; i++ {
		assert.True(t, bitutil.BitIsSet(bitmap, i), "bit %d", i)
	}
	bld.Release()
}

func TestBuilderValidityPadding(t *testing.T) {
	mem := memory.NewGoAllocator()

	// 70 rows needs two whole words so word writes never run off the end.
	bld := NewBuilder(mem, arrow.PrimitiveTypes.Int32, 70)
	assert.Equal(t, 16, len(bld.ValidityBytes()))
	assert.Equal(t, 70*4, len(bld.ValuesBytes()))
	bld.Release()
}

func TestEmpty(t *testing.T) {
	mem := memory.NewGoAllocator()

	tests := []struct {
		name  string
		dtype arrow.DataType
	}{
		{name: "int64", dtype: arrow.PrimitiveTypes.Int64},
		{name: "float64", dtype: arrow.PrimitiveTypes.Float64},
		{name: "string", dtype: arrow.BinaryTypes.String},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := Empty(mem, tt.dtype)
			defer arr.Release()
			assert.Equal(t, 0, arr.Len())
			assert.True(t, arrow.TypeEqual(tt.dtype, arr.DataType()))
		})
	}
}

func TestValuesReinterpret(t *testing.T) {
	buf := make([]byte, 16)
	vals := Values[int64](buf)
	require.Len(t, vals, 2)
	vals[1] = 42
	assert.Equal(t, int64(42), Values[int64](buf)[1])
	assert.Nil(t, Values[int64](nil))
}
