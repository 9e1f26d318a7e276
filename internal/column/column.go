// Package column implements the output-column side of the engine's column
// contract: allocating uninitialized fixed-width columns, writing their
// validity bitmaps a word at a time, and finalizing them into Arrow arrays
// with the null count already known.
//
// Input columns need no wrapper; any arrow.Array already carries the
// per-element validity bit and the cached null count the kernel reads.
package column

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Builder owns the uninitialized buffers of one fixed-width output column:
// a values buffer and a validity bitmap. The kernel fills both, then Finish
// assembles the Arrow array with the kernel's valid-row total.
type Builder struct {
	dtype    arrow.DataType
	length   int
	values   *memory.Buffer
	validity *memory.Buffer
}

// NewBuilder allocates the uninitialized buffers for length elements of the
// given fixed-width type. The validity buffer is rounded up to whole 64-bit
// words so the writer can always store full words.
func NewBuilder(mem memory.Allocator, dtype arrow.DataType, length int) *Builder {
	fw := dtype.(arrow.FixedWidthDataType)

	values := memory.NewResizableBuffer(mem)
	values.Resize(length * fw.Bytes())

	validity := memory.NewResizableBuffer(mem)
	validity.Resize((length + 63) / 64 * 8)

	return &Builder{dtype: dtype, length: length, values: values, validity: validity}
}

// ValuesBytes exposes the raw values buffer for the kernel to fill.
func (b *Builder) ValuesBytes() []byte {
	return b.values.Bytes()
}

// ValidityBytes exposes the raw validity bitmap for the kernel to fill.
func (b *Builder) ValidityBytes() []byte {
	return b.validity.Bytes()
}

// Finish assembles the final array. validRows becomes the cached null count
// (nulls = length - validRows). The builder's buffers are handed off; the
// caller owns the returned array.
func (b *Builder) Finish(validRows int) arrow.Array {
	data := array.NewData(b.dtype, b.length,
		[]*memory.Buffer{b.validity, b.values}, nil, b.length-validRows, 0)
	defer data.Release()
	b.values.Release()
	b.validity.Release()
	return array.MakeFromData(data)
}

// Release drops the buffers without building an array. Call it instead of
// Finish when a launch aborts.
func (b *Builder) Release() {
	b.values.Release()
	b.validity.Release()
}

// Values reinterprets a raw little-endian buffer as a typed slice. The
// buffer must have been allocated for elements of T.
func Values[T any](buf []byte) []T {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), len(buf)/int(unsafe.Sizeof(*new(T))))
}

// WriteValidityWord stores 64 validity bits at word index w with a single
// 8-byte store. Disjoint words may be written concurrently.
func WriteValidityWord(bitmap []byte, w int, bits uint64) {
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&bitmap[0])), len(bitmap)/8)
	words[w] = bits
}

// WriteValidityBit sets or clears one validity bit. Used for the tail of a
// row range that does not fill a whole word.
func WriteValidityBit(bitmap []byte, i int, valid bool) {
	if valid {
		bitutil.SetBit(bitmap, i)
	} else {
		bitutil.ClearBit(bitmap, i)
	}
}

// Empty returns a zero-length column of the given type.
func Empty(mem memory.Allocator, dtype arrow.DataType) arrow.Array {
	bld := array.NewBuilder(mem, dtype)
	defer bld.Release()
	return bld.NewArray()
}
