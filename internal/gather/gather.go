// Package gather materializes output values by indexing into a source
// column with a map of row indices. It implements the single mode the
// engine needs: out-of-bounds indices become null instead of failing, which
// is how the arg-extremum sentinels turn into null rows.
package gather

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TakeStrings gathers src[indices[i]] for every row of the index column.
// A null index, an index outside [0, src.Len()) or a null source element
// yields a null output row. The returned array carries its recomputed
// null count; the caller owns it.
func TakeStrings(mem memory.Allocator, src *array.String, indices *array.Int32) *array.String {
	bld := array.NewStringBuilder(mem)
	defer bld.Release()
	bld.Reserve(indices.Len())

	for i := 0; i < indices.Len(); i++ {
		if indices.IsNull(i) {
			bld.AppendNull()
			continue
		}
		idx := int(indices.Value(i))
		if idx < 0 || idx >= src.Len() || src.IsNull(idx) {
			bld.AppendNull()
			continue
		}
		bld.Append(src.Value(idx))
	}

	return bld.NewStringArray()
}
