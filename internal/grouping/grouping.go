// Package grouping derives contiguous group offsets and per-row labels from
// presorted key columns. Sort order is the caller's contract; this package
// only detects boundaries where any key changes between adjacent rows.
package grouping

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/paveg/rollframe/internal/errors"
)

// Offsets computes the group partitioning of length rows keyed by the given
// columns. The result always satisfies: offsets[0] == 0, the last offset
// equals length, len(offsets) >= 2, and offsets[labels[i]] <= i <
// offsets[labels[i]+1] for every row.
func Offsets(op string, keys []arrow.Array, length int) ([]int, []int, error) {
	if len(keys) == 0 {
		return nil, nil, errors.NewInvalidArgumentError(op, "group keys must have at least one column")
	}
	for _, key := range keys {
		if key.Len() != length {
			return nil, nil, errors.NewInvalidArgumentError(op,
				fmt.Sprintf("group key length %d does not match input length %d", key.Len(), length))
		}
	}

	offsets := []int{0}
	for i := 1; i < length; i++ {
		for _, key := range keys {
			if !adjacentEqual(key, i-1, i) {
				offsets = append(offsets, i)
				break
			}
		}
	}
	offsets = append(offsets, length)

	labels := make([]int, length)
	for g := 0; g+1 < len(offsets); g++ {
		for i := offsets[g]; i < offsets[g+1]; i++ {
			labels[i] = g
		}
	}

	return offsets, labels, nil
}

// adjacentEqual compares rows i and j of one key column. Two nulls compare
// equal for grouping purposes.
func adjacentEqual(arr arrow.Array, i, j int) bool {
	ni, nj := arr.IsNull(i), arr.IsNull(j)
	if ni || nj {
		return ni && nj
	}

	switch a := arr.(type) {
	case *array.Int32:
		return a.Value(i) == a.Value(j)
	case *array.Int64:
		return a.Value(i) == a.Value(j)
	case *array.Float32:
		return a.Value(i) == a.Value(j)
	case *array.Float64:
		return a.Value(i) == a.Value(j)
	case *array.String:
		return a.Value(i) == a.Value(j)
	case *array.Boolean:
		return a.Value(i) == a.Value(j)
	case *array.Date32:
		return a.Value(i) == a.Value(j)
	case *array.Timestamp:
		return a.Value(i) == a.Value(j)
	default:
		return a.ValueStr(i) == a.ValueStr(j)
	}
}
