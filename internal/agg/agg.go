// Package agg defines the aggregation descriptors and the static dispatch
// matrix mapping (element type, aggregation kind) to an output column type.
// Combinations outside the matrix fail before any kernel work.
package agg

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/rollframe/internal/errors"
)

// Kind discriminates the supported aggregations.
type Kind int

const (
	Sum Kind = iota
	Mean
	Min
	Max
	CountValid
	CountAll
	UserDefined
)

// String returns the aggregation name.
func (k Kind) String() string {
	switch k {
	case Sum:
		return "SUM"
	case Mean:
		return "MEAN"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case CountValid:
		return "COUNT_VALID"
	case CountAll:
		return "COUNT_ALL"
	case UserDefined:
		return "UDF"
	default:
		return "UNKNOWN"
	}
}

// UDFDialect distinguishes the two accepted user-code forms.
type UDFDialect int

const (
	// UDFExpression is the high-level form: the source text is a single
	// expression over the bound names window, size and row.
	UDFExpression UDFDialect = iota

	// UDFPositional is the low-level form: the source references arg0..argN
	// and a parameter-role annotation list maps each position to one of the
	// bound names before compilation.
	UDFPositional
)

// ParamRole annotates one positional parameter of a UDFPositional source.
type ParamRole int

const (
	RoleWindow ParamRole = iota // the row's window values, []float64
	RoleSize                    // number of rows in the window
	RoleRow                     // the output row index
)

// Aggregation is the full descriptor routed through the engine. For the
// builtin kinds only Kind is set; the remaining fields describe a
// user-defined aggregation.
type Aggregation struct {
	Kind Kind

	Source     string
	EntryPoint string
	Dialect    UDFDialect
	Output     arrow.DataType
	Params     []ParamRole
}

// outputType derives an aggregation's output column type from its input type.
type outputType func(in arrow.DataType) arrow.DataType

func same(in arrow.DataType) arrow.DataType  { return in }
func float64T(arrow.DataType) arrow.DataType { return arrow.PrimitiveTypes.Float64 }
func int32T(arrow.DataType) arrow.DataType   { return arrow.PrimitiveTypes.Int32 }
func stringT(arrow.DataType) arrow.DataType  { return arrow.BinaryTypes.String }

// matrix is the registration table. An absent entry is an unsupported
// combination, reported as such rather than reaching the kernel.
var matrix = map[arrow.Type]map[Kind]outputType{}

func register(t arrow.Type, k Kind, out outputType) {
	row, ok := matrix[t]
	if !ok {
		row = make(map[Kind]outputType)
		matrix[t] = row
	}
	row[k] = out
}

// fixedWidthTypes are the element types served by the numeric value path.
var fixedWidthTypes = []arrow.Type{
	arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
	arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
	arrow.FLOAT32, arrow.FLOAT64,
	arrow.DATE32, arrow.TIMESTAMP,
}

func init() {
	for _, t := range fixedWidthTypes {
		register(t, Sum, same)
		register(t, Mean, float64T)
		register(t, Min, same)
		register(t, Max, same)
		register(t, CountValid, int32T)
		register(t, CountAll, int32T)
	}

	// Variable-length path: MIN/MAX go through the arg-extremum + gather
	// route; counts never look at values.
	register(arrow.STRING, Min, stringT)
	register(arrow.STRING, Max, stringT)
	register(arrow.STRING, CountValid, int32T)
	register(arrow.STRING, CountAll, int32T)

	register(arrow.BOOL, CountValid, int32T)
	register(arrow.BOOL, CountAll, int32T)
}

// Resolve returns the output column type for the combination, or an
// unsupported-operation error if the matrix has no entry.
func Resolve(op string, dtype arrow.DataType, kind Kind) (arrow.DataType, error) {
	if row, ok := matrix[dtype.ID()]; ok {
		if out, ok := row[kind]; ok {
			return out(dtype), nil
		}
	}
	return nil, errors.NewUnsupportedAggregationError(op, dtype.Name(), kind.String())
}

// IsArgExtremum reports whether the combination resolves through the
// index-extremum + gather path rather than the direct value path.
func IsArgExtremum(dtype arrow.DataType, kind Kind) bool {
	return dtype.ID() == arrow.STRING && (kind == Min || kind == Max)
}
