package series

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"
)

// Number is the set of element types that can be summed.
type Number interface {
	constraints.Integer | constraints.Float
}

// Sum adds values.
func Sum[T Number](values []T) T {
	var total T
	for _, v := range values {
		total += v
	}
	return total
}

// NumericAt reads element index of an int64, float64 or timestamp array as
// float64. Timestamps are returned in Unix microseconds. The second result
// is false for nulls and non-numeric arrays.
func NumericAt(arr arrow.Array, index int) (float64, bool) {
	if index < 0 || index >= arr.Len() || arr.IsNull(index) {
		return 0, false
	}
	switch typed := arr.(type) {
	case *array.Int64:
		return float64(typed.Value(index)), true
	case *array.Float64:
		return typed.Value(index), true
	case *array.Timestamp:
		return float64(typed.Value(index)), true
	default:
		return 0, false
	}
}

// IsNumeric reports whether NumericAt can read the array type.
func IsNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT64, arrow.FLOAT64, arrow.TIMESTAMP:
		return true
	default:
		return false
	}
}
