// Package series provides data structures for column operations
package series

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/errors"
)

// TimestampType is the Arrow type used for every time column: microsecond
// precision, normalized to UTC.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// Series represents a typed data column with Apache Arrow backend
type Series[T any] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values. It panics on an
// unsupported element type; use NewWithValidity where the type is not fixed.
func New[T any](name string, values []T, mem memory.Allocator) *Series[T] {
	s, err := NewWithValidity(name, values, nil, mem)
	if err != nil {
		panic(err)
	}
	return s
}

// NewWithValidity creates a Series whose element i is null when valid[i] is
// false. A nil valid slice marks every element as present.
func NewWithValidity[T any](name string, values []T, valid []bool, mem memory.Allocator) (*Series[T], error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		return nil, errors.NewInvalidInputError("NewSeries",
			fmt.Sprintf("validity length %d does not match %d values", len(valid), len(values)))
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []time.Time:
		builder := array.NewTimestampBuilder(mem, TimestampType)
		defer builder.Release()
		stamps := make([]arrow.Timestamp, len(v))
		for i, t := range v {
			stamps[i] = arrow.Timestamp(t.UnixMicro())
		}
		builder.AppendValues(stamps, valid)
		arr = builder.NewArray()
	default:
		return nil, errors.NewUnsupportedTypeError("NewSeries", fmt.Sprintf("%T", values))
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}, nil
}

// FromArray wraps an existing Arrow array. The series takes its own reference.
func FromArray[T any](name string, arr arrow.Array) *Series[T] {
	arr.Retain()
	return &Series[T]{name: name, array: arr}
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// NullN returns the number of null elements
func (s *Series[T]) NullN() int {
	return s.array.NullN()
}

// Values returns the data as a Go slice. Null elements become the zero value.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Value returns the value at the given index
func (s *Series[T]) Value(index int) T {
	var zero T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return zero
	}

	var v any
	switch arr := s.array.(type) {
	case *array.String:
		v = arr.Value(index)
	case *array.Int64:
		v = arr.Value(index)
	case *array.Float64:
		v = arr.Value(index)
	case *array.Boolean:
		v = arr.Value(index)
	case *array.Timestamp:
		v = time.UnixMicro(int64(arr.Value(index))).UTC()
	}

	if typed, ok := v.(T); ok {
		return typed
	}
	return zero
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// GetAsString returns the element at index formatted as text; nulls are ""
func (s *Series[T]) GetAsString(index int) string {
	return FormatValue(s.array, index)
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}

// FormatValue renders one element of a supported Arrow array as text.
func FormatValue(arr arrow.Array, index int) string {
	if index < 0 || index >= arr.Len() || arr.IsNull(index) {
		return ""
	}
	switch typed := arr.(type) {
	case *array.String:
		return typed.Value(index)
	case *array.Int64:
		return strconv.FormatInt(typed.Value(index), 10)
	case *array.Float64:
		return strconv.FormatFloat(typed.Value(index), 'g', -1, 64)
	case *array.Boolean:
		return strconv.FormatBool(typed.Value(index))
	case *array.Timestamp:
		return time.UnixMicro(int64(typed.Value(index))).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}
