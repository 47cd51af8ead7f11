// Package dataframe provides the Arrow-backed table that every analysis
// stage consumes and produces.
package dataframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
)

// ISeries is a column of any element type. series.Series[T] implements it.
type ISeries interface {
	Name() string
	Len() int
	NullN() int
	DataType() arrow.DataType
	IsNull(index int) bool
	// GetAsString renders one element; nulls are ""
	GetAsString(index int) string
	String() string
	// Array retains and returns the backing array; the caller releases it
	Array() arrow.Array
	Release()
}

// DataFrame represents a table of data with typed columns. Every frame owns
// a reference to each of its columns, so frames derived with Select, Filter
// or WithColumn must be released independently of their source.
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries. The frame takes
// ownership of the given series.
func New(columns ...ISeries) *DataFrame {
	byName := make(map[string]ISeries, len(columns))
	order := make([]string, 0, len(columns))

	for _, s := range columns {
		name := s.Name()
		if _, dup := byName[name]; !dup {
			order = append(order, name)
		}
		byName[name] = s
	}

	return &DataFrame{
		columns: byName,
		order:   order,
	}
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	return append([]string{}, df.order...)
}

// Len returns the number of rows (all columns have the same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.order)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	s, exists := df.columns[name]
	return s, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Select returns a new DataFrame with only the specified columns
func (df *DataFrame) Select(names ...string) (*DataFrame, error) {
	if err := validation.ValidateColumns(df, "Select", names...); err != nil {
		return nil, err
	}

	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		selected = append(selected, share(df.columns[name]))
	}
	return New(selected...), nil
}

// WithColumn returns a new DataFrame with s added, or replacing the column
// of the same name in place. The new frame takes ownership of s.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, validation.ValidateLength(df.Len(), s.Len(), "WithColumn", s.Name())
	}

	cols := make([]ISeries, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			cols = append(cols, s)
			replaced = true
			continue
		}
		cols = append(cols, share(df.columns[name]))
	}
	if !replaced {
		cols = append(cols, s)
	}
	return New(cols...), nil
}

// Take returns a new DataFrame holding the given rows in the given order
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	length := df.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= length {
			return nil, errors.NewInvalidInputError("Take",
				fmt.Sprintf("index %d out of bounds [0, %d)", idx, length))
		}
	}

	mem := memory.NewGoAllocator()
	taken := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		s, err := takeSeries(df.columns[name], indices, mem)
		if err != nil {
			releaseAll(taken)
			return nil, err
		}
		taken = append(taken, s)
	}
	return New(taken...), nil
}

// Filter returns the rows where mask is true
func (df *DataFrame) Filter(mask []bool) (*DataFrame, error) {
	if err := validation.ValidateLength(df.Len(), len(mask), "Filter", "mask"); err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return df.Take(indices)
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}
	for _, name := range df.order {
		parts = append(parts, fmt.Sprintf("  %s: %s", name, df.columns[name].DataType().String()))
	}
	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, s := range df.columns {
		s.Release()
	}
}

// TypedColumn returns the named column as a *series.Series[T]
func TypedColumn[T any](df *DataFrame, name string) (*series.Series[T], error) {
	s, ok := df.Column(name)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Column", name)
	}
	typed, ok := s.(*series.Series[T])
	if !ok {
		var zero T
		return nil, errors.NewFormatError("Column", name,
			fmt.Sprintf("column has type %s, want %T", s.DataType(), zero))
	}
	return typed, nil
}

// ColumnValues returns the named column as a Go slice
func ColumnValues[T any](df *DataFrame, name string) ([]T, error) {
	s, err := TypedColumn[T](df, name)
	if err != nil {
		return nil, err
	}
	return s.Values(), nil
}

// share returns a new series referencing the same Arrow data as s
func share(s ISeries) ISeries {
	arr := s.Array()
	defer arr.Release()
	wrapped, err := wrapArray(s.Name(), arr)
	if err != nil {
		// s was built by this package or series, so its type is supported
		panic(err)
	}
	return wrapped
}

// SeriesFromArray wraps an Arrow array of a supported type as a column.
// The series takes its own reference to arr.
func SeriesFromArray(name string, arr arrow.Array) (ISeries, error) {
	return wrapArray(name, arr)
}

// wrapArray wraps arr in a typed series. The series takes its own reference.
func wrapArray(name string, arr arrow.Array) (ISeries, error) {
	switch arr.(type) {
	case *array.String:
		return series.FromArray[string](name, arr), nil
	case *array.Int64:
		return series.FromArray[int64](name, arr), nil
	case *array.Float64:
		return series.FromArray[float64](name, arr), nil
	case *array.Boolean:
		return series.FromArray[bool](name, arr), nil
	case *array.Timestamp:
		return series.FromArray[time.Time](name, arr), nil
	default:
		return nil, errors.NewUnsupportedTypeError("wrapArray", arr.DataType().String())
	}
}

func releaseAll(cols []ISeries) {
	for _, s := range cols {
		s.Release()
	}
}
