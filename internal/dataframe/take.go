package dataframe

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/errors"
)

// takeSeries copies the rows at indices of s into a new series, keeping nulls
func takeSeries(s ISeries, indices []int, mem memory.Allocator) (ISeries, error) {
	src := s.Array()
	defer src.Release()

	taken, err := takeArray(src, indices, mem)
	if err != nil {
		return nil, err
	}
	defer taken.Release()

	return wrapArray(s.Name(), taken)
}

func takeArray(src arrow.Array, indices []int, mem memory.Allocator) (arrow.Array, error) {
	switch typed := src.(type) {
	case *array.String:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if typed.IsNull(idx) {
				builder.AppendNull()
			} else {
				builder.Append(typed.Value(idx))
			}
		}
		return builder.NewArray(), nil

	case *array.Int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if typed.IsNull(idx) {
				builder.AppendNull()
			} else {
				builder.Append(typed.Value(idx))
			}
		}
		return builder.NewArray(), nil

	case *array.Float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if typed.IsNull(idx) {
				builder.AppendNull()
			} else {
				builder.Append(typed.Value(idx))
			}
		}
		return builder.NewArray(), nil

	case *array.Boolean:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if typed.IsNull(idx) {
				builder.AppendNull()
			} else {
				builder.Append(typed.Value(idx))
			}
		}
		return builder.NewArray(), nil

	case *array.Timestamp:
		builder := array.NewTimestampBuilder(mem, typed.DataType().(*arrow.TimestampType))
		defer builder.Release()
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if typed.IsNull(idx) {
				builder.AppendNull()
			} else {
				builder.Append(typed.Value(idx))
			}
		}
		return builder.NewArray(), nil

	default:
		return nil, errors.NewUnsupportedTypeError("Take", src.DataType().String())
	}
}
