package dataframe

import (
	"fmt"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
)

// AggregationType identifies an aggregation function
type AggregationType int

const (
	AggSum AggregationType = iota
	AggCount
	AggMean
	AggMin
	AggMax
)

func (t AggregationType) String() string {
	switch t {
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggMean:
		return "mean"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return "unknown"
	}
}

// Aggregation describes one aggregated output column
type Aggregation struct {
	column  string
	aggType AggregationType
	alias   string
}

// Sum sums a numeric column per group
func Sum(column string) *Aggregation { return &Aggregation{column: column, aggType: AggSum} }

// Count counts the rows of each group
func Count(column string) *Aggregation { return &Aggregation{column: column, aggType: AggCount} }

// Mean averages a numeric column per group
func Mean(column string) *Aggregation { return &Aggregation{column: column, aggType: AggMean} }

// Min takes the per-group minimum of a numeric or timestamp column
func Min(column string) *Aggregation { return &Aggregation{column: column, aggType: AggMin} }

// Max takes the per-group maximum of a numeric or timestamp column
func Max(column string) *Aggregation { return &Aggregation{column: column, aggType: AggMax} }

// As names the output column
func (a *Aggregation) As(alias string) *Aggregation {
	a.alias = alias
	return a
}

// Column returns the aggregated input column
func (a *Aggregation) Column() string { return a.column }

// AggType returns the aggregation function
func (a *Aggregation) AggType() AggregationType { return a.aggType }

// Name returns the output column name
func (a *Aggregation) Name() string {
	if a.alias != "" {
		return a.alias
	}
	return fmt.Sprintf("%s_%s", a.aggType, a.column)
}

// GroupBy represents a grouped DataFrame for aggregation operations.
// Rows whose key contains a null are left out of every group.
type GroupBy struct {
	df          *DataFrame
	groupByCols []string
	groups      []indexEntry // sorted by key
	err         error
}

// GroupBy creates a GroupBy object for the specified columns
func (df *DataFrame) GroupBy(columns ...string) *GroupBy {
	if err := validation.ValidateColumns(df, "GroupBy", columns...); err != nil {
		return &GroupBy{df: df, groupByCols: columns, err: err}
	}
	return &GroupBy{
		df:          df,
		groupByCols: columns,
		groups:      df.buildGroups(columns),
	}
}

// buildGroups indexes the rows of each distinct key, sorted by key parts
func (df *DataFrame) buildGroups(columns []string) []indexEntry {
	arrs := df.columnArrays(columns)
	defer releaseArrays(arrs)

	index := newKeyIndex(df.Len())
	for row := 0; row < df.Len(); row++ {
		key, parts, hasNull := rowKey(arrs, row)
		if hasNull {
			continue
		}
		index.add(key, parts, row)
	}

	groups := index.entries
	slices.SortFunc(groups, func(a, b indexEntry) int {
		return slices.Compare(a.parts, b.parts)
	})
	return groups
}

// Err returns the error recorded when the GroupBy was built
func (gb *GroupBy) Err() error {
	return gb.err
}

// Len returns the number of groups
func (gb *GroupBy) Len() int {
	return len(gb.groups)
}

// Agg performs aggregation operations on the grouped data. The result has
// one row per group: the group columns as strings followed by one column
// per aggregation.
func (gb *GroupBy) Agg(aggregations ...*Aggregation) (*DataFrame, error) {
	if gb.err != nil {
		return nil, gb.err
	}

	columns := make([]string, 0, len(aggregations))
	for _, agg := range aggregations {
		columns = append(columns, agg.column)
	}
	if err := validation.ValidateColumns(gb.df, "Agg", columns...); err != nil {
		return nil, err
	}

	mem := memory.NewGoAllocator()
	result := make([]ISeries, 0, len(gb.groupByCols)+len(aggregations))

	for i, col := range gb.groupByCols {
		values := make([]string, len(gb.groups))
		for g, group := range gb.groups {
			values[g] = group.parts[i]
		}
		result = append(result, series.New(col, values, mem))
	}

	for _, agg := range aggregations {
		s, err := gb.aggregate(agg, mem)
		if err != nil {
			releaseAll(result)
			return nil, err
		}
		result = append(result, s)
	}

	return New(result...), nil
}

// aggregate computes one aggregation over every group
func (gb *GroupBy) aggregate(agg *Aggregation, mem memory.Allocator) (ISeries, error) {
	src, _ := gb.df.Column(agg.column)
	arr := src.Array()
	defer arr.Release()

	name := agg.Name()

	if agg.aggType == AggCount {
		counts := make([]int64, len(gb.groups))
		for g, group := range gb.groups {
			counts[g] = int64(len(group.rows))
		}
		return series.New(name, counts, mem), nil
	}

	if !series.IsNumeric(arr.DataType()) {
		return nil, errors.NewUnsupportedTypeError("Agg", arr.DataType().String())
	}

	if agg.aggType == AggSum {
		if ints, ok := arr.(*array.Int64); ok {
			return gb.sumInt64(name, ints, mem), nil
		}
		if arr.DataType().ID() == arrow.TIMESTAMP {
			return nil, errors.NewUnsupportedTypeError("Agg", "sum of "+arr.DataType().String())
		}
	}

	values := make([]float64, len(gb.groups))
	valid := make([]bool, len(gb.groups))
	for g, group := range gb.groups {
		values[g], valid[g] = aggregateGroup(arr, group.rows, agg.aggType)
	}

	return buildAggregationSeries(name, arr.DataType(), agg.aggType, values, valid, mem)
}

// sumInt64 sums integer columns without a float round trip
func (gb *GroupBy) sumInt64(name string, arr *array.Int64, mem memory.Allocator) ISeries {
	sums := make([]int64, len(gb.groups))
	for g, group := range gb.groups {
		for _, row := range group.rows {
			if !arr.IsNull(row) {
				sums[g] += arr.Value(row)
			}
		}
	}
	return series.New(name, sums, mem)
}

// aggregateGroup performs aggregation on a single group. The second result
// is false when the group has no non-null value.
func aggregateGroup(arr arrow.Array, rows []int, aggType AggregationType) (float64, bool) {
	var (
		acc   float64
		count int
	)
	for _, row := range rows {
		v, ok := series.NumericAt(arr, row)
		if !ok {
			continue
		}
		switch {
		case count == 0:
			acc = v
		case aggType == AggMin && v < acc:
			acc = v
		case aggType == AggMax && v > acc:
			acc = v
		case aggType == AggSum || aggType == AggMean:
			acc += v
		}
		count++
	}

	if count == 0 {
		return 0, aggType == AggSum
	}
	if aggType == AggMean {
		return acc / float64(count), true
	}
	return acc, true
}

// buildAggregationSeries keeps the source type for min and max; sums of
// floats and means are float64.
func buildAggregationSeries(
	name string, srcType arrow.DataType, aggType AggregationType, values []float64, valid []bool, mem memory.Allocator,
) (ISeries, error) {
	keepType := aggType == AggMin || aggType == AggMax

	switch {
	case keepType && srcType.ID() == arrow.TIMESTAMP:
		builder := array.NewTimestampBuilder(mem, srcType.(*arrow.TimestampType))
		defer builder.Release()
		for i, v := range values {
			if valid[i] {
				builder.Append(arrow.Timestamp(int64(v)))
			} else {
				builder.AppendNull()
			}
		}
		arr := builder.NewArray()
		defer arr.Release()
		return wrapArray(name, arr)

	case keepType && srcType.ID() == arrow.INT64:
		ints := make([]int64, len(values))
		for i, v := range values {
			ints[i] = int64(v)
		}
		return series.NewWithValidity(name, ints, valid, mem)

	default:
		return series.NewWithValidity(name, values, valid, mem)
	}
}
