package dataframe

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
)

// PivotSum reshapes df into one row per distinct value of index and one
// float64 column per distinct value of columns, holding the sum of values
// for each pair. Pairs without rows are 0 and null values add nothing. Rows
// with a null index or column label are skipped. Index values and column
// labels are sorted.
func (df *DataFrame) PivotSum(index, columns, values string) (*DataFrame, error) {
	if err := validation.ValidateColumns(df, "PivotSum", index, columns, values); err != nil {
		return nil, err
	}

	valueSeries, _ := df.Column(values)
	valueArr := valueSeries.Array()
	defer valueArr.Release()
	if !isSummable(valueArr.DataType().ID()) {
		return nil, errors.NewUnsupportedTypeError("PivotSum", valueArr.DataType().String())
	}

	rows := df.GroupBy(index)
	rowOf := make(map[int]int, df.Len())
	for r, group := range rows.groups {
		for _, row := range group.rows {
			rowOf[row] = r
		}
	}

	// a label only seen on rows with a null index is not a column
	labels := make([]string, 0)
	grid := make([][]float64, 0)
	for _, group := range df.GroupBy(columns).groups {
		var column []float64
		for _, row := range group.rows {
			r, ok := rowOf[row]
			if !ok {
				continue
			}
			if column == nil {
				column = make([]float64, rows.Len())
			}
			if v, ok := series.NumericAt(valueArr, row); ok {
				column[r] += v
			}
		}
		if column != nil {
			labels = append(labels, group.parts[0])
			grid = append(grid, column)
		}
	}

	mem := memory.NewGoAllocator()
	keys := make([]string, rows.Len())
	for r, group := range rows.groups {
		keys[r] = group.parts[0]
	}

	result := make([]ISeries, 0, len(labels)+1)
	result = append(result, series.New(index, keys, mem))
	for col, label := range labels {
		result = append(result, series.New(label, grid[col], mem))
	}
	return New(result...), nil
}

func isSummable(id arrow.Type) bool {
	return id == arrow.INT64 || id == arrow.FLOAT64
}
