package dataframe

import (
	"cmp"
	"slices"

	"github.com/paveg/cltv/internal/validation"
)

// Distinct returns the first occurrence of every distinct combination of
// the given columns, in input order. With no columns every column is used.
// Nulls compare equal to each other.
func (df *DataFrame) Distinct(columns ...string) (*DataFrame, error) {
	if len(columns) == 0 {
		columns = df.Columns()
	}
	if err := validation.ValidateColumns(df, "Distinct", columns...); err != nil {
		return nil, err
	}

	arrs := df.columnArrays(columns)
	defer releaseArrays(arrs)

	index := newKeyIndex(df.Len())
	first := make([]int, 0)
	for row := 0; row < df.Len(); row++ {
		key, parts, _ := rowKey(arrs, row)
		if index.add(key, parts, row) {
			first = append(first, row)
		}
	}

	selected, err := df.Select(columns...)
	if err != nil {
		return nil, err
	}
	defer selected.Release()

	return selected.Take(first)
}

// ValueCount is the number of rows holding one value of a column
type ValueCount struct {
	Value string
	Count int
}

// ValueCounts counts the rows per distinct non-null value of column, most
// frequent first. Equal counts are ordered by value.
func (df *DataFrame) ValueCounts(column string) ([]ValueCount, error) {
	if err := validation.ValidateColumns(df, "ValueCounts", column); err != nil {
		return nil, err
	}

	gb := df.GroupBy(column)
	counts := make([]ValueCount, 0, gb.Len())
	for _, group := range gb.groups {
		counts = append(counts, ValueCount{Value: group.parts[0], Count: len(group.rows)})
	}

	slices.SortStableFunc(counts, func(a, b ValueCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return counts, nil
}
