package cltv

import (
	"fmt"
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/regression"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
	"gonum.org/v1/gonum/mat"
)

// MonthLayout formats month labels such as Jul-2011
const MonthLayout = "Jan-2006"

// monthKeyLayout sorts lexically in calendar order
const monthKeyLayout = "2006-01"

const colMonth = "Month"

// DefaultFeatureMonths are the regression features of the reference run
var DefaultFeatureMonths = []string{"Dec-2011", "Nov-2011", "Oct-2011", "Sep-2011", "Aug-2011", "Jul-2011"}

// Regression defaults
const (
	DefaultTestSize   = 0.1
	DefaultRandomSeed = 42
)

// MonthLabel returns the month label of t, e.g. Jul-2011
func MonthLabel(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// SpendMatrix is the customer × month table of summed purchases
type SpendMatrix struct {
	CustomerIDs []string
	// Months are labels in calendar order
	Months []string
	// Spend[i][j] is what customer i spent in month j
	Spend [][]float64
	// TotalCLV[i] is the sum of row i over every month
	TotalCLV []float64
}

// PivotMonthlySpend sums TotalPurchase per customer and month. Pairs with no
// purchases are 0. Rows without a customer id are skipped; a customer row
// without an invoice date is a format error, so TotalCLV always matches the
// customer's TotalPurchase.
func PivotMonthlySpend(df *dataframe.DataFrame) (*SpendMatrix, error) {
	const op = "PivotMonthlySpend"

	required := []string{io.ColCustomerID, io.ColInvoiceDate, ColTotalPurchase}
	if err := validation.ValidateSchema(df, op, required...); err != nil {
		return nil, err
	}
	if err := requireInvoiceDates(df, op); err != nil {
		return nil, err
	}
	dates, err := dataframe.TypedColumn[time.Time](df, io.ColInvoiceDate)
	if err != nil {
		return nil, err
	}

	keys := make([]string, df.Len())
	valid := make([]bool, df.Len())
	for i := range keys {
		if dates.IsNull(i) {
			continue
		}
		keys[i] = dates.Value(i).UTC().Format(monthKeyLayout)
		valid[i] = true
	}
	months, err := series.NewWithValidity(colMonth, keys, valid, memory.NewGoAllocator())
	if err != nil {
		return nil, err
	}

	withMonth, err := df.WithColumn(months)
	if err != nil {
		months.Release()
		return nil, err
	}
	defer withMonth.Release()

	pivot, err := withMonth.PivotSum(io.ColCustomerID, colMonth, ColTotalPurchase)
	if err != nil {
		return nil, err
	}
	defer pivot.Release()

	ids, err := dataframe.ColumnValues[string](pivot, io.ColCustomerID)
	if err != nil {
		return nil, err
	}

	m := &SpendMatrix{
		CustomerIDs: ids,
		Spend:       make([][]float64, len(ids)),
		TotalCLV:    make([]float64, len(ids)),
	}
	for i := range m.Spend {
		m.Spend[i] = make([]float64, 0, pivot.Width()-1)
	}

	for _, key := range pivot.Columns()[1:] {
		month, err := time.Parse(monthKeyLayout, key)
		if err != nil {
			return nil, errors.NewInternalError(op, err)
		}
		m.Months = append(m.Months, MonthLabel(month))

		spend, err := dataframe.ColumnValues[float64](pivot, key)
		if err != nil {
			return nil, err
		}
		for i, v := range spend {
			m.Spend[i] = append(m.Spend[i], v)
		}
	}
	for i, row := range m.Spend {
		m.TotalCLV[i] = series.Sum(row)
	}
	return m, nil
}

// Len returns the number of customers
func (m *SpendMatrix) Len() int {
	return len(m.CustomerIDs)
}

// Width returns the number of months
func (m *SpendMatrix) Width() int {
	return len(m.Months)
}

// Columns returns the month labels
func (m *SpendMatrix) Columns() []string {
	return m.Months
}

// HasColumn reports whether month is a column of the matrix
func (m *SpendMatrix) HasColumn(month string) bool {
	return slices.Contains(m.Months, month)
}

// Features returns the spend of the given months as a customers × labels
// matrix. A label absent from the matrix is a column-missing error; it is
// never filled with zeros. A matrix without customers is insufficient data.
func (m *SpendMatrix) Features(labels []string) (*mat.Dense, error) {
	const op = "Features"

	if len(labels) == 0 {
		return nil, errors.NewInvalidInputError(op, "no feature months")
	}

	err := validation.NewCompoundValidator(
		validation.NewColumnValidator(m, op, labels...),
		validation.NewEmptyValidator(m, op),
	).Validate()
	if err != nil {
		return nil, err
	}

	cols := make([]int, len(labels))
	for k, label := range labels {
		cols[k] = slices.Index(m.Months, label)
	}

	X := mat.NewDense(m.Len(), len(labels), nil)
	for i, row := range m.Spend {
		for k, j := range cols {
			X.Set(i, k, row[j])
		}
	}
	return X, nil
}

// RegressionOptions configures FitMonthlyModel
type RegressionOptions struct {
	FeatureMonths []string
	TestSize      float64
	Seed          uint64
}

// DefaultRegressionOptions reproduces the reference run
func DefaultRegressionOptions() RegressionOptions {
	return RegressionOptions{
		FeatureMonths: append([]string{}, DefaultFeatureMonths...),
		TestSize:      DefaultTestSize,
		Seed:          DefaultRandomSeed,
	}
}

// RegressionResult is the fitted model and its held-out score
type RegressionResult struct {
	Model     *regression.Model
	Features  []string
	Score     float64
	TrainRows int
	TestRows  int
}

// FitMonthlyModel regresses TotalCLV on the feature months over a seeded
// train partition and scores R² on the test partition.
func FitMonthlyModel(m *SpendMatrix, opts RegressionOptions) (*RegressionResult, error) {
	X, err := m.Features(opts.FeatureMonths)
	if err != nil {
		return nil, err
	}

	split, err := regression.TrainTestSplit(m.Len(), opts.TestSize, opts.Seed)
	if err != nil {
		return nil, err
	}

	model, err := regression.FitOLS(regression.TakeRows(X, split.Train), regression.TakeValues(m.TotalCLV, split.Train))
	if err != nil {
		return nil, err
	}

	score, err := model.Score(regression.TakeRows(X, split.Test), regression.TakeValues(m.TotalCLV, split.Test))
	if err != nil {
		return nil, fmt.Errorf("scoring %d test rows: %w", len(split.Test), err)
	}

	return &RegressionResult{
		Model:     model,
		Features:  append([]string{}, opts.FeatureMonths...),
		Score:     score,
		TrainRows: len(split.Train),
		TestRows:  len(split.Test),
	}, nil
}
