package cltv

import (
	"fmt"
	"time"

	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/validation"
)

const day = 24 * time.Hour

// aggregated column names
const (
	colFirstPurchase = "FirstPurchase"
	colLastPurchase  = "LastPurchase"
	colInvoiceCount  = "InvoiceCount"
	colTotalQuantity = "TotalQuantity"
)

// CustomerAggregate summarises the filtered transactions of one customer
type CustomerAggregate struct {
	CustomerID string
	// RecencyDays is the whole days between the first and last purchase
	RecencyDays int
	// InvoiceCount is the number of line items, not of distinct invoices
	InvoiceCount  int
	TotalQuantity int64
	TotalPurchase float64
	AvgOrderValue float64
}

// Aggregate groups filtered transactions by customer, sorted by id.
// Rows without a customer id are skipped. A customer row without an invoice
// date is a format error. A customer whose quantities sum to zero yields a
// division error instead of an infinite order value.
func Aggregate(df *dataframe.DataFrame) ([]CustomerAggregate, error) {
	const op = "Aggregate"

	required := []string{io.ColCustomerID, io.ColInvoiceDate, io.ColQuantity, ColTotalPurchase}
	if err := validation.ValidateSchema(df, op, required...); err != nil {
		return nil, err
	}
	if err := requireInvoiceDates(df, op); err != nil {
		return nil, err
	}

	grouped, err := df.GroupBy(io.ColCustomerID).Agg(
		dataframe.Min(io.ColInvoiceDate).As(colFirstPurchase),
		dataframe.Max(io.ColInvoiceDate).As(colLastPurchase),
		dataframe.Count(io.ColCustomerID).As(colInvoiceCount),
		dataframe.Sum(io.ColQuantity).As(colTotalQuantity),
		dataframe.Sum(ColTotalPurchase).As(ColTotalPurchase),
	)
	if err != nil {
		return nil, err
	}
	defer grouped.Release()

	ids, err := dataframe.TypedColumn[string](grouped, io.ColCustomerID)
	if err != nil {
		return nil, err
	}
	first, err := dataframe.TypedColumn[time.Time](grouped, colFirstPurchase)
	if err != nil {
		return nil, errors.NewFormatError(op, io.ColInvoiceDate, "invoice dates must be timestamps")
	}
	last, err := dataframe.TypedColumn[time.Time](grouped, colLastPurchase)
	if err != nil {
		return nil, err
	}
	counts, err := dataframe.TypedColumn[int64](grouped, colInvoiceCount)
	if err != nil {
		return nil, err
	}
	quantities, err := dataframe.TypedColumn[int64](grouped, colTotalQuantity)
	if err != nil {
		return nil, errors.NewFormatError(op, io.ColQuantity, "quantities must be integers")
	}
	purchases, err := dataframe.TypedColumn[float64](grouped, ColTotalPurchase)
	if err != nil {
		return nil, errors.NewFormatError(op, ColTotalPurchase, "purchases must be floats")
	}

	aggs := make([]CustomerAggregate, grouped.Len())
	for i := range aggs {
		agg := CustomerAggregate{
			CustomerID:    ids.Value(i),
			InvoiceCount:  int(counts.Value(i)),
			TotalQuantity: quantities.Value(i),
			TotalPurchase: purchases.Value(i),
		}
		if !first.IsNull(i) && !last.IsNull(i) {
			agg.RecencyDays = int(last.Value(i).Sub(first.Value(i)) / day)
		}

		if err := validation.ValidateNonZero(op,
			fmt.Sprintf("total quantity of customer %s", agg.CustomerID), float64(agg.TotalQuantity)); err != nil {
			return nil, err
		}
		agg.AvgOrderValue = agg.TotalPurchase / float64(agg.TotalQuantity)

		aggs[i] = agg
	}
	return aggs, nil
}

// requireInvoiceDates fails on the first row that has a customer id but no
// invoice date. Such a row would count in the totals but in no month.
func requireInvoiceDates(df *dataframe.DataFrame, op string) error {
	ids, err := dataframe.TypedColumn[string](df, io.ColCustomerID)
	if err != nil {
		return err
	}
	dates, err := dataframe.TypedColumn[time.Time](df, io.ColInvoiceDate)
	if err != nil {
		return errors.NewFormatError(op, io.ColInvoiceDate, "invoice dates must be timestamps")
	}
	if dates.NullN() == 0 {
		return nil
	}
	for i := 0; i < df.Len(); i++ {
		if dates.IsNull(i) && !ids.IsNull(i) {
			return errors.NewFormatError(op, io.ColInvoiceDate,
				fmt.Sprintf("customer %s has a purchase without an invoice date", ids.Value(i)))
		}
	}
	return nil
}
