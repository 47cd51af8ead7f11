package cltv

import (
	"cmp"
	"math"
	"slices"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
)

// DefaultProfitMargin is the share of a customer's spend counted as profit
const DefaultProfitMargin = 0.05

// ScoredColumns are the columns of the scored customer table
var ScoredColumns = []string{
	io.ColCustomerID, "RecencyDays", colInvoiceCount, colTotalQuantity,
	ColTotalPurchase, "AvgOrderValue", "ProfitMargin", "CLTV",
}

// CustomerValue is a customer aggregate with its profit and lifetime value
type CustomerValue struct {
	CustomerAggregate
	ProfitMargin float64
	CLTV         float64
}

// Valuation holds the population-wide rates and every scored customer
type Valuation struct {
	Customers []CustomerValue
	// TotalInvoices is the sum of InvoiceCount over all customers
	TotalInvoices     int
	PurchaseFrequency float64
	RepeatRate        float64
	ChurnRate         float64
	Margin            float64
}

// Estimate scores every customer:
//
//	CLTV = (AvgOrderValue × PurchaseFrequency / ChurnRate) × TotalPurchase × margin
//
// An empty population gives an empty Valuation with zero rates. When every
// customer repeats, the churn rate is zero and Estimate returns a division
// error.
func Estimate(aggs []CustomerAggregate, margin float64) (*Valuation, error) {
	const op = "Estimate"

	if err := validation.NewRangeValidator(op, "profit margin", margin, 0, math.Inf(1)).Validate(); err != nil {
		return nil, err
	}

	v := &Valuation{Margin: margin, Customers: make([]CustomerValue, 0, len(aggs))}
	if len(aggs) == 0 {
		return v, nil
	}

	repeaters := 0
	for _, agg := range aggs {
		v.TotalInvoices += agg.InvoiceCount
		if agg.InvoiceCount > 1 {
			repeaters++
		}
	}

	n := float64(len(aggs))
	v.PurchaseFrequency = float64(v.TotalInvoices) / n
	v.RepeatRate = float64(repeaters) / n
	v.ChurnRate = 1 - v.RepeatRate

	if repeaters == len(aggs) {
		return nil, validation.ValidateNonZero(op, "churn rate", 0)
	}

	for _, agg := range aggs {
		profit := agg.TotalPurchase * margin
		v.Customers = append(v.Customers, CustomerValue{
			CustomerAggregate: agg,
			ProfitMargin:      profit,
			CLTV:              ((agg.AvgOrderValue * v.PurchaseFrequency) / v.ChurnRate) * profit,
		})
	}
	return v, nil
}

// Top returns the n customers with the highest CLTV, ties by id
func (v *Valuation) Top(n int) []CustomerValue {
	sorted := slices.Clone(v.Customers)
	slices.SortStableFunc(sorted, func(a, b CustomerValue) int {
		if c := cmp.Compare(b.CLTV, a.CLTV); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	if n < len(sorted) {
		sorted = sorted[:max(n, 0)]
	}
	return sorted
}

// Frame returns the scored customers as a table with ScoredColumns
func (v *Valuation) Frame(mem memory.Allocator) *dataframe.DataFrame {
	n := len(v.Customers)
	ids := make([]string, n)
	recency := make([]int64, n)
	counts := make([]int64, n)
	quantities := make([]int64, n)
	purchases := make([]float64, n)
	aov := make([]float64, n)
	profit := make([]float64, n)
	scores := make([]float64, n)

	for i, c := range v.Customers {
		ids[i] = c.CustomerID
		recency[i] = int64(c.RecencyDays)
		counts[i] = int64(c.InvoiceCount)
		quantities[i] = c.TotalQuantity
		purchases[i] = c.TotalPurchase
		aov[i] = c.AvgOrderValue
		profit[i] = c.ProfitMargin
		scores[i] = c.CLTV
	}

	return dataframe.New(
		series.New(ScoredColumns[0], ids, mem),
		series.New(ScoredColumns[1], recency, mem),
		series.New(ScoredColumns[2], counts, mem),
		series.New(ScoredColumns[3], quantities, mem),
		series.New(ScoredColumns[4], purchases, mem),
		series.New(ScoredColumns[5], aov, mem),
		series.New(ScoredColumns[6], profit, mem),
		series.New(ScoredColumns[7], scores, mem),
	)
}
