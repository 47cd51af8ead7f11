// Package cltv implements the customer lifetime value analysis: country
// filtering, per-customer aggregation, the heuristic CLTV estimate, and the
// monthly-spend regression.
package cltv

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
)

// ColTotalPurchase is the derived Quantity × UnitPrice column
const ColTotalPurchase = "TotalPurchase"

// DefaultCountry is the market analysed when none is configured
const DefaultCountry = "United Kingdom"

// CountryCount is the number of distinct customers seen in a country
type CountryCount struct {
	Country   string
	Customers int
}

// CountryDistribution counts distinct (Country, CustomerID) pairs per
// country and returns the top countries, largest first. A missing customer
// id counts as one customer of its country. top <= 0 returns every country.
func CountryDistribution(df *dataframe.DataFrame, top int) ([]CountryCount, error) {
	if err := validation.ValidateSchema(df, "CountryDistribution", io.ColCountry, io.ColCustomerID); err != nil {
		return nil, err
	}

	pairs, err := df.Distinct(io.ColCountry, io.ColCustomerID)
	if err != nil {
		return nil, err
	}
	defer pairs.Release()

	counts, err := pairs.ValueCounts(io.ColCountry)
	if err != nil {
		return nil, err
	}
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}

	result := make([]CountryCount, len(counts))
	for i, c := range counts {
		result[i] = CountryCount{Country: c.Value, Customers: c.Count}
	}
	return result, nil
}

// FilterCountry keeps the rows of country with a positive quantity and sets
// TotalPurchase = Quantity × UnitPrice. An existing TotalPurchase column is
// recomputed, so filtering filtered data returns the same rows.
func FilterCountry(df *dataframe.DataFrame, country string) (*dataframe.DataFrame, error) {
	const op = "FilterCountry"

	if err := validation.ValidateSchema(df, op, io.ColCountry, io.ColQuantity, io.ColUnitPrice); err != nil {
		return nil, err
	}
	countries, err := dataframe.TypedColumn[string](df, io.ColCountry)
	if err != nil {
		return nil, err
	}
	quantities, err := dataframe.TypedColumn[int64](df, io.ColQuantity)
	if err != nil {
		return nil, err
	}
	if _, err := dataframe.TypedColumn[float64](df, io.ColUnitPrice); err != nil {
		return nil, err
	}

	mask := make([]bool, df.Len())
	for i := range mask {
		mask[i] = !countries.IsNull(i) && countries.Value(i) == country &&
			!quantities.IsNull(i) && quantities.Value(i) > 0
	}

	filtered, err := df.Filter(mask)
	if err != nil {
		return nil, err
	}
	defer filtered.Release()

	total, err := totalPurchase(filtered)
	if err != nil {
		return nil, err
	}
	return filtered.WithColumn(total)
}

// totalPurchase multiplies quantity and unit price row by row; a null in
// either gives a null total
func totalPurchase(df *dataframe.DataFrame) (dataframe.ISeries, error) {
	quantities, err := dataframe.TypedColumn[int64](df, io.ColQuantity)
	if err != nil {
		return nil, err
	}
	prices, err := dataframe.TypedColumn[float64](df, io.ColUnitPrice)
	if err != nil {
		return nil, err
	}

	values := make([]float64, df.Len())
	valid := make([]bool, df.Len())
	for i := range values {
		if quantities.IsNull(i) || prices.IsNull(i) {
			continue
		}
		values[i] = float64(quantities.Value(i)) * prices.Value(i)
		valid[i] = true
	}
	return series.NewWithValidity(ColTotalPurchase, values, valid, memory.NewGoAllocator())
}
