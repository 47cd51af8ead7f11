// Package testutil provides fixtures shared by the package tests: memory
// setup, transaction tables built in memory, and the same transactions
// written to spreadsheet and CSV files.
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// TransactionHeader is the column order of generated transaction files
var TransactionHeader = []string{
	"InvoiceNo", "StockCode", "Description", "Quantity", "InvoiceDate", "UnitPrice", "CustomerID", "Country",
}

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a checked allocator and asserts on Release that
// every Arrow buffer allocated through it was freed.
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	allocator := memory.NewCheckedAllocator(memory.NewGoAllocator())

	return &TestMemoryContext{
		Allocator: allocator,
		cleanup: func() {
			allocator.AssertSize(tb, 0)
		},
	}
}

// Transaction is one line item of a generated dataset. An empty CustomerID
// or a zero Date is written to files as a missing cell.
type Transaction struct {
	InvoiceNo  string
	CustomerID string
	Country    string
	Date       time.Time
	Quantity   int64
	UnitPrice  float64
}

// Date is a shorthand for a UTC timestamp at midnight
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NewTransactionFrame builds the transactions table as the loader would
// return it. The caller releases the frame.
func NewTransactionFrame(tb testing.TB, allocator memory.Allocator, txs []Transaction) *dataframe.DataFrame {
	tb.Helper()

	n := len(txs)
	invoices := make([]string, n)
	ids := make([]string, n)
	idValid := make([]bool, n)
	countries := make([]string, n)
	dates := make([]time.Time, n)
	quantities := make([]int64, n)
	prices := make([]float64, n)

	for i, tx := range txs {
		invoices[i] = invoiceNo(tx, i)
		ids[i] = tx.CustomerID
		idValid[i] = tx.CustomerID != ""
		countries[i] = tx.Country
		dates[i] = tx.Date
		quantities[i] = tx.Quantity
		prices[i] = tx.UnitPrice
	}

	idSeries, err := series.NewWithValidity("CustomerID", ids, idValid, allocator)
	require.NoError(tb, err)

	return dataframe.New(
		series.New("InvoiceNo", invoices, allocator),
		series.New("Quantity", quantities, allocator),
		series.New("InvoiceDate", dates, allocator),
		series.New("UnitPrice", prices, allocator),
		idSeries,
		series.New("Country", countries, allocator),
	)
}

// WriteXLSX writes header and rows to the first sheet of a new workbook
func WriteXLSX(tb testing.TB, path string, header []string, rows [][]any) {
	tb.Helper()

	f := excelize.NewFile()
	defer func() {
		assert.NoError(tb, f.Close())
	}()
	sheet := f.GetSheetName(0)

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	require.NoError(tb, f.SetSheetRow(sheet, "A1", &headerRow))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(tb, err)
		r := row
		require.NoError(tb, f.SetSheetRow(sheet, cell, &r))
	}
	require.NoError(tb, f.SaveAs(path))
}

// WriteTransactionsXLSX writes txs to dir/name and returns the path
func WriteTransactionsXLSX(tb testing.TB, dir, name string, txs []Transaction) string {
	tb.Helper()

	rows := make([][]any, len(txs))
	for i, tx := range txs {
		var id any
		if tx.CustomerID != "" {
			if numeric, err := strconv.ParseFloat(tx.CustomerID, 64); err == nil {
				id = numeric
			} else {
				id = tx.CustomerID
			}
		}
		var date any
		if !tx.Date.IsZero() {
			date = tx.Date
		}
		rows[i] = []any{invoiceNo(tx, i), "85123A", "WHITE HANGING HEART T-LIGHT HOLDER",
			tx.Quantity, date, tx.UnitPrice, id, tx.Country}
	}

	path := filepath.Join(dir, name)
	WriteXLSX(tb, path, TransactionHeader, rows)
	return path
}

// WriteTransactionsCSV writes txs as CSV to dir/name and returns the path
func WriteTransactionsCSV(tb testing.TB, dir, name string, txs []Transaction) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(tb, err)
	defer func() {
		assert.NoError(tb, f.Close())
	}()

	w := csv.NewWriter(f)
	require.NoError(tb, w.Write(TransactionHeader))
	for i, tx := range txs {
		require.NoError(tb, w.Write([]string{
			invoiceNo(tx, i),
			"85123A",
			"WHITE HANGING HEART T-LIGHT HOLDER",
			strconv.FormatInt(tx.Quantity, 10),
			formatDate(tx.Date),
			strconv.FormatFloat(tx.UnitPrice, 'g', -1, 64),
			tx.CustomerID,
			tx.Country,
		}))
	}
	w.Flush()
	require.NoError(tb, w.Error())
	return path
}

// AssertDataFrameHasColumns verifies that a DataFrame has the expected columns.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	for _, col := range expectedColumns {
		assert.True(t, df.HasColumn(col), "DataFrame should have column %s", col)
	}
}

// formatDate leaves a zero date blank
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func invoiceNo(tx Transaction, i int) string {
	if tx.InvoiceNo != "" {
		return tx.InvoiceNo
	}
	return strconv.Itoa(536365 + i)
}
