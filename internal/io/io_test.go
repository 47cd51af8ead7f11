package io_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	cerrors "github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/io"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransactions() []testutil.Transaction {
	return []testutil.Transaction{
		{CustomerID: "17850", Country: "United Kingdom",
			Date: time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), Quantity: 6, UnitPrice: 2.55},
		{CustomerID: "13047", Country: "United Kingdom",
			Date: time.Date(2011, 7, 1, 10, 0, 0, 0, time.UTC), Quantity: 2, UnitPrice: 3.39},
		{Country: "France",
			Date: time.Date(2011, 8, 1, 12, 30, 0, 0, time.UTC), Quantity: -1, UnitPrice: 0.85},
	}
}

func assertTransactions(t *testing.T, df *dataframe.DataFrame) {
	t.Helper()

	assert.Equal(t, 3, df.Len())
	testutil.AssertDataFrameHasColumns(t, df, io.TransactionSchema.Names())
	assert.True(t, df.HasColumn("Description"), "extra columns are kept")

	ids, err := dataframe.TypedColumn[string](df, io.ColCustomerID)
	require.NoError(t, err)
	assert.Equal(t, "17850", ids.Value(0))
	assert.True(t, ids.IsNull(2), "a missing customer id is null")

	quantities, err := dataframe.ColumnValues[int64](df, io.ColQuantity)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 2, -1}, quantities)

	prices, err := dataframe.ColumnValues[float64](df, io.ColUnitPrice)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.55, 3.39, 0.85}, prices, 1e-9)

	dates, err := dataframe.ColumnValues[time.Time](df, io.ColInvoiceDate)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC), dates[0])
	assert.Equal(t, time.Date(2011, 8, 1, 12, 30, 0, 0, time.UTC), dates[2])
}

func TestReadTransactions_XLSX(t *testing.T) {
	path := testutil.WriteTransactionsXLSX(t, t.TempDir(), "online-retail.xlsx", sampleTransactions())

	df, err := io.ReadTransactions(path, memory.NewGoAllocator())
	require.NoError(t, err)
	defer df.Release()

	assertTransactions(t, df)
}

func TestReadTransactions_CSV(t *testing.T) {
	path := testutil.WriteTransactionsCSV(t, t.TempDir(), "online-retail.csv", sampleTransactions())

	df, err := io.ReadTransactions(path, memory.NewGoAllocator())
	require.NoError(t, err)
	defer df.Release()

	assertTransactions(t, df)
}

func TestReadTransactions_Parquet(t *testing.T) {
	dir := t.TempDir()
	src := testutil.NewTransactionFrame(t, nil, sampleTransactions())
	defer src.Release()

	path := filepath.Join(dir, "online-retail.parquet")
	require.NoError(t, io.WriteFile(path, src))

	df, err := io.ReadTransactions(path, memory.NewGoAllocator())
	require.NoError(t, err)
	defer df.Release()

	assert.Equal(t, src.Columns(), df.Columns())
	ids, err := dataframe.TypedColumn[string](df, io.ColCustomerID)
	require.NoError(t, err)
	assert.True(t, ids.IsNull(2))

	dates, err := dataframe.ColumnValues[time.Time](df, io.ColInvoiceDate)
	require.NoError(t, err)
	assert.Equal(t, sampleTransactions()[1].Date, dates[1])
}

func TestReadTransactions_FileError(t *testing.T) {
	_, err := io.ReadTransactions(filepath.Join(t.TempDir(), "missing.xlsx"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrFile)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadTransactions_FormatErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing required columns are all named", func(t *testing.T) {
		path := filepath.Join(dir, "partial.csv")
		require.NoError(t, os.WriteFile(path, []byte("InvoiceNo,Quantity,Country\n536365,6,France\n"), 0o600))

		_, err := io.ReadTransactions(path, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrFormat)
		assert.Contains(t, err.Error(), "InvoiceDate, UnitPrice, CustomerID")
	})

	t.Run("missing required columns in a spreadsheet", func(t *testing.T) {
		path := filepath.Join(dir, "partial.xlsx")
		testutil.WriteXLSX(t, path, []string{"Country", "CustomerID"}, [][]any{{"France", 12583}})

		_, err := io.ReadTransactions(path, nil)
		assert.ErrorIs(t, err, cerrors.ErrFormat)
	})

	t.Run("unparsable number names column and row", func(t *testing.T) {
		path := filepath.Join(dir, "bad-qty.csv")
		content := strings.Join(testutil.TransactionHeader, ",") + "\n" +
			"536365,85123A,HOLDER,six,2010-12-01 08:26:00,2.55,17850,United Kingdom\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		_, err := io.ReadTransactions(path, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrFormat)

		var pErr *cerrors.PipelineError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, io.ColQuantity, pErr.Column)
		assert.Contains(t, pErr.Message, "row 2")
	})

	t.Run("unparsable date", func(t *testing.T) {
		path := filepath.Join(dir, "bad-date.csv")
		content := strings.Join(testutil.TransactionHeader, ",") + "\n" +
			"536365,85123A,HOLDER,6,yesterday,2.55,17850,United Kingdom\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		_, err := io.ReadTransactions(path, nil)
		var pErr *cerrors.PipelineError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, cerrors.KindFormat, pErr.Kind)
		assert.Equal(t, io.ColInvoiceDate, pErr.Column)
	})

	t.Run("blank invoice date", func(t *testing.T) {
		txs := []testutil.Transaction{
			{CustomerID: "C1", Country: "United Kingdom", Date: time.Date(2011, 7, 1, 0, 0, 0, 0, time.UTC), Quantity: 2, UnitPrice: 10},
			{CustomerID: "C1", Country: "United Kingdom", Quantity: 1, UnitPrice: 5},
		}
		for _, path := range []string{
			testutil.WriteTransactionsXLSX(t, dir, "blank-date.xlsx", txs),
			testutil.WriteTransactionsCSV(t, dir, "blank-date.csv", txs),
		} {
			_, err := io.ReadTransactions(path, nil)
			require.Error(t, err, path)
			assert.ErrorIs(t, err, cerrors.ErrFormat)

			var pErr *cerrors.PipelineError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, io.ColInvoiceDate, pErr.Column)
			assert.Contains(t, pErr.Message, "data row 2")
		}
	})

	t.Run("not a spreadsheet", func(t *testing.T) {
		path := filepath.Join(dir, "fake.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o600))

		_, err := io.ReadTransactions(path, nil)
		assert.ErrorIs(t, err, cerrors.ErrFormat)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "data.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

		_, err := io.ReadTransactions(path, nil)
		assert.ErrorIs(t, err, cerrors.ErrFormat)
	})
}

func TestCSVReader_Dialect(t *testing.T) {
	data := "# export\nCountry;CustomerID\nFrance; 12583.0\n"
	options := io.DefaultCSVOptions()
	options.Delimiter = ';'
	options.Comment = '#'
	options.SkipInitialSpace = true

	schema := io.Schema{Columns: []io.Column{{Name: "CustomerID", Kind: io.KindID}}}
	df, err := io.NewCSVReader(strings.NewReader(data), options, schema, nil).Read()
	require.NoError(t, err)
	defer df.Release()

	ids, err := dataframe.ColumnValues[string](df, "CustomerID")
	require.NoError(t, err)
	assert.Equal(t, []string{"12583"}, ids, "integral float ids are normalised")
}

func TestCSVReader_Malformed(t *testing.T) {
	data := "a,b\n1,2,3\n"
	_, err := io.NewCSVReader(strings.NewReader(data), io.DefaultCSVOptions(), io.Schema{}, nil).Read()
	assert.ErrorIs(t, err, cerrors.ErrFormat)
}

func TestCSVWriter(t *testing.T) {
	ids, err := series.NewWithValidity("CustomerID", []string{"17850", ""}, []bool{true, false}, nil)
	require.NoError(t, err)
	df := dataframe.New(ids, series.New("CLTV", []float64{12.5, 0.25}, nil))
	defer df.Release()

	var buf bytes.Buffer
	require.NoError(t, io.NewCSVWriter(&buf, io.DefaultCSVOptions()).Write(df))
	assert.Equal(t, "CustomerID,CLTV\n17850,12.5\n,0.25\n", buf.String())
}

func TestParquetRoundTrip(t *testing.T) {
	df := dataframe.New(
		series.New("CustomerID", []string{"12346", "12347"}, nil),
		series.New("InvoiceCount", []int64{1, 182}, nil),
		series.New("CLTV", []float64{3.5, 1204.75}, nil),
	)
	defer df.Release()

	for _, compression := range []string{"snappy", "gzip", "uncompressed"} {
		t.Run(compression, func(t *testing.T) {
			options := io.DefaultParquetOptions()
			options.Compression = compression

			var buf bytes.Buffer
			require.NoError(t, io.NewParquetWriter(&buf, options).Write(df))

			result, err := io.NewParquetReader(bytes.NewReader(buf.Bytes()), options, io.Schema{}, nil).Read()
			require.NoError(t, err)
			defer result.Release()

			assert.Equal(t, df.Columns(), result.Columns())
			counts, err := dataframe.ColumnValues[int64](result, "InvoiceCount")
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 182}, counts)
		})
	}

	_, err := io.NewParquetReader(bytes.NewReader(nil), io.DefaultParquetOptions(), io.Schema{}, nil).Read()
	assert.ErrorIs(t, err, cerrors.ErrFormat)
}

func TestWriteFile_UnsupportedExtension(t *testing.T) {
	df := dataframe.New(series.New("a", []int64{1}, nil))
	defer df.Release()

	err := io.WriteFile(filepath.Join(t.TempDir(), "out.json"), df)
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
}
