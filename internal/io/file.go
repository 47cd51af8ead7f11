package io

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
)

// Option configures ReadFile
type Option func(*readOptions)

type readOptions struct {
	sheet string
	csv   CSVOptions
}

// WithSheet selects the worksheet of a spreadsheet input
func WithSheet(sheet string) Option {
	return func(o *readOptions) { o.sheet = sheet }
}

// WithCSVOptions overrides the CSV dialect of a .csv input
func WithCSVOptions(csv CSVOptions) Option {
	return func(o *readOptions) { o.csv = csv }
}

// ReadTransactions loads the retail transactions table from path
func ReadTransactions(path string, mem memory.Allocator, opts ...Option) (*dataframe.DataFrame, error) {
	return ReadFile(path, TransactionSchema, mem, opts...)
}

// ReadFile reads a .xlsx, .xlsm, .csv or .parquet file, choosing the reader
// by extension. The file is closed before ReadFile returns. An empty cell in
// a NotNull column is a format error.
func ReadFile(path string, schema Schema, mem memory.Allocator, opts ...Option) (*dataframe.DataFrame, error) {
	options := readOptions{csv: DefaultCSVOptions()}
	for _, opt := range opts {
		opt(&options)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewFileError("ReadFile", path, err)
	}
	defer f.Close()

	var reader DataReader
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		reader = NewXLSXReader(f, XLSXOptions{Sheet: options.sheet}, schema, mem)
	case ".csv":
		reader = NewCSVReader(f, options.csv, schema, mem)
	case ".parquet":
		reader = NewParquetReader(f, DefaultParquetOptions(), schema, mem)
	default:
		return nil, errors.NewFormatError("ReadFile", "", fmt.Sprintf("unsupported file extension %q", ext))
	}

	df, err := reader.Read()
	if err != nil {
		if errors.IsPipelineError(err) {
			return nil, err
		}
		return nil, errors.NewFileError("ReadFile", path, err)
	}
	if err := schema.checkNulls("ReadFile", df); err != nil {
		df.Release()
		return nil, err
	}
	return df, nil
}

// WriteFile writes df as CSV or Parquet, chosen by the extension of path
func WriteFile(path string, df *dataframe.DataFrame) error {
	var buf bytes.Buffer

	var writer DataWriter
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		writer = NewCSVWriter(&buf, DefaultCSVOptions())
	case ".parquet":
		writer = NewParquetWriter(&buf, DefaultParquetOptions())
	default:
		return errors.NewInvalidInputError("WriteFile", fmt.Sprintf("unsupported export extension %q", ext))
	}

	if err := writer.Write(df); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return errors.NewFileError("WriteFile", path, err)
	}
	return nil
}
