// Package io reads transaction tables from spreadsheet, CSV and Parquet
// files and writes result tables back out.
//
// Readers are schema-directed: a Schema names the required columns and the
// type each one is converted to. Columns the schema does not name are kept
// as strings. Empty cells become nulls.
//
// Memory management: every returned DataFrame is Arrow-backed and must be
// released with defer df.Release().
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
)

// DefaultBatchSize is the default row group size of written Parquet files
const DefaultBatchSize = 1000

// DataReader produces one table per call
type DataReader interface {
	Read() (*dataframe.DataFrame, error)
}

// DataWriter encodes a table to its destination
type DataWriter interface {
	Write(df *dataframe.DataFrame) error
}

// source is what every reader needs: the bytes, the columns to require and
// where to allocate the result
type source struct {
	src    io.Reader
	schema Schema
	mem    memory.Allocator
}

func newSource(r io.Reader, schema Schema, mem memory.Allocator) source {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return source{src: r, schema: schema, mem: mem}
}

// CSVOptions is the dialect of CSV input and output
type CSVOptions struct {
	Delimiter rune // 0 means comma
	Comment   rune // lines starting with it are skipped; 0 disables
	// SkipInitialSpace drops blanks after a delimiter
	SkipInitialSpace bool
}

// DefaultCSVOptions returns a plain comma separated dialect
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Delimiter: ','}
}

// CSVReader reads a CSV table whose first record is the header
type CSVReader struct {
	source
	options CSVOptions
}

// NewCSVReader returns a reader of r. A nil mem uses the Go allocator.
func NewCSVReader(r io.Reader, options CSVOptions, schema Schema, mem memory.Allocator) *CSVReader {
	return &CSVReader{source: newSource(r, schema, mem), options: options}
}

// CSVWriter writes a header record and one record per row
type CSVWriter struct {
	dst     io.Writer
	options CSVOptions
}

func NewCSVWriter(w io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{dst: w, options: options}
}

// XLSXOptions selects what part of a workbook is read
type XLSXOptions struct {
	Sheet string // empty selects the first sheet
}

// XLSXReader reads one worksheet of an xlsx workbook
type XLSXReader struct {
	source
	options XLSXOptions
}

func NewXLSXReader(r io.Reader, options XLSXOptions, schema Schema, mem memory.Allocator) *XLSXReader {
	return &XLSXReader{source: newSource(r, schema, mem), options: options}
}

// ParquetOptions configures Parquet encoding
type ParquetOptions struct {
	// Compression is snappy, gzip, zstd or uncompressed
	Compression string
	// BatchSize is the row group length used by the writer
	BatchSize int
}

// DefaultParquetOptions returns snappy compression with DefaultBatchSize
// row groups
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{Compression: "snappy", BatchSize: DefaultBatchSize}
}

// ParquetReader reads a whole Parquet file into one table
type ParquetReader struct {
	source
	options ParquetOptions
}

func NewParquetReader(r io.Reader, options ParquetOptions, schema Schema, mem memory.Allocator) *ParquetReader {
	return &ParquetReader{source: newSource(r, schema, mem), options: options}
}

// ParquetWriter writes a table as a single Parquet file
type ParquetWriter struct {
	dst     io.Writer
	options ParquetOptions
}

func NewParquetWriter(w io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{dst: w, options: options}
}
