package io

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/series"
)

// Read reads Parquet data and returns a DataFrame. Columns named by the
// schema are converted to the schema's kind; other columns keep their type
// when it is supported and are rendered as strings otherwise.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	const op = "ReadParquet"

	data, err := io.ReadAll(r.src)
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	pqReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewFormatError(op, "", fmt.Sprintf("not a parquet file: %v", err))
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, r.mem)
	if err != nil {
		return nil, errors.NewFormatError(op, "", fmt.Sprintf("creating arrow reader: %v", err))
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, errors.NewFormatError(op, "", fmt.Sprintf("reading table: %v", err))
	}
	defer table.Release()

	schema := table.Schema()
	header := make([]string, 0, schema.NumFields())
	for _, field := range schema.Fields() {
		header = append(header, field.Name)
	}
	if err := r.schema.validateHeader(op, header); err != nil {
		return nil, err
	}

	decoder := cellDecoder{op: op, mem: r.mem, firstRow: 1}
	columns := make([]dataframe.ISeries, 0, len(header))
	for i := range int(table.NumCols()) {
		s, err := r.convertColumn(decoder, table.Column(i))
		if err != nil {
			for _, c := range columns {
				c.Release()
			}
			return nil, err
		}
		columns = append(columns, s)
	}
	return dataframe.New(columns...), nil
}

// convertColumn merges the chunks of column and converts it to its kind
func (r *ParquetReader) convertColumn(decoder cellDecoder, column *arrow.Column) (dataframe.ISeries, error) {
	name := column.Name()
	chunks := column.Data().Chunks()

	var arr arrow.Array
	switch len(chunks) {
	case 0:
		arr = array.MakeArrayOfNull(r.mem, column.DataType(), 0)
	case 1:
		arr = chunks[0]
		arr.Retain()
	default:
		merged, err := array.Concatenate(chunks, r.mem)
		if err != nil {
			return nil, fmt.Errorf("merging chunks of %s: %w", name, err)
		}
		arr = merged
	}
	defer arr.Release()

	kind, named := r.schema.Lookup(name)
	if !named {
		if s, err := dataframe.SeriesFromArray(name, arr); err == nil {
			return s, nil
		}
		return decoder.decode(name, KindString, arrayCells(arr))
	}

	if native(kind, arr.DataType()) {
		return dataframe.SeriesFromArray(name, arr)
	}
	if ts, ok := arr.(*array.Timestamp); ok && kind == KindTime {
		return timestampSeries(name, ts, r.mem)
	}
	return decoder.decode(name, kind, arrayCells(arr))
}

// native reports whether arrays of type dt need no conversion for kind
func native(kind ColumnKind, dt arrow.DataType) bool {
	switch kind {
	case KindString:
		return dt.ID() == arrow.STRING
	case KindInt:
		return dt.ID() == arrow.INT64
	case KindFloat:
		return dt.ID() == arrow.FLOAT64
	case KindTime:
		return timestampKind(dt)
	default:
		return false
	}
}

// timestampSeries converts a timestamp array of any unit to microseconds UTC
func timestampSeries(name string, arr *array.Timestamp, mem memory.Allocator) (dataframe.ISeries, error) {
	unit := arr.DataType().(*arrow.TimestampType).Unit
	values := make([]time.Time, arr.Len())
	valid := make([]bool, arr.Len())
	for i := range values {
		if arr.IsNull(i) {
			continue
		}
		values[i] = arr.Value(i).ToTime(unit).UTC()
		valid[i] = true
	}
	return series.NewWithValidity(name, values, valid, mem)
}

// arrayCells renders every element as text; nulls become empty cells
func arrayCells(arr arrow.Array) []string {
	cells := make([]string, arr.Len())
	for i := range cells {
		if arr.IsNull(i) {
			continue
		}
		switch typed := arr.(type) {
		case *array.Float32:
			cells[i] = strconv.FormatFloat(float64(typed.Value(i)), 'g', -1, 32)
		case *array.Timestamp:
			unit := typed.DataType().(*arrow.TimestampType).Unit
			cells[i] = typed.Value(i).ToTime(unit).UTC().Format(time.RFC3339)
		default:
			cells[i] = arr.ValueStr(i)
		}
	}
	return cells
}

// Write writes the DataFrame to Parquet format. Nulls are preserved.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	table := dataFrameToArrowTable(df)
	defer table.Release()

	var compression compress.Compression
	switch w.options.Compression {
	case "snappy":
		compression = compress.Codecs.Snappy
	case "gzip":
		compression = compress.Codecs.Gzip
	case "zstd":
		compression = compress.Codecs.Zstd
	case "uncompressed":
		compression = compress.Codecs.Uncompressed
	default:
		compression = compress.Codecs.Snappy
	}

	batchSize := w.options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compression),
		parquet.WithBatchSize(int64(batchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(memory.NewGoAllocator()),
		pqarrow.WithStoreSchema(),
	)

	writer, err := pqarrow.NewFileWriter(table.Schema(), w.dst, props, arrowProps)
	if err != nil {
		return fmt.Errorf("creating file writer: %w", err)
	}

	chunk := int64(df.Len())
	if chunk == 0 {
		chunk = 1
	}
	if err := writer.WriteTable(table, chunk); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing table: %w", err)
	}
	return writer.Close()
}

// dataFrameToArrowTable shares the column arrays of df in an Arrow table
func dataFrameToArrowTable(df *dataframe.DataFrame) arrow.Table {
	fields := make([]arrow.Field, 0, df.Width())
	arrays := make([]arrow.Array, 0, df.Width())

	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		arr := col.Array()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	chunks := make([][]arrow.Array, len(arrays))
	for i, arr := range arrays {
		chunks[i] = []arrow.Array{arr}
	}
	return array.NewTableFromSlice(arrow.NewSchema(fields, nil), chunks)
}
