package io

import (
	"encoding/csv"
	"fmt"

	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
)

// Read reads CSV data and returns a DataFrame
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.src)
	if r.options.Delimiter != 0 {
		csvReader.Comma = r.options.Delimiter
	}
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, errors.NewFormatError("ReadCSV", "", fmt.Sprintf("malformed CSV: %v", err))
	}

	if len(records) == 0 {
		if len(r.schema.Columns) > 0 {
			return nil, errors.NewFormatError("ReadCSV", "", "missing header row")
		}
		return dataframe.New(), nil
	}

	decoder := cellDecoder{op: "ReadCSV", mem: r.mem, firstRow: 2}
	return buildFrame(decoder, r.schema, records[0], records[1:])
}

// Write writes the DataFrame to CSV format. Nulls are written as empty fields.
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.dst)
	if w.options.Delimiter != 0 {
		csvWriter.Comma = w.options.Delimiter
	}

	if err := csvWriter.Write(df.Columns()); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}

	columns := df.Columns()
	for i := 0; i < df.Len(); i++ {
		row := make([]string, len(columns))
		for j, name := range columns {
			column, _ := df.Column(name)
			row[j] = column.GetAsString(i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
