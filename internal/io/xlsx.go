package io

import (
	"fmt"

	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
	"github.com/xuri/excelize/v2"
)

// Read reads one worksheet and returns a DataFrame. The first row is the
// header. Cells are read unformatted, so dates arrive as serial numbers.
func (r *XLSXReader) Read() (*dataframe.DataFrame, error) {
	const op = "ReadXLSX"

	f, err := excelize.OpenReader(r.src)
	if err != nil {
		return nil, errors.NewFormatError(op, "", fmt.Sprintf("not a spreadsheet: %v", err))
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := r.options.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewFormatError(op, "", "workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.NewFormatError(op, "", fmt.Sprintf("sheet %q: %v", sheet, err))
	}

	if len(rows) == 0 {
		if len(r.schema.Columns) > 0 {
			return nil, errors.NewFormatError(op, "", fmt.Sprintf("sheet %q is empty", sheet))
		}
		return dataframe.New(), nil
	}

	decoder := cellDecoder{op: op, mem: r.mem, firstRow: 2, date1904: uses1904(f)}
	return buildFrame(decoder, r.schema, rows[0], rows[1:])
}

// uses1904 reports whether the workbook counts dates from 1904
func uses1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}
