package io

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/cltv/internal/dataframe"
	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/series"
	"github.com/paveg/cltv/internal/validation"
	"github.com/xuri/excelize/v2"
)

// Transaction columns
const (
	ColInvoiceNo   = "InvoiceNo"
	ColInvoiceDate = "InvoiceDate"
	ColQuantity    = "Quantity"
	ColUnitPrice   = "UnitPrice"
	ColCustomerID  = "CustomerID"
	ColCountry     = "Country"
)

// ColumnKind is the type a column is converted to on read
type ColumnKind int

const (
	// KindString keeps the cell text
	KindString ColumnKind = iota
	// KindID is text, with integral numbers such as 17850.0 rendered as 17850
	KindID
	// KindInt parses to int64
	KindInt
	// KindFloat parses to float64
	KindFloat
	// KindTime parses spreadsheet serial dates or text timestamps to UTC
	KindTime
)

func (k ColumnKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindID:
		return "id"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column is one required column of a Schema
type Column struct {
	Name string
	Kind ColumnKind
	// NotNull rejects empty cells
	NotNull bool
}

// Schema lists the columns a reader requires and how to convert them. The
// zero Schema requires nothing and keeps CSV and spreadsheet cells as text.
type Schema struct {
	Columns []Column
}

// TransactionSchema describes the retail transactions table
var TransactionSchema = Schema{Columns: []Column{
	{Name: ColInvoiceNo, Kind: KindString},
	{Name: ColInvoiceDate, Kind: KindTime, NotNull: true},
	{Name: ColQuantity, Kind: KindInt},
	{Name: ColUnitPrice, Kind: KindFloat},
	{Name: ColCustomerID, Kind: KindID},
	{Name: ColCountry, Kind: KindString},
}}

// Names returns the required column names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the kind of a named column
func (s Schema) Lookup(name string) (ColumnKind, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Kind, true
		}
	}
	return KindString, false
}

// checkNulls reports the first NotNull column of df holding a null
func (s Schema) checkNulls(op string, df *dataframe.DataFrame) error {
	for _, c := range s.Columns {
		if !c.NotNull {
			continue
		}
		col, ok := df.Column(c.Name)
		if !ok || col.NullN() == 0 {
			continue
		}
		first := 0
		for first < col.Len() && !col.IsNull(first) {
			first++
		}
		return errors.NewFormatError(op, c.Name,
			fmt.Sprintf("%d empty cells, first in data row %d", col.NullN(), first+1))
	}
	return nil
}

// validateHeader reports every required column missing from header
func (s Schema) validateHeader(op string, header []string) error {
	return validation.NewSchemaValidator(headerSet(header), op, s.Names()...).Validate()
}

// headerSet adapts a header row to validation.ColumnProvider
type headerSet []string

func (h headerSet) HasColumn(name string) bool {
	for _, c := range h {
		if c == name {
			return true
		}
	}
	return false
}

func (h headerSet) Columns() []string { return h }
func (h headerSet) Len() int          { return 0 }
func (h headerSet) Width() int        { return len(h) }

// textLayouts are the accepted layouts of textual dates
var textLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006 15:04",
	"2006-01-02",
}

// parseTime parses an Excel serial date or a textual timestamp
func parseTime(raw string, date1904 bool) (time.Time, error) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, err
		}
		// serials carry float noise below a millisecond
		return t.Round(time.Millisecond).UTC(), nil
	}
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// parseInt accepts integers and integral floats such as "6.0"
func parseInt(raw string) (int64, error) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return int64(f), nil
}

// normalizeID renders integral numbers without a fractional part
func normalizeID(raw string) string {
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		if strings.ContainsAny(raw, ".eE") {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return raw
}

// cellDecoder converts raw cell text to a column
type cellDecoder struct {
	op       string
	date1904 bool
	mem      memory.Allocator
	// firstRow is the 1-based file row of the first data cell
	firstRow int
}

// decode builds the named column from its cells. Empty cells become nulls.
func (d cellDecoder) decode(name string, kind ColumnKind, cells []string) (dataframe.ISeries, error) {
	valid := make([]bool, len(cells))
	for i, cell := range cells {
		valid[i] = strings.TrimSpace(cell) != ""
	}

	fail := func(row int, err error) error {
		return errors.NewFormatError(d.op, name, fmt.Sprintf("row %d: %v", row+d.firstRow, err))
	}

	switch kind {
	case KindInt:
		values := make([]int64, len(cells))
		for i, cell := range cells {
			if !valid[i] {
				continue
			}
			v, err := parseInt(strings.TrimSpace(cell))
			if err != nil {
				return nil, fail(i, err)
			}
			values[i] = v
		}
		return series.NewWithValidity(name, values, valid, d.mem)

	case KindFloat:
		values := make([]float64, len(cells))
		for i, cell := range cells {
			if !valid[i] {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fail(i, fmt.Errorf("not a number: %q", cell))
			}
			values[i] = v
		}
		return series.NewWithValidity(name, values, valid, d.mem)

	case KindTime:
		values := make([]time.Time, len(cells))
		for i, cell := range cells {
			if !valid[i] {
				continue
			}
			v, err := parseTime(strings.TrimSpace(cell), d.date1904)
			if err != nil {
				return nil, fail(i, err)
			}
			values[i] = v
		}
		return series.NewWithValidity(name, values, valid, d.mem)

	case KindID:
		values := make([]string, len(cells))
		for i, cell := range cells {
			if valid[i] {
				values[i] = normalizeID(strings.TrimSpace(cell))
			}
		}
		return series.NewWithValidity(name, values, valid, d.mem)

	default:
		values := make([]string, len(cells))
		for i, cell := range cells {
			if valid[i] {
				values[i] = cell
			}
		}
		return series.NewWithValidity(name, values, valid, d.mem)
	}
}

// buildFrame turns a header and row-major cells into a DataFrame. Short
// rows are padded with empty cells.
func buildFrame(d cellDecoder, schema Schema, header []string, rows [][]string) (*dataframe.DataFrame, error) {
	if err := schema.validateHeader(d.op, header); err != nil {
		return nil, err
	}

	columns := make([]dataframe.ISeries, 0, len(header))
	seen := make(map[string]bool, len(header))
	for col, name := range header {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		cells := make([]string, len(rows))
		for i, row := range rows {
			if col < len(row) {
				cells[i] = row[col]
			}
		}

		kind, _ := schema.Lookup(name)
		s, err := d.decode(name, kind, cells)
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

// timestampKind reports whether dt is already the canonical time type
func timestampKind(dt arrow.DataType) bool {
	ts, ok := dt.(*arrow.TimestampType)
	return ok && ts.Unit == arrow.Microsecond && ts.TimeZone == "UTC"
}
