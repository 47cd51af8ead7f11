// Package validation provides reusable input validators for tables and
// configuration. Each validator returns a typed PipelineError so callers
// can tell a schema problem from a missing column or a zero denominator.
package validation

import (
	"fmt"
	"strings"

	"github.com/paveg/cltv/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ValidatorFunc adapts a plain check to Validator
type ValidatorFunc func() error

// Validate calls f
func (f ValidatorFunc) Validate() error {
	return f()
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	Columns() []string
	Len() int
	Width() int
}

// ColumnValidator validates that columns exist. A missing column is reported
// as a column-missing error.
type ColumnValidator struct {
	df      ColumnProvider
	columns []string
	op      string
}

// NewColumnValidator creates a validator for column operations
func NewColumnValidator(df ColumnProvider, op string, columns ...string) *ColumnValidator {
	return &ColumnValidator{
		df:      df,
		columns: columns,
		op:      op,
	}
}

// Validate checks if all columns exist in the table
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return errors.NewColumnMissingError(v.op, column)
		}
	}
	return nil
}

// SchemaValidator validates that an input table carries its required
// columns. Unlike ColumnValidator, a missing column is a format error of the
// input and all missing columns are reported together.
type SchemaValidator struct {
	df       ColumnProvider
	required []string
	op       string
}

// NewSchemaValidator creates a validator for required input columns
func NewSchemaValidator(df ColumnProvider, op string, required ...string) *SchemaValidator {
	return &SchemaValidator{
		df:       df,
		required: required,
		op:       op,
	}
}

// Validate checks the required columns and lists every one that is absent
func (v *SchemaValidator) Validate() error {
	var missing []string
	for _, column := range v.required {
		if !v.df.HasColumn(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.NewFormatError(v.op, missing[0],
		fmt.Sprintf("required columns missing: %s", strings.Join(missing, ", ")))
}

// LengthValidator validates array length consistency
type LengthValidator struct {
	expected int
	actual   int
	op       string
	context  string
}

// NewLengthValidator creates a validator for length consistency
func NewLengthValidator(expected, actual int, op, context string) *LengthValidator {
	return &LengthValidator{
		expected: expected,
		actual:   actual,
		op:       op,
		context:  context,
	}
}

// Validate checks if lengths match
func (v *LengthValidator) Validate() error {
	if v.expected != v.actual {
		message := fmt.Sprintf("%s: expected length %d, got %d", v.context, v.expected, v.actual)
		return errors.NewInvalidInputError(v.op, message)
	}
	return nil
}

// RangeValidator validates that a value lies in the open interval
// (low, high). NaN is always out of range.
type RangeValidator struct {
	name      string
	value     float64
	low, high float64
	op        string
}

// NewRangeValidator creates a validator for low < value < high
func NewRangeValidator(op, name string, value, low, high float64) *RangeValidator {
	return &RangeValidator{name: name, value: value, low: low, high: high, op: op}
}

// Validate checks the bounds
func (v *RangeValidator) Validate() error {
	if v.value > v.low && v.value < v.high {
		return nil
	}
	return errors.NewInvalidInputError(v.op,
		fmt.Sprintf("%s must be in (%g, %g), got %g", v.name, v.low, v.high, v.value))
}

// NonZeroValidator validates a denominator before division
type NonZeroValidator struct {
	name  string
	value float64
	op    string
}

// NewNonZeroValidator creates a validator that fails with a division error
// when value is zero
func NewNonZeroValidator(op, name string, value float64) *NonZeroValidator {
	return &NonZeroValidator{name: name, value: value, op: op}
}

// Validate checks that the denominator is non-zero
func (v *NonZeroValidator) Validate() error {
	if v.value == 0 {
		return errors.NewDivisionError(v.op, v.name)
	}
	return nil
}

// EmptyValidator validates operations that require rows
type EmptyValidator struct {
	df ColumnProvider
	op string
}

// NewEmptyValidator creates a validator for empty table checks
func NewEmptyValidator(df ColumnProvider, op string) *EmptyValidator {
	return &EmptyValidator{df: df, op: op}
}

// Validate checks the table has at least one row
func (v *EmptyValidator) Validate() error {
	if v.df.Len() == 0 {
		return errors.NewInsufficientDataError(v.op, "operation not supported on empty table")
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{
		validators: validators,
	}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateColumns is a convenience function for column validation
func ValidateColumns(df ColumnProvider, op string, columns ...string) error {
	return NewColumnValidator(df, op, columns...).Validate()
}

// ValidateSchema is a convenience function for required-column validation
func ValidateSchema(df ColumnProvider, op string, required ...string) error {
	return NewSchemaValidator(df, op, required...).Validate()
}

// ValidateLength is a convenience function for length validation
func ValidateLength(expected, actual int, op, context string) error {
	return NewLengthValidator(expected, actual, op, context).Validate()
}

// ValidateNonZero is a convenience function for denominator validation
func ValidateNonZero(op, name string, value float64) error {
	return NewNonZeroValidator(op, name, value).Validate()
}
