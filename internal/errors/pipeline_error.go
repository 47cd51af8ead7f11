// Package errors provides the error taxonomy shared by the loader, the
// DataFrame layer and the analysis stages. Every failure is a PipelineError
// carrying a Kind, so callers can branch with errors.Is against the Err*
// sentinels while the message still names the operation and column.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a PipelineError.
type Kind int

const (
	// KindInternal is an unexpected failure inside an operation.
	KindInternal Kind = iota
	// KindFile marks a missing or unreadable input file.
	KindFile
	// KindFormat marks input that does not match the expected schema.
	KindFormat
	// KindDivision marks a zero denominator in a derived metric.
	KindDivision
	// KindColumnMissing marks a column that an operation expected to find.
	KindColumnMissing
	// KindInsufficientData marks a table too small for the requested operation.
	KindInsufficientData
	// KindInvalidInput marks invalid arguments or configuration.
	KindInvalidInput
)

// String returns the name of the kind as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file error"
	case KindFormat:
		return "format error"
	case KindDivision:
		return "division error"
	case KindColumnMissing:
		return "column missing"
	case KindInsufficientData:
		return "insufficient data"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "internal error"
	}
}

// PipelineError is the standardized error returned by every operation.
type PipelineError struct {
	Kind    Kind   // Error classification
	Op      string // Operation name (e.g., "ReadTransactions", "Aggregate")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Column != "" {
		return fmt.Sprintf("%s: %s failed on column '%s': %s", e.Kind, e.Op, e.Column, msg)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Kind, e.Op, msg)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel of the same Kind, or an
// identical PipelineError.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if t.Op == "" && t.Column == "" && t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Op == t.Op && e.Column == t.Column && e.Message == t.Message
}

// Sentinels for errors.Is checks. They match any PipelineError of their Kind.
var (
	ErrFile             = &PipelineError{Kind: KindFile}
	ErrFormat           = &PipelineError{Kind: KindFormat}
	ErrDivision         = &PipelineError{Kind: KindDivision}
	ErrColumnMissing    = &PipelineError{Kind: KindColumnMissing}
	ErrInsufficientData = &PipelineError{Kind: KindInsufficientData}
	ErrInvalidInput     = &PipelineError{Kind: KindInvalidInput}
)

// NewFileError creates an error for a missing or unreadable file.
func NewFileError(op, path string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindFile,
		Op:      op,
		Message: fmt.Sprintf("cannot read %q", path),
		Cause:   cause,
	}
}

// NewFormatError creates an error for input that violates the schema.
func NewFormatError(op, column, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindFormat,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewDivisionError creates an error for a zero denominator.
func NewDivisionError(op, quantity string) *PipelineError {
	return &PipelineError{
		Kind:    KindDivision,
		Op:      op,
		Message: fmt.Sprintf("%s is zero", quantity),
	}
}

// NewColumnMissingError creates an error for an expected column that is absent.
func NewColumnMissingError(op, column string) *PipelineError {
	return &PipelineError{
		Kind:    KindColumnMissing,
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *PipelineError {
	return NewColumnMissingError(op, column)
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, typeName string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidInput,
		Op:      op,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewInsufficientDataError creates an error for tables too small to process.
func NewInsufficientDataError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInsufficientData,
		Op:      op,
		Message: message,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *PipelineError {
	return &PipelineError{
		Kind:    KindInvalidInput,
		Op:      op,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *PipelineError {
	return &PipelineError{
		Kind:    KindInternal,
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

// IsPipelineError reports whether err wraps a PipelineError.
func IsPipelineError(err error) bool {
	var pe *PipelineError
	return stderrors.As(err, &pe)
}
