package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/paveg/cltv/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.PipelineError
		expected string
	}{
		{
			name:     "Error with column",
			err:      errors.NewColumnMissingError("Features", "Dec-2011"),
			expected: "column missing: Features failed on column 'Dec-2011': column does not exist",
		},
		{
			name:     "Error without column",
			err:      errors.NewDivisionError("Estimate", "churn rate"),
			expected: "division error: Estimate failed: churn rate is zero",
		},
		{
			name:     "Error with cause",
			err:      errors.NewFileError("ReadTransactions", "missing.xlsx", stderrors.New("no such file")),
			expected: `file error: ReadTransactions failed: cannot read "missing.xlsx": no such file`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := errors.NewFileError("ReadTransactions", "data.xlsx", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestPipelineError_IsSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"file", errors.NewFileError("op", "p", nil), errors.ErrFile},
		{"format", errors.NewFormatError("op", "Quantity", "not a number"), errors.ErrFormat},
		{"division", errors.NewDivisionError("op", "total quantity"), errors.ErrDivision},
		{"column missing", errors.NewColumnMissingError("op", "Jul-2011"), errors.ErrColumnMissing},
		{"insufficient", errors.NewInsufficientDataError("op", "too few rows"), errors.ErrInsufficientData},
		{"invalid", errors.NewInvalidInputError("op", "bad"), errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}

	t.Run("different kind does not match", func(t *testing.T) {
		err := errors.NewDivisionError("Estimate", "churn rate")
		assert.NotErrorIs(t, err, errors.ErrColumnMissing)
		assert.NotErrorIs(t, err, errors.ErrFile)
	})
}

func TestPipelineError_IsExact(t *testing.T) {
	err1 := errors.NewColumnMissingError("Features", "Dec-2011")
	err2 := errors.NewColumnMissingError("Features", "Dec-2011")
	err3 := errors.NewColumnMissingError("Features", "Nov-2011")

	assert.ErrorIs(t, err1, err2)
	assert.NotErrorIs(t, err1, err3)
}

func TestPipelineError_As(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", errors.NewFormatError("ReadTransactions", "InvoiceDate", "unparsable date"))

	var pErr *errors.PipelineError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, errors.KindFormat, pErr.Kind)
	assert.Equal(t, "InvoiceDate", pErr.Column)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "division error", errors.KindDivision.String())
	assert.Equal(t, "internal error", errors.KindInternal.String())
	assert.Equal(t, "column missing", errors.KindColumnMissing.String())
}

func TestIsPipelineError(t *testing.T) {
	assert.True(t, errors.IsPipelineError(fmt.Errorf("stage: %w", errors.ErrDivision)))
	assert.False(t, errors.IsPipelineError(fmt.Errorf("plain")))
}
