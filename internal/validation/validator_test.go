package validation_test

import (
	"math"
	"testing"

	cerrors "github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockColumnProvider implements ColumnProvider for testing.
type MockColumnProvider struct {
	columns []string
	length  int
}

func (m *MockColumnProvider) HasColumn(name string) bool {
	for _, col := range m.columns {
		if col == name {
			return true
		}
	}
	return false
}

func (m *MockColumnProvider) Columns() []string {
	return m.columns
}

func (m *MockColumnProvider) Len() int {
	return m.length
}

func (m *MockColumnProvider) Width() int {
	return len(m.columns)
}

func TestColumnValidator(t *testing.T) {
	mockDF := &MockColumnProvider{columns: []string{"CustomerID", "Jul-2011"}, length: 3}

	t.Run("Valid columns", func(t *testing.T) {
		err := validation.NewColumnValidator(mockDF, "Features", "CustomerID", "Jul-2011").Validate()
		require.NoError(t, err)
	})

	t.Run("Invalid column", func(t *testing.T) {
		err := validation.ValidateColumns(mockDF, "Features", "Dec-2011")
		require.Error(t, err)

		var pErr *cerrors.PipelineError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, "Features", pErr.Op)
		assert.Equal(t, "Dec-2011", pErr.Column)
		assert.ErrorIs(t, err, cerrors.ErrColumnMissing)
	})
}

func TestSchemaValidator(t *testing.T) {
	mockDF := &MockColumnProvider{columns: []string{"Country", "CustomerID"}, length: 1}

	t.Run("all present", func(t *testing.T) {
		require.NoError(t, validation.ValidateSchema(mockDF, "ReadTransactions", "Country", "CustomerID"))
	})

	t.Run("lists every missing column as a format error", func(t *testing.T) {
		err := validation.ValidateSchema(mockDF, "ReadTransactions", "Country", "Quantity", "UnitPrice")
		require.Error(t, err)
		assert.ErrorIs(t, err, cerrors.ErrFormat)
		assert.Contains(t, err.Error(), "Quantity, UnitPrice")
	})
}

func TestLengthValidator(t *testing.T) {
	require.NoError(t, validation.ValidateLength(3, 3, "Filter", "mask"))

	err := validation.ValidateLength(3, 2, "Filter", "mask")
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "expected length 3, got 2")
}

func TestRangeValidator(t *testing.T) {
	tests := []struct {
		name      string
		validator *validation.RangeValidator
		wantErr   bool
	}{
		{"inside open interval", validation.NewRangeValidator("config", "test_size", 0.1, 0, 1), false},
		{"on open bound", validation.NewRangeValidator("config", "test_size", 1, 0, 1), true},
		{"on lower bound", validation.NewRangeValidator("config", "test_size", 0, 0, 1), true},
		{"below", validation.NewRangeValidator("config", "margin", -0.5, 0, math.Inf(1)), true},
		{"unbounded above", validation.NewRangeValidator("config", "margin", 1.5, 0, math.Inf(1)), false},
		{"not a number", validation.NewRangeValidator("config", "margin", math.NaN(), 0, math.Inf(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validator.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNonZeroValidator(t *testing.T) {
	require.NoError(t, validation.ValidateNonZero("Estimate", "churn rate", 0.4))

	err := validation.ValidateNonZero("Estimate", "churn rate", 0)
	assert.ErrorIs(t, err, cerrors.ErrDivision)
	assert.Contains(t, err.Error(), "churn rate is zero")
}

func TestEmptyValidator(t *testing.T) {
	assert.NoError(t, validation.NewEmptyValidator(&MockColumnProvider{length: 1}, "Fit").Validate())
	assert.ErrorIs(t, validation.NewEmptyValidator(&MockColumnProvider{}, "Fit").Validate(), cerrors.ErrInsufficientData)
}

func TestCompoundValidator(t *testing.T) {
	mockDF := &MockColumnProvider{columns: []string{"a"}, length: 0}

	err := validation.NewCompoundValidator(
		validation.NewColumnValidator(mockDF, "op", "a"),
		validation.NewEmptyValidator(mockDF, "op"),
		validation.NewNonZeroValidator("op", "x", 0),
	).Validate()

	// first failing validator wins
	assert.ErrorIs(t, err, cerrors.ErrInsufficientData)

	calls := 0
	err = validation.NewCompoundValidator(
		validation.ValidatorFunc(func() error { calls++; return nil }),
		validation.NewNonZeroValidator("op", "x", 0),
		validation.ValidatorFunc(func() error { calls++; return nil }),
	).Validate()
	assert.ErrorIs(t, err, cerrors.ErrDivision)
	assert.Equal(t, 1, calls, "validation stops at the first failure")
}
