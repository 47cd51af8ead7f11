package regression_test

import (
	"slices"
	"testing"

	cerrors "github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/regression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTrainTestSplit(t *testing.T) {
	t.Run("sizes follow the test fraction rounded up", func(t *testing.T) {
		split, err := regression.TrainTestSplit(25, 0.1, 42)
		require.NoError(t, err)
		assert.Len(t, split.Test, 3)
		assert.Len(t, split.Train, 22)

		all := append(append([]int{}, split.Train...), split.Test...)
		slices.Sort(all)
		for i, idx := range all {
			assert.Equal(t, i, idx, "every row lands in exactly one partition")
		}
	})

	t.Run("same seed gives the same split", func(t *testing.T) {
		a, err := regression.TrainTestSplit(100, 0.1, 42)
		require.NoError(t, err)
		b, err := regression.TrainTestSplit(100, 0.1, 42)
		require.NoError(t, err)
		c, err := regression.TrainTestSplit(100, 0.1, 7)
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.NotEqual(t, a.Test, c.Test)
	})

	t.Run("invalid test size", func(t *testing.T) {
		for _, size := range []float64{0, 1, -0.5, 1.5} {
			_, err := regression.TrainTestSplit(10, size, 42)
			assert.ErrorIs(t, err, cerrors.ErrInvalidInput, "size %g", size)
		}
	})

	t.Run("empty partitions", func(t *testing.T) {
		_, err := regression.TrainTestSplit(0, 0.1, 42)
		assert.ErrorIs(t, err, cerrors.ErrInsufficientData)

		_, err = regression.TrainTestSplit(1, 0.1, 42)
		assert.ErrorIs(t, err, cerrors.ErrInsufficientData)
	})
}

func TestFitOLS_ExactRelationship(t *testing.T) {
	// y = 3 + 2*x0 - 0.5*x1
	X := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 1,
		3, 5,
		4, 2,
		5, 8,
		6, 3,
	})
	y := make([]float64, 6)
	for i := range y {
		y[i] = 3 + 2*X.At(i, 0) - 0.5*X.At(i, 1)
	}

	model, err := regression.FitOLS(X, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, -0.5}, model.Weights, 1e-9)
	assert.InDelta(t, 3.0, model.Intercept, 1e-9)

	assert.InDeltaSlice(t, y, model.Predict(X), 1e-9)

	score, err := model.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestFitOLS_ConstantFeature(t *testing.T) {
	// a month nobody bought in is a constant column
	X := mat.NewDense(4, 2, []float64{
		1, 0,
		2, 0,
		3, 0,
		4, 0,
	})
	y := []float64{3, 5, 7, 9}

	model, err := regression.FitOLS(X, y)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 0}, model.Weights, 1e-9)
	assert.InDelta(t, 1.0, model.Intercept, 1e-9)
}

func TestFitOLS_Errors(t *testing.T) {
	_, err := regression.FitOLS(mat.NewDense(2, 1, []float64{1, 2}), []float64{1})
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)

	model, err := regression.FitOLS(mat.NewDense(1, 1, []float64{5}), []float64{10})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, model.Intercept, 1e-12, "a single row fits its mean")
}

func TestScore_Errors(t *testing.T) {
	model := &regression.Model{Weights: []float64{1}, Intercept: 0}

	_, err := model.Score(mat.NewDense(1, 1, []float64{1}), []float64{1})
	assert.ErrorIs(t, err, cerrors.ErrInsufficientData)

	_, err = model.Score(mat.NewDense(2, 1, []float64{1, 2}), []float64{4, 4})
	assert.ErrorIs(t, err, cerrors.ErrDivision)

	_, err = model.Score(mat.NewDense(2, 2, nil), []float64{1, 2})
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
}

func TestScore_Imperfect(t *testing.T) {
	model := &regression.Model{Weights: []float64{1}, Intercept: 0}
	X := mat.NewDense(3, 1, []float64{1, 2, 3})

	score, err := model.Score(X, []float64{1, 2, 4})
	require.NoError(t, err)
	// SSres = 1, SStot = 14/3
	assert.InDelta(t, 1-3.0/14, score, 1e-12)
}

func TestTakeRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	sub := regression.TakeRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, sub.RawMatrix().Data)
	assert.Equal(t, []float64{30, 10}, regression.TakeValues([]float64{10, 20, 30}, []int{2, 0}))
}
