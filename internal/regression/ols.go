package regression

import (
	"fmt"
	"math"

	"github.com/paveg/cltv/internal/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Model is a fitted linear model y = X·Weights + Intercept
type Model struct {
	Weights   []float64
	Intercept float64
}

// FitOLS fits an ordinary least-squares model with an intercept. X and y
// are centered and the system is solved through a thin SVD, so collinear
// or constant features get the minimum-norm solution instead of failing.
func FitOLS(X mat.Matrix, y []float64) (*Model, error) {
	const op = "FitOLS"

	r, c := X.Dims()
	if r == 0 {
		return nil, errors.NewInsufficientDataError(op, "no training rows")
	}
	if len(y) != r {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("%d targets for %d rows", len(y), r))
	}

	xMean := make([]float64, c)
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, X)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(r, c, nil)
	yc := mat.NewDense(r, 1, nil)
	for i := range r {
		for j := range c {
			xc.Set(i, j, X.At(i, j)-xMean[j])
		}
		yc.Set(i, 0, y[i]-yMean)
	}

	weights := make([]float64, c)

	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDThin) {
		return nil, errors.NewInternalError(op, fmt.Errorf("SVD factorization did not converge"))
	}
	// singular values below this are treated as zero, as LAPACK's gelsd does
	rcond := math.Nextafter(1, 2) - 1
	if rank := svd.Rank(rcond * float64(max(r, c))); rank > 0 {
		var w mat.Dense
		svd.SolveTo(&w, yc, rank)
		mat.Col(weights, 0, &w)
	}

	return &Model{
		Weights:   weights,
		Intercept: yMean - floats.Dot(xMean, weights),
	}, nil
}

// Predict returns the model output for every row of X
func (m *Model) Predict(X mat.Matrix) []float64 {
	r, c := X.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := range r {
		mat.Row(row, i, X)
		out[i] = floats.Dot(row, m.Weights) + m.Intercept
	}
	return out
}

// Score returns the coefficient of determination of the predictions for X
// against y: 1 - SSres/SStot.
func (m *Model) Score(X mat.Matrix, y []float64) (float64, error) {
	const op = "Score"

	r, c := X.Dims()
	if len(y) != r {
		return 0, errors.NewInvalidInputError(op, fmt.Sprintf("%d targets for %d rows", len(y), r))
	}
	if c != len(m.Weights) {
		return 0, errors.NewInvalidInputError(op, fmt.Sprintf("%d features for a model of %d", c, len(m.Weights)))
	}
	if r < 2 {
		return 0, errors.NewInsufficientDataError(op, "R² needs at least two test rows")
	}

	mean := stat.Mean(y, nil)
	var ssTot float64
	for _, v := range y {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot == 0 {
		return 0, errors.NewDivisionError(op, "total sum of squares")
	}

	return stat.RSquaredFrom(m.Predict(X), y, nil), nil
}
