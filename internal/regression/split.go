// Package regression fits ordinary least-squares models and scores them
// on a held-out partition.
package regression

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/paveg/cltv/internal/errors"
	"github.com/paveg/cltv/internal/validation"
	"gonum.org/v1/gonum/mat"
)

// Split holds the row indices of the train and test partitions
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles n row indices with a PCG source seeded by seed
// and holds out ceil(testSize*n) of them for testing. The same n, testSize
// and seed always produce the same split.
func TrainTestSplit(n int, testSize float64, seed uint64) (Split, error) {
	const op = "TrainTestSplit"

	if err := validation.NewRangeValidator(op, "test size", testSize, 0, 1).Validate(); err != nil {
		return Split{}, err
	}
	if n < 0 {
		return Split{}, errors.NewInvalidInputError(op, fmt.Sprintf("negative row count %d", n))
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return Split{}, errors.NewInsufficientDataError(op,
			fmt.Sprintf("%d rows with test size %g leave an empty partition", n, testSize))
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return Split{
		Train: perm[nTest:],
		Test:  perm[:nTest],
	}, nil
}

// TakeRows copies the given rows of X into a new matrix
func TakeRows(X mat.Matrix, rows []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, row := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(row, j))
		}
	}
	return out
}

// TakeValues copies the given elements of y
func TakeValues(y []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = y[row]
	}
	return out
}
