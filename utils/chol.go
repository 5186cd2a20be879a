// Package utils provides the numerical helpers shared by the inference
// engines: nugget-regularized Cholesky factorization, block-diagonal
// assembly and a degenerate-tolerant multivariate normal sampler.
package utils

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned by StableCholesky when the matrix
// remains numerically non-positive-definite after the maximum nugget
// escalation. It marks a terminal numerical failure, as opposed to a
// recoverable or configuration error.
var ErrNotPositiveDefinite = errors.New("utils: matrix not positive definite, even with nugget")

// relNugget is the relative scale of the baseline nugget.
const relNugget = 1e-5

// StableCholesky factorizes a, adding an escalating diagonal nugget if
// the plain factorization fails. The baseline nugget is the mean
// absolute diagonal value times 1e-5; each retry multiplies it by 10,
// up to maxRetries attempts. It returns the factorization, the nugget
// (the baseline value when the direct factorization succeeded, even
// though nothing was added), and ErrNotPositiveDefinite if the matrix
// never factorized.
func StableCholesky(a mat.Symmetric, maxRetries int) (*mat.Cholesky, float64, error) {
	n := a.SymmetricDim()
	var diagSum float64
	for i := 0; i < n; i++ {
		diagSum += math.Abs(a.At(i, i))
	}
	nugget := diagSum / float64(n) * relNugget

	var chol mat.Cholesky
	if chol.Factorize(a) {
		return &chol, nugget, nil
	}
	jittered := mat.NewSymDense(n, nil)
	for try := 0; try < maxRetries; try++ {
		jittered.CopySym(a)
		for i := 0; i < n; i++ {
			jittered.SetSym(i, i, a.At(i, i)+nugget)
		}
		if chol.Factorize(jittered) {
			return &chol, nugget, nil
		}
		nugget *= 10
	}
	return nil, nugget, ErrNotPositiveDefinite
}
