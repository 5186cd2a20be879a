package utils

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const badMeanLength = "utils: mean length mismatch"

// SampleNormal draws one sample from N(mu, cov). A nil mu is treated as
// zero. The covariance may be singular or slightly indefinite: the
// sampler works through a symmetric eigendecomposition and clamps
// negative eigenvalues to zero, so degenerate covariances are tolerated
// rather than rejected.
func SampleNormal(mu []float64, cov mat.Symmetric, src rand.Source) ([]float64, error) {
	n := cov.SymmetricDim()
	if mu != nil && len(mu) != n {
		panic(badMeanLength)
	}
	sd := mat.NewSymDense(n, nil)
	sd.CopySym(cov)
	var es mat.EigenSym
	if !es.Factorize(sd, true) {
		return nil, errors.New("utils: eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	z := make([]float64, n)
	for i, v := range vals {
		if v > 0 {
			z[i] = math.Sqrt(v) * normal.Rand()
		}
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(&vecs, mat.NewVecDense(n, z))
	sample := make([]float64, n)
	copy(sample, out.RawVector().Data)
	if mu != nil {
		floats.Add(sample, mu)
	}
	return sample, nil
}
