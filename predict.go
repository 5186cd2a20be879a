package gprn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/means"
	"github.com/jdavidrcamacho/Tests-gprn/utils"
)

// Predict computes the predictive mean of every output at the query
// times from a fitted mean-field posterior. The returned matrix is
// p×M, one row per output, with each output's mean function added back.
func (g *GPRN) Predict(post *Posterior, tstar []float64) (*mat.Dense, error) {
	mean, _, err := g.predict(post, tstar, false)
	return mean, err
}

// PredictWithStd computes the predictive mean and standard deviation of
// every output at the query times. The variance combines the node and
// weight posterior uncertainty through the product-of-Gaussians
// identity plus the output's aggregate observation noise.
func (g *GPRN) PredictWithStd(post *Posterior, tstar []float64) (mean, std *mat.Dense, err error) {
	return g.predict(post, tstar, true)
}

func (g *GPRN) predict(post *Posterior, tstar []float64, wantStd bool) (*mat.Dense, *mat.Dense, error) {
	model := g.model
	m := len(tstar)

	// Conditional node moments at the query times.
	fstar := make([][]float64, g.q)
	vfstar := make([][]float64, g.q)
	for j, nk := range model.Nodes {
		mu, v, err := conditionalMoments(nk, g.t, tstar,
			post.NodeMeans[j], post.NodeCovs[j], wantStd)
		if err != nil {
			return nil, nil, err
		}
		fstar[j] = mu
		vfstar[j] = v
	}

	// The shared weight kernel is factorized once for all q·p slots.
	kw := kernelMatrix(model.Weight, g.t)
	cholW, _, err := utils.StableCholesky(kw, maxNuggetRetries)
	if err != nil {
		return nil, nil, err
	}
	ksW := crossKernelMatrix(model.Weight, tstar, g.t)

	mean := mat.NewDense(g.p, m, nil)
	var std *mat.Dense
	if wantStd {
		std = mat.NewDense(g.p, m, nil)
	}
	mbuf := make([]float64, m)
	for i := 0; i < g.p; i++ {
		means.Eval(model.Means[i], tstar, mbuf)
		noise := g.noiseVariance(model, i)
		for j := 0; j < g.q; j++ {
			mu, v, err := conditionalMomentsFactored(model.Weight, cholW, ksW, tstar,
				post.WeightMeans[i][j], post.WeightCovs[i][j], wantStd)
			if err != nil {
				return nil, nil, err
			}
			for s := 0; s < m; s++ {
				mean.Set(i, s, mean.At(i, s)+mu[s]*fstar[j][s])
				if wantStd {
					std.Set(i, s, std.At(i, s)+
						mu[s]*mu[s]*vfstar[j][s]+
						fstar[j][s]*fstar[j][s]*v[s]+
						vfstar[j][s]*v[s])
				}
			}
		}
		for s := 0; s < m; s++ {
			mean.Set(i, s, mean.At(i, s)+mbuf[s])
			if wantStd {
				std.Set(i, s, math.Sqrt(std.At(i, s)+noise))
			}
		}
	}
	return mean, std, nil
}

// conditionalMoments computes the GP conditional mean of a latent
// function at the query times,
//
//	E[f*] = K_{*,train} K_train^-1 mu
//
// and, when asked, its variance with the variational posterior
// covariance propagated through the same solve,
//
//	Var[f*] = k(s,s) - k* K^-1 k*' + k* K^-1 Sigma K^-1 k*'
//
// clamped at zero against floating-point cancellation.
func conditionalMoments(k kernel.Kernel, t, tstar []float64, mu []float64, cov *mat.SymDense, wantVar bool) ([]float64, []float64, error) {
	kt := kernelMatrix(k, t)
	chol, _, err := utils.StableCholesky(kt, maxNuggetRetries)
	if err != nil {
		return nil, nil, err
	}
	ks := crossKernelMatrix(k, tstar, t)
	return conditionalMomentsFactored(k, chol, ks, tstar, mu, cov, wantVar)
}

// conditionalMomentsFactored is conditionalMoments with the training
// factorization and cross matrix precomputed, so the shared weight
// kernel is only factorized once.
func conditionalMomentsFactored(k kernel.Kernel, chol *mat.Cholesky, ks *mat.Dense, tstar []float64, mu []float64, cov *mat.SymDense, wantVar bool) ([]float64, []float64, error) {
	n := len(mu)
	m := len(tstar)

	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, mat.NewVecDense(n, mu)); err != nil {
		return nil, nil, err
	}
	out := mat.NewVecDense(m, nil)
	out.MulVec(ks, &alpha)
	mean := make([]float64, m)
	copy(mean, out.RawVector().Data)
	if !wantVar {
		return mean, nil, nil
	}

	// X = K^-1 k*', one column per query point.
	var x mat.Dense
	if err := chol.SolveTo(&x, ks.T()); err != nil {
		return nil, nil, err
	}
	var sx mat.Dense
	sx.Mul(cov, &x)
	variance := make([]float64, m)
	for s := 0; s < m; s++ {
		v := kernelSelfVariance(k, tstar[s])
		for i := 0; i < n; i++ {
			v -= ks.At(s, i) * x.At(i, s)
			v += x.At(i, s) * sx.At(i, s)
		}
		if v < 0 {
			v = 0
		}
		variance[s] = v
	}
	return mean, variance, nil
}
