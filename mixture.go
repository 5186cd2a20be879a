package gprn

import (
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/utils"
)

const (
	defaultComponents     = 2
	defaultInnerIter      = 10
	barrierPow            = 4
	badLatentBoundsLength = "gprn: latent bounds length mismatch"
)

// MixtureResult is the outcome of a mixture run.
type MixtureResult struct {
	ELBO     float64
	LogJoint float64
	Entropy  float64

	// History holds the ELBO value of every completed outer iteration.
	History []float64

	Iterations int
	Status     Status

	// Means holds the fitted latent mean of each component, one flat
	// vector per component in the network's Layout order.
	Means [][]float64
	// Sigmas holds the per-component isotropic standard deviations,
	// fixed at initialization.
	Sigmas []float64
}

// Mixture approximates the posterior over the full latent vector with a
// mixture of k isotropic Gaussians (Nguyen & Bonilla 2013, eq. 33 and
// the mixture entropy lower bound). Only the component means are
// optimized; the isotropic variances stay at their initial sample
// estimates. The inner optimizer is derivative-free and runs for a
// small fixed number of steps per outer iteration.
type Mixture struct {
	// Components is the number of mixture components, k.
	Components int
	// MaxIterations bounds the outer loop.
	MaxIterations int
	// InnerIterations bounds the derivative-free optimizer within one
	// outer iteration.
	InnerIterations int
	// MinimizeNegative selects the objective handed to the inner
	// minimizer. True, the default, minimizes the negated ELBO so the
	// optimizer climbs the evidence bound. False hands the minimizer
	// the raw ELBO, reproducing the behavior of driving the bound down.
	MinimizeNegative bool
	// LatentBounds optionally box-constrains each latent dimension of
	// every component, enforced by a quartic barrier penalty on the
	// inner objective. Nil means unconstrained; otherwise the length
	// must equal Layout().Dim().
	LatentBounds []kernel.Bound
	// Seed fixes the random component initialization.
	Seed uint64
	// Logger receives per-iteration diagnostics at Debug level.
	Logger *zap.Logger

	g      *GPRN
	status Status
}

// NewMixture returns a mixture engine over the network's data with k
// components and default settings. Non-positive k falls back to 2.
func NewMixture(g *GPRN, k int) *Mixture {
	if k <= 0 {
		k = defaultComponents
	}
	return &Mixture{
		Components:       k,
		MaxIterations:    defaultMaxIterations,
		InnerIterations:  defaultInnerIter,
		MinimizeNegative: true,
		Seed:             defaultSeed,
		Logger:           nopLogger(),
		g:                g,
	}
}

// Status returns the engine's state after the most recent Run.
func (mx *Mixture) Status() Status { return mx.status }

// mixtureState carries the per-run precomputed quantities: kernel
// inverses, log-determinants and the aggregate noise scalars.
type mixtureState struct {
	resid   [][]float64
	kfInv   []*mat.SymDense
	kwInv   *mat.SymDense
	logKf   []float64 // log |Kf_j|
	logKw   float64
	trKfInv []float64
	trKwInv float64
	sigmaY  float64 // sum_i noiseVariance_i
	logSigY float64 // sum_i log noiseVariance_i
}

func (mx *Mixture) precompute(model Model) (*mixtureState, error) {
	g := mx.g
	st := &mixtureState{
		resid:   g.residuals(model),
		kfInv:   make([]*mat.SymDense, g.q),
		logKf:   make([]float64, g.q),
		trKfInv: make([]float64, g.q),
	}
	for j, nk := range model.Nodes {
		kf := kernelMatrix(nk, g.t)
		chol, _, err := utils.StableCholesky(kf, maxNuggetRetries)
		if err != nil {
			return nil, err
		}
		inv := mat.NewSymDense(g.n, nil)
		if err := chol.InverseTo(inv); err != nil {
			return nil, err
		}
		st.kfInv[j] = inv
		st.logKf[j] = chol.LogDet()
		st.trKfInv[j] = mat.Trace(inv)
	}
	kw := kernelMatrix(model.Weight, g.t)
	chol, _, err := utils.StableCholesky(kw, maxNuggetRetries)
	if err != nil {
		return nil, err
	}
	inv := mat.NewSymDense(g.n, nil)
	if err := chol.InverseTo(inv); err != nil {
		return nil, err
	}
	st.kwInv = inv
	st.logKw = chol.LogDet()
	st.trKwInv = mat.Trace(inv)

	for i := 0; i < g.p; i++ {
		v := g.noiseVariance(model, i)
		st.sigmaY += v
		st.logSigY += math.Log(v)
	}
	// Fully noise-free data would zero the aggregate noise and blow up
	// the scaled terms, so it is floored like the mean-field error term.
	if st.sigmaY == 0 {
		st.sigmaY = 1
		st.logSigY = 0
	}
	return st, nil
}

// Run fits the mixture posterior for the network's current model.
func (mx *Mixture) Run() (*MixtureResult, error) {
	g := mx.g
	logger := mx.Logger
	if logger == nil {
		logger = nopLogger()
	}
	if mx.LatentBounds != nil && len(mx.LatentBounds) != g.layout.Dim() {
		panic(badLatentBoundsLength)
	}
	mx.status = StatusIterating

	st, err := mx.precompute(g.model)
	if err != nil {
		return nil, err
	}

	k := mx.Components
	dim := g.layout.Dim()
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(mx.Seed, mx.Seed)}
	mu := make([][]float64, k)
	sigma := make([]float64, k)
	for ki := 0; ki < k; ki++ {
		mu[ki] = make([]float64, dim)
		for d := range mu[ki] {
			mu[ki][d] = normal.Rand()
		}
		sigma[ki] = math.Sqrt(stat.Variance(mu[ki], nil))
	}

	obj := func(x []float64) float64 {
		cand := unstack(x, k, dim)
		val := mx.expectedLogJoint(st, cand, sigma) + mx.entropy(cand, sigma)
		if mx.MinimizeNegative {
			val = -val
		}
		if mx.LatentBounds != nil {
			for ki := 0; ki < k; ki++ {
				val += barrierPenalty(cand[ki], mx.LatentBounds)
			}
		}
		return val
	}
	problem := optimize.Problem{Func: obj}
	method := &optimize.NelderMead{}

	maxIter := mx.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	innerIter := mx.InnerIterations
	if innerIter <= 0 {
		innerIter = defaultInnerIter
	}

	x := stack(mu)
	res := &MixtureResult{Status: StatusMaxIterationsReached, Sigmas: sigma}
	history := make([]float64, 0, maxIter)
	for iter := 1; iter <= maxIter; iter++ {
		settings := &optimize.Settings{MajorIterations: innerIter}
		opt, err := optimize.Minimize(problem, x, settings, method)
		// The inner budget is deliberately tiny, so the optimizer's own
		// convergence verdict is irrelevant; its last point is kept.
		if opt == nil {
			return nil, err
		}
		x = opt.X
		mu = unstack(x, k, dim)

		joint := mx.expectedLogJoint(st, mu, sigma)
		ent := mx.entropy(mu, sigma)
		elbo := joint + ent
		history = append(history, elbo)

		logger.Debug("mixture iteration",
			zap.Int("iteration", iter),
			zap.Float64("elbo", elbo),
			zap.Float64("logjoint", joint),
			zap.Float64("entropy", ent),
		)

		res.ELBO = elbo
		res.LogJoint = joint
		res.Entropy = ent
		res.Iterations = iter
		res.Means = mu

		crit := math.Abs(meanTail(history, elboWindow) - elbo)
		if crit < convergenceTol && crit != 0 {
			res.Status = StatusConverged
			logger.Debug("mixture converged",
				zap.Int("iteration", iter), zap.Float64("elbo", elbo))
			break
		}
	}
	res.History = history
	mx.status = res.Status
	return res, nil
}

// expectedLogJoint evaluates the mixture expectation of the log joint
// (Nguyen & Bonilla 2013, eq. 33): per component, the node and weight
// prior terms with their quadratic and trace penalties, the data-fit
// term scaled by the aggregate noise, and the Gaussian normalizer. All
// terms are averaged over the k components.
func (mx *Mixture) expectedLogJoint(st *mixtureState, mu [][]float64, sigma []float64) float64 {
	g := mx.g
	k := len(mu)
	p, q, n := g.p, g.q, g.n

	var nodeTerm, weightTerm, dataTerm, normTerm float64
	for ki := 0; ki < k; ki++ {
		nodes, weights := g.layout.Split(mu[ki])
		s2 := sigma[ki] * sigma[ki]
		iso := float64(p) * s2 / st.sigmaY

		for j := 0; j < q; j++ {
			nodeTerm += st.logKf[j] +
				quadForm(st.kfInv[j], nodes[j]) + iso*floats.Dot(nodes[j], nodes[j]) +
				s2*st.trKfInv[j]
		}
		for i := 0; i < p; i++ {
			for j := 0; j < q; j++ {
				w := weights[i][j]
				weightTerm += st.logKw +
					quadForm(st.kwInv, w) + iso*floats.Dot(w, w) +
					s2*st.trKwInv
			}
		}
		for i := 0; i < p; i++ {
			for t := 0; t < n; t++ {
				var yhat float64
				for j := 0; j < q; j++ {
					yhat += weights[i][j][t] * nodes[j][t]
				}
				d := st.resid[i][t] - yhat
				dataTerm += d * d
			}
		}
		normTerm += s2 * s2 * float64(q) / st.sigmaY
	}
	fk := float64(k)
	return -0.5*nodeTerm/fk -
		0.5*weightTerm/fk -
		0.5*dataTerm/(fk*st.sigmaY) -
		0.5*normTerm/fk -
		0.5*float64(g.n)*st.logSigY
}

// entropy evaluates the mixture entropy lower bound through the
// pairwise expected likelihood kernel: for isotropic components the
// kernel between components a and b is the Gaussian density of
// mu_a - mu_b under variance (sigma_a^2 + sigma_b^2) I, combined with a
// log-sum-exp over components and uniform mixing weights 1/k.
func (mx *Mixture) entropy(mu [][]float64, sigma []float64) float64 {
	k := len(mu)
	dim := float64(len(mu[0]))
	logK := math.Log(float64(k))

	logELK := make([]float64, k)
	var ent float64
	for a := 0; a < k; a++ {
		for b := 0; b < k; b++ {
			v := sigma[a]*sigma[a] + sigma[b]*sigma[b]
			var ss float64
			for d := range mu[a] {
				diff := mu[a][d] - mu[b][d]
				ss += diff * diff
			}
			logELK[b] = -0.5*dim*math.Log(2*math.Pi*v) - 0.5*ss/v
		}
		ent -= (floats.LogSumExp(logELK) - logK) / float64(k)
	}
	return ent
}

// quadForm returns v' A v.
func quadForm(a *mat.SymDense, v []float64) float64 {
	n := len(v)
	vec := mat.NewVecDense(n, v)
	out := mat.NewVecDense(n, nil)
	out.MulVec(a, vec)
	return mat.Dot(vec, out)
}

// barrierPenalty adds a quartic penalty for every latent dimension
// outside its bound, keeping the objective finite and smooth enough for
// a derivative-free simplex method.
func barrierPenalty(x []float64, bounds []kernel.Bound) float64 {
	var pen float64
	for d, b := range bounds {
		if x[d] < b.Min {
			pen += math.Pow(b.Min-x[d], barrierPow)
		} else if x[d] > b.Max {
			pen += math.Pow(x[d]-b.Max, barrierPow)
		}
	}
	return pen
}

func stack(mu [][]float64) []float64 {
	out := make([]float64, 0, len(mu)*len(mu[0]))
	for _, m := range mu {
		out = append(out, m...)
	}
	return out
}

func unstack(x []float64, k, dim int) [][]float64 {
	mu := make([][]float64, k)
	for ki := 0; ki < k; ki++ {
		mu[ki] = append([]float64(nil), x[ki*dim:(ki+1)*dim]...)
	}
	return mu
}
