package gprn

import (
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jdavidrcamacho/Tests-gprn/utils"
)

// Status reports where an inference run stands.
type Status int

const (
	StatusNotStarted Status = iota
	StatusIterating
	StatusConverged
	StatusMaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusIterating:
		return "Iterating"
	case StatusConverged:
		return "Converged"
	case StatusMaxIterationsReached:
		return "MaxIterationsReached"
	}
	return "Unknown"
}

const (
	defaultMaxIterations = 100
	defaultSeed          = 1

	// convergenceTol stops the loop once the ELBO stops moving against
	// the mean of its recent history.
	convergenceTol = 1e-10
	elboWindow     = 10

	maxNuggetRetries = 10

	// minSecondMoment floors the aggregated second moments so the
	// closed-form updates never divide by zero.
	minSecondMoment = 1e-12
)

// Posterior holds fitted mean-field moments: a mean vector and a full
// covariance matrix per node and per (output, node) weight.
type Posterior struct {
	NodeMeans   [][]float64     // q×N
	NodeCovs    []*mat.SymDense // q matrices, each N×N
	WeightMeans [][][]float64   // p×q×N
	WeightCovs  [][]*mat.SymDense
}

// MeanFieldResult is the outcome of a mean-field run.
type MeanFieldResult struct {
	ELBO     float64
	LogLike  float64
	LogPrior float64
	Entropy  float64

	// History holds the ELBO value of every completed iteration.
	History []float64

	Iterations int
	Status     Status
	Posterior  Posterior
}

// MeanField performs mean-field variational inference: coordinate
// ascent over a fully factorized Gaussian posterior with closed-form
// per-factor updates (Nguyen & Bonilla 2013, eqs. 16-19).
type MeanField struct {
	// MaxIterations bounds the coordinate-ascent loop.
	MaxIterations int
	// Seed fixes the random initialization of the variational moments,
	// keeping repeated evaluations of the same parameters comparable.
	Seed uint64
	// Logger receives per-iteration diagnostics at Debug level.
	Logger *zap.Logger

	g      *GPRN
	status Status
}

// NewMeanField returns a mean-field engine over the network's data with
// default settings.
func NewMeanField(g *GPRN) *MeanField {
	return &MeanField{
		MaxIterations: defaultMaxIterations,
		Seed:          defaultSeed,
		Logger:        nopLogger(),
		g:             g,
	}
}

// Status returns the engine's state after the most recent Run.
func (mf *MeanField) Status() Status { return mf.status }

// Run fits the variational posterior for the network's current model.
// A terminal numerical failure (covariance not positive definite after
// the bounded nugget escalation) is returned as an error; exhausting
// the iteration budget is not an error, the best ELBO found so far is
// returned with StatusMaxIterationsReached.
func (mf *MeanField) Run() (*MeanFieldResult, error) {
	mf.status = StatusIterating
	res, err := mf.runModel(mf.g.model)
	if err != nil {
		return nil, err
	}
	mf.status = res.Status
	return res, nil
}

// Evaluate applies the flat parameter vector to a copy of the model and
// returns the fitted ELBO, mapping failures to -Inf. Unlike Run it does
// not touch the engine's status, so distinct parameter vectors may be
// evaluated concurrently from separate engines.
func (mf *MeanField) Evaluate(x []float64) float64 {
	model, err := mf.g.model.WithParams(x)
	if err != nil {
		return math.Inf(-1)
	}
	res, err := mf.runModel(model)
	if err != nil {
		return math.Inf(-1)
	}
	return res.ELBO
}

func (mf *MeanField) runModel(model Model) (*MeanFieldResult, error) {
	g := mf.g
	logger := mf.Logger
	if logger == nil {
		logger = nopLogger()
	}

	resid := g.residuals(model)
	errTerm := g.errorTerm(model)

	kf := make([]*mat.SymDense, g.q)
	for j, nk := range model.Nodes {
		kf[j] = kernelMatrix(nk, g.t)
	}
	kw := kernelMatrix(model.Weight, g.t)

	muF, muW, varW := mf.initMoments()

	maxIter := mf.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	res := &MeanFieldResult{Status: StatusMaxIterationsReached}
	history := make([]float64, 0, maxIter)
	for iter := 1; iter <= maxIter; iter++ {
		post, err := mf.updateFactors(logger, kf, kw, resid, errTerm, muF, muW, varW)
		if err != nil {
			return nil, err
		}
		// The refreshed moments seed the next sweep.
		for j := 0; j < g.q; j++ {
			muF[j] = post.NodeMeans[j]
		}
		for i := 0; i < g.p; i++ {
			for j := 0; j < g.q; j++ {
				muW[i][j] = post.WeightMeans[i][j]
				varW[i][j] = covDiag(post.WeightCovs[i][j])
			}
		}

		ent, err := mf.entropy(post)
		if err != nil {
			return nil, err
		}
		prior, err := mf.expectedLogPrior(kf, kw, post)
		if err != nil {
			return nil, err
		}
		like := mf.expectedLogLike(resid, errTerm, post)
		elbo := like + prior + ent
		history = append(history, elbo)

		logger.Debug("mean-field iteration",
			zap.Int("iteration", iter),
			zap.Float64("elbo", elbo),
			zap.Float64("loglike", like),
			zap.Float64("logprior", prior),
			zap.Float64("entropy", ent),
		)

		res.ELBO = elbo
		res.LogLike = like
		res.LogPrior = prior
		res.Entropy = ent
		res.Iterations = iter
		res.Posterior = *post

		crit := math.Abs(meanTail(history, elboWindow) - elbo)
		if crit < convergenceTol && crit != 0 {
			res.Status = StatusConverged
			logger.Debug("mean-field converged",
				zap.Int("iteration", iter), zap.Float64("elbo", elbo))
			break
		}
	}
	res.History = history
	return res, nil
}

// initMoments draws the initial variational moments from a unit
// uniform. The first sweep consumes the node means and the weight
// means and variances; everything else is recomputed in closed form.
func (mf *MeanField) initMoments() (muF [][]float64, muW, varW [][][]float64) {
	g := mf.g
	uni := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(mf.Seed, mf.Seed)}

	randVec := func() []float64 {
		v := make([]float64, g.n)
		for i := range v {
			v[i] = uni.Rand()
		}
		return v
	}
	muF = make([][]float64, g.q)
	for j := 0; j < g.q; j++ {
		muF[j] = randVec()
	}
	muW = make([][][]float64, g.p)
	varW = make([][][]float64, g.p)
	for i := 0; i < g.p; i++ {
		muW[i] = make([][]float64, g.q)
		varW[i] = make([][]float64, g.q)
		for j := 0; j < g.q; j++ {
			muW[i][j] = randVec()
			varW[i][j] = randVec()
		}
	}
	return muF, muW, varW
}

// updateFactors performs one coordinate-ascent sweep: the closed-form
// covariance and mean update for every node factor, then for every
// weight factor using the refreshed node moments.
func (mf *MeanField) updateFactors(logger *zap.Logger, kf []*mat.SymDense, kw *mat.SymDense, resid [][]float64, errTerm float64, muF [][]float64, muW, varW [][][]float64) (*Posterior, error) {
	g := mf.g
	p, q, n := g.p, g.q, g.n

	post := &Posterior{
		NodeMeans:   make([][]float64, q),
		NodeCovs:    make([]*mat.SymDense, q),
		WeightMeans: make([][][]float64, p),
		WeightCovs:  make([][]*mat.SymDense, p),
	}
	for i := 0; i < p; i++ {
		post.WeightMeans[i] = make([][]float64, q)
		post.WeightCovs[i] = make([]*mat.SymDense, q)
	}

	for j := 0; j < q; j++ {
		diag := make([]float64, n)
		tmp := make([]float64, n)
		for i := 0; i < p; i++ {
			for t := 0; t < n; t++ {
				diag[t] += muW[i][j][t]*muW[i][j][t] + varW[i][j][t]
				var sum float64
				for k := 0; k < q; k++ {
					if k == j {
						continue
					}
					sum += muW[i][k][t] * muF[k][t]
				}
				tmp[t] += (resid[i][t] - sum) * muW[i][j][t]
			}
		}
		cov, nugget, err := conditionalCov(kf[j], diag, errTerm)
		if err != nil {
			return nil, err
		}
		logger.Debug("node factor update", zap.Int("node", j), zap.Float64("nugget", nugget))
		post.NodeCovs[j] = cov
		post.NodeMeans[j] = applyCov(cov, tmp, errTerm)
	}

	for j := 0; j < q; j++ {
		nodeVar := covDiag(post.NodeCovs[j])
		diag := make([]float64, n)
		for t := 0; t < n; t++ {
			m := post.NodeMeans[j][t]
			diag[t] = m*m + nodeVar[t]
		}
		for i := 0; i < p; i++ {
			cov, nugget, err := conditionalCov(kw, diag, errTerm)
			if err != nil {
				return nil, err
			}
			logger.Debug("weight factor update",
				zap.Int("output", i), zap.Int("node", j), zap.Float64("nugget", nugget))
			tmp := make([]float64, n)
			for t := 0; t < n; t++ {
				var sum float64
				for k := 0; k < q; k++ {
					if k == j {
						continue
					}
					sum += post.NodeMeans[k][t] * muW[i][k][t]
				}
				tmp[t] = (resid[i][t] - sum) * post.NodeMeans[j][t]
			}
			post.WeightCovs[i][j] = cov
			post.WeightMeans[i][j] = applyCov(cov, tmp, errTerm)
		}
	}
	return post, nil
}

// conditionalCov computes the closed-form factor covariance
//
//	K - K (K + diag(errTerm / diag))^-1 K
//
// returning the nugget its factorization needed.
func conditionalCov(k *mat.SymDense, diag []float64, errTerm float64) (*mat.SymDense, float64, error) {
	n := len(diag)
	a := mat.NewSymDense(n, nil)
	a.CopySym(k)
	for t := 0; t < n; t++ {
		d := diag[t]
		if d < minSecondMoment {
			d = minSecondMoment
		}
		a.SetSym(t, t, a.At(t, t)+errTerm/d)
	}
	chol, nugget, err := utils.StableCholesky(a, maxNuggetRetries)
	if err != nil {
		return nil, nugget, err
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, k); err != nil {
		return nil, nugget, err
	}
	var kx mat.Dense
	kx.Mul(k, &x)
	// K (K+D)^-1 K is symmetric in exact arithmetic; average out the
	// floating-point asymmetry when storing.
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, k.At(i, j)-0.5*(kx.At(i, j)+kx.At(j, i)))
		}
	}
	return cov, nugget, nil
}

// applyCov returns cov·v / errTerm, the closed-form factor mean.
func applyCov(cov *mat.SymDense, v []float64, errTerm float64) []float64 {
	n := len(v)
	out := mat.NewVecDense(n, nil)
	out.MulVec(cov, mat.NewVecDense(n, v))
	res := make([]float64, n)
	for i := range res {
		res[i] = out.AtVec(i) / errTerm
	}
	return res
}

// entropy sums half the log-determinant of every factor covariance.
func (mf *MeanField) entropy(post *Posterior) (float64, error) {
	var ent float64
	for _, cov := range post.NodeCovs {
		chol, _, err := utils.StableCholesky(cov, maxNuggetRetries)
		if err != nil {
			return 0, err
		}
		ent += 0.5 * chol.LogDet()
	}
	for i := range post.WeightCovs {
		for _, cov := range post.WeightCovs[i] {
			chol, _, err := utils.StableCholesky(cov, maxNuggetRetries)
			if err != nil {
				return 0, err
			}
			ent += 0.5 * chol.LogDet()
		}
	}
	return ent, nil
}

// expectedLogPrior computes, for every factor,
//
//	-1/2 log|K| - 1/2 mu' K^-1 mu - 1/2 tr(Sigma K^-1)
//
// summed over nodes and weights (Nguyen & Bonilla 2013, eq. 15).
func (mf *MeanField) expectedLogPrior(kf []*mat.SymDense, kw *mat.SymDense, post *Posterior) (float64, error) {
	g := mf.g
	cholW, _, err := utils.StableCholesky(kw, maxNuggetRetries)
	if err != nil {
		return 0, err
	}
	logKw := -0.5 * cholW.LogDet()

	var total float64
	for j := 0; j < g.q; j++ {
		cholF, _, err := utils.StableCholesky(kf[j], maxNuggetRetries)
		if err != nil {
			return 0, err
		}
		quad, tr, err := quadAndTrace(cholF, post.NodeMeans[j], post.NodeCovs[j])
		if err != nil {
			return 0, err
		}
		total += -0.5*cholF.LogDet() - 0.5*quad - 0.5*tr
		for i := 0; i < g.p; i++ {
			quad, tr, err := quadAndTrace(cholW, post.WeightMeans[i][j], post.WeightCovs[i][j])
			if err != nil {
				return 0, err
			}
			total += logKw - 0.5*quad - 0.5*tr
		}
	}
	return total, nil
}

// quadAndTrace returns mu' K^-1 mu and tr(Sigma K^-1) for a factor,
// reusing the kernel factorization.
func quadAndTrace(chol *mat.Cholesky, mu []float64, cov *mat.SymDense) (quad, tr float64, err error) {
	n := len(mu)
	muVec := mat.NewVecDense(n, mu)
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, muVec); err != nil {
		return 0, 0, err
	}
	quad = mat.Dot(muVec, &alpha)
	var x mat.Dense
	if err := chol.SolveTo(&x, cov); err != nil {
		return 0, 0, err
	}
	return quad, mat.Trace(&x), nil
}

// expectedLogLike scores the squared residuals of the data against the
// fitted mean, scaled by the aggregate noise term (Nguyen & Bonilla
// 2013, eq. 14).
func (mf *MeanField) expectedLogLike(resid [][]float64, errTerm float64, post *Posterior) float64 {
	g := mf.g
	var ss float64
	for i := 0; i < g.p; i++ {
		for t := 0; t < g.n; t++ {
			var yhat float64
			for j := 0; j < g.q; j++ {
				yhat += post.WeightMeans[i][j][t] * post.NodeMeans[j][t]
			}
			d := resid[i][t] - yhat
			ss += d * d
		}
	}
	return -0.5 * ss / errTerm
}

func covDiag(s *mat.SymDense) []float64 {
	n := s.SymmetricDim()
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = s.At(i, i)
	}
	return d
}

// meanTail averages the last w entries of history.
func meanTail(history []float64, w int) float64 {
	if len(history) < w {
		w = len(history)
	}
	var sum float64
	for _, v := range history[len(history)-w:] {
		sum += v
	}
	return sum / float64(w)
}
