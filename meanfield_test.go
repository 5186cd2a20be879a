package gprn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/means"
)

// sinusoidNetwork builds the single-node single-output benchmark: fifty
// evenly spaced times, y = sin(2*pi*t/10) plus small Gaussian noise.
func sinusoidNetwork(t *testing.T) (*GPRN, []float64) {
	t.Helper()
	const n = 50
	ts := make([]float64, n)
	truth := make([]float64, n)
	y := make([]float64, n)
	yerr := make([]float64, n)
	noise := distuv.Normal{Mu: 0, Sigma: 0.05, Src: rand.NewPCG(3, 3)}
	for i := range ts {
		ts[i] = float64(i)
		truth[i] = math.Sin(2 * math.Pi * ts[i] / 10)
		y[i] = truth[i] + noise.Rand()
		yerr[i] = 0.05
	}
	model := Model{
		Nodes:   []kernel.Kernel{kernel.Periodic{Amplitude: 1, Ell: 3, Period: 10, Noise: 0}},
		Weight:  kernel.Constant{Amplitude: 1},
		Means:   []means.Mean{nil},
		Jitters: []float64{0},
	}
	g, err := New(model, ts, y, yerr)
	require.NoError(t, err)
	return g, truth
}

func TestMeanFieldSinusoidFit(t *testing.T) {
	g, truth := sinusoidNetwork(t)

	mf := NewMeanField(g)
	mf.MaxIterations = 50
	assert.Equal(t, StatusNotStarted, mf.Status())

	res, err := mf.Run()
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, math.IsNaN(res.ELBO))
	assert.False(t, math.IsInf(res.ELBO, 0))
	assert.Equal(t, res.ELBO, res.LogLike+res.LogPrior+res.Entropy)
	assert.Len(t, res.History, res.Iterations)
	assert.Contains(t, []Status{StatusConverged, StatusMaxIterationsReached}, res.Status)
	assert.Equal(t, res.Status, mf.Status())

	// The fitted network output must recover the sinusoid.
	var ss float64
	for i := range truth {
		yhat := res.Posterior.WeightMeans[0][0][i] * res.Posterior.NodeMeans[0][i]
		d := yhat - truth[i]
		ss += d * d
	}
	rmse := math.Sqrt(ss / float64(len(truth)))
	assert.Less(t, rmse, 0.3)
}

func TestMeanFieldELBOImproves(t *testing.T) {
	g, _ := sinusoidNetwork(t)
	mf := NewMeanField(g)
	mf.MaxIterations = 50
	res, err := mf.Run()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.History), 2)
	assert.Greater(t, res.History[len(res.History)-1], res.History[0])
}

func TestMeanFieldDeterministicWithSeed(t *testing.T) {
	g, _ := sinusoidNetwork(t)

	a := NewMeanField(g)
	a.MaxIterations = 5
	resA, err := a.Run()
	require.NoError(t, err)

	b := NewMeanField(g)
	b.MaxIterations = 5
	resB, err := b.Run()
	require.NoError(t, err)

	assert.Equal(t, resA.ELBO, resB.ELBO)
	assert.Equal(t, resA.History, resB.History)

	c := NewMeanField(g)
	c.MaxIterations = 5
	c.Seed = 99
	resC, err := c.Run()
	require.NoError(t, err)
	assert.NotEqual(t, resA.ELBO, resC.ELBO)
}

func TestMeanFieldPosteriorShapes(t *testing.T) {
	g := twoNodeNetwork(t)
	mf := NewMeanField(g)
	mf.MaxIterations = 3
	res, err := mf.Run()
	require.NoError(t, err)

	post := res.Posterior
	require.Len(t, post.NodeMeans, 2)
	require.Len(t, post.NodeCovs, 2)
	require.Len(t, post.WeightMeans, 1)
	require.Len(t, post.WeightCovs, 1)
	for j := range post.NodeMeans {
		assert.Len(t, post.NodeMeans[j], 5)
		assert.Equal(t, 5, post.NodeCovs[j].SymmetricDim())
	}
	for j := range post.WeightMeans[0] {
		assert.Len(t, post.WeightMeans[0][j], 5)
		assert.Equal(t, 5, post.WeightCovs[0][j].SymmetricDim())
	}
}

func TestMeanFieldEvaluateMatchesRun(t *testing.T) {
	g, _ := sinusoidNetwork(t)
	mf := NewMeanField(g)
	mf.MaxIterations = 10

	x := g.Model().Params(nil)
	v := mf.Evaluate(x)
	res, err := mf.Run()
	require.NoError(t, err)
	assert.Equal(t, res.ELBO, v)

	// Bad parameter vectors map to -Inf rather than failing.
	assert.True(t, math.IsInf(mf.Evaluate(x[:1]), -1))
}

func TestMeanTail(t *testing.T) {
	h := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, meanTail(h, 10))
	assert.Equal(t, 3.5, meanTail(h, 2))
}
