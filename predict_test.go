package gprn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/means"
)

// predictNetwork builds a single-node network with a smooth weight
// kernel and a hand-made posterior whose means are smooth over the
// training times, so the GP conditional at the training times must
// reproduce them.
func predictNetwork(t *testing.T) (*GPRN, *Posterior) {
	t.Helper()
	ts := testTimes(5)
	y := []float64{1.2, 1.7, 1.3, 0.8, 1.0}
	yerr := []float64{0.05, 0.05, 0.05, 0.05, 0.05}
	model := Model{
		Nodes:   []kernel.Kernel{kernel.SquaredExponential{Amplitude: 1, Ell: 1.5}},
		Weight:  kernel.SquaredExponential{Amplitude: 1, Ell: 2},
		Means:   []means.Mean{means.Constant{C: 1}},
		Jitters: []float64{0.1},
	}
	g, err := New(model, ts, y, yerr)
	require.NoError(t, err)

	nodeMu := make([]float64, 5)
	weightMu := make([]float64, 5)
	for i, ti := range ts {
		nodeMu[i] = math.Sin(2 * math.Pi * ti / 8)
		weightMu[i] = 0.5 + 0.1*ti
	}
	smallCov := func() *mat.SymDense {
		c := mat.NewSymDense(5, nil)
		for i := 0; i < 5; i++ {
			c.SetSym(i, i, 0.01)
		}
		return c
	}
	post := &Posterior{
		NodeMeans:   [][]float64{nodeMu},
		NodeCovs:    []*mat.SymDense{smallCov()},
		WeightMeans: [][][]float64{{weightMu}},
		WeightCovs:  [][]*mat.SymDense{{smallCov()}},
	}
	return g, post
}

func TestPredictReproducesPosteriorAtTrainingTimes(t *testing.T) {
	g, post := predictNetwork(t)
	mean, err := g.Predict(post, g.Times())
	require.NoError(t, err)

	r, c := mean.Dims()
	require.Equal(t, 1, r)
	require.Equal(t, 5, c)
	for s, ts := range g.Times() {
		want := post.WeightMeans[0][0][s]*post.NodeMeans[0][s] + 1 // constant mean added back
		assert.InDelta(t, want, mean.At(0, s), 1e-2, "t=%v", ts)
	}
}

func TestPredictRevertsToMeanFarFromData(t *testing.T) {
	g, post := predictNetwork(t)
	mean, err := g.Predict(post, []float64{100})
	require.NoError(t, err)
	// Beyond the kernel correlation length the latent conditionals
	// vanish, leaving only the mean function.
	assert.InDelta(t, 1, mean.At(0, 0), 1e-6)
}

func TestPredictWithStd(t *testing.T) {
	g, post := predictNetwork(t)
	tstar := []float64{0.5, 2.5, 100}
	mean, std, err := g.PredictWithStd(post, tstar)
	require.NoError(t, err)

	r, c := std.Dims()
	require.Equal(t, 1, r)
	require.Equal(t, 3, c)
	mr, mc := mean.Dims()
	require.Equal(t, 1, mr)
	require.Equal(t, 3, mc)

	// jitter^2 + (mean |yerr|)^2 floors the predictive variance.
	noiseStd := math.Sqrt(0.1*0.1 + 0.05*0.05)
	for s := 0; s < 3; s++ {
		assert.GreaterOrEqual(t, std.At(0, s), noiseStd-1e-9)
		assert.False(t, math.IsNaN(std.At(0, s)))
	}
	// Far from the data the prior dominates, so the spread is wider
	// than near it.
	assert.Greater(t, std.At(0, 2), std.At(0, 0))
}

func TestPredictAfterMeanFieldRun(t *testing.T) {
	g, truth := sinusoidNetwork(t)
	mf := NewMeanField(g)
	mf.MaxIterations = 50
	res, err := mf.Run()
	require.NoError(t, err)

	mean, std, err := g.PredictWithStd(&res.Posterior, g.Times())
	require.NoError(t, err)

	var ss float64
	for i := range truth {
		d := mean.At(0, i) - truth[i]
		ss += d * d
		assert.False(t, math.IsNaN(std.At(0, i)))
	}
	rmse := math.Sqrt(ss / float64(len(truth)))
	assert.Less(t, rmse, 0.3)
}
