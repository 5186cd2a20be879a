package gprn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/means"
)

func twoOutputModel() Model {
	return Model{
		Nodes:   []kernel.Kernel{kernel.QuasiPeriodic{Amplitude: 1, EllE: 20, Period: 10, EllP: 0.5, Noise: 0.1}},
		Weight:  kernel.Constant{Amplitude: 1},
		Means:   []means.Mean{means.Linear{Slope: 0.1, Intercept: 1}, nil},
		Jitters: []float64{0.3, 0.2},
	}
}

func TestNewRejectsUnpairedSeries(t *testing.T) {
	model := twoOutputModel()
	ts := testTimes(4)
	s := make([]float64, 4)
	// Two declared outputs but three trailing series: not (value, error)
	// pairs, must fail instead of silently truncating.
	_, err := New(model, ts, s, s, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pairs")
}

func TestNewRejectsCountMismatches(t *testing.T) {
	ts := testTimes(4)
	s := make([]float64, 4)

	model := twoOutputModel()
	model.Jitters = []float64{0.3}
	_, err := New(model, ts, s, s, s, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jitters")

	model = twoOutputModel()
	model.Means = []means.Mean{nil}
	_, err = New(model, ts, s, s, s, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mean functions")

	model = twoOutputModel()
	short := make([]float64, 3)
	_, err = New(model, ts, s, s, short, s)
	require.Error(t, err)

	model = twoOutputModel()
	model.Nodes = nil
	_, err = New(model, ts, s, s, s, s)
	require.Error(t, err)

	model = twoOutputModel()
	model.Weight = nil
	_, err = New(model, ts, s, s, s, s)
	require.Error(t, err)

	_, err = New(twoOutputModel(), ts)
	require.Error(t, err)

	_, err = New(twoOutputModel(), nil, s, s, s, s)
	require.Error(t, err)
}

func TestModelParamsRoundTrip(t *testing.T) {
	model := twoOutputModel()
	// 5 node hypers + 1 weight hyper + 2 mean params + 2 jitters.
	require.Equal(t, 10, model.NumParams())

	x := model.Params(nil)
	require.Len(t, x, 10)
	got, err := model.WithParams(x)
	require.NoError(t, err)
	assert.Equal(t, model.Params(nil), got.Params(nil))

	x[0] = 7 // node amplitude
	x[9] = 0.9
	got, err = model.WithParams(x)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Nodes[0].(kernel.QuasiPeriodic).Amplitude)
	assert.Equal(t, 0.9, got.Jitters[1])
	// The receiver is untouched.
	assert.Equal(t, 1.0, model.Nodes[0].(kernel.QuasiPeriodic).Amplitude)
	assert.Equal(t, 0.2, model.Jitters[1])
}

func TestWithParamsRejectsWrongLength(t *testing.T) {
	model := twoOutputModel()
	_, err := model.WithParams(make([]float64, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameters")
}

func TestErrorTermFlooredOnNoiseFreeData(t *testing.T) {
	model := Model{
		Nodes:   []kernel.Kernel{kernel.SquaredExponential{Amplitude: 1, Ell: 1}},
		Weight:  kernel.Constant{Amplitude: 1},
		Means:   []means.Mean{nil},
		Jitters: []float64{0},
	}
	ts := testTimes(4)
	y := []float64{1, 2, 3, 4}
	yerr := []float64{0, 0, 0, 0}
	g, err := New(model, ts, y, yerr)
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.errorTerm(model))
}

func TestNoiseVariance(t *testing.T) {
	g := twoNodeNetwork(t)
	// jitter^2 + (mean |yerr|)^2 with jitter 0.1, yerr 0.05 throughout.
	assert.InDelta(t, 0.01+0.0025, g.noiseVariance(g.Model(), 0), 1e-12)
}

func TestEvaluateFiniteAndRejectsBadInput(t *testing.T) {
	g := twoNodeNetwork(t)
	x := g.Model().Params(nil)
	v := g.Evaluate(x)
	assert.False(t, math.IsNaN(v))
	assert.False(t, math.IsInf(v, 0))

	assert.True(t, math.IsInf(g.Evaluate(x[:2]), -1))
}
