// Package gprn implements variational inference for Gaussian process
// regression networks: q latent node processes combined through
// per-output weight processes to jointly model p correlated time
// series. See Wilson et al. (2012) for the model and Nguyen & Bonilla
// (2013) for the two inference schemes provided here, mean-field
// coordinate ascent (MeanField) and a nonparametric mixture-of-Gaussians
// posterior (Mixture).
package gprn

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/means"
)

// Model collects the latent structure of a regression network: one
// kernel per node, a single weight kernel shared by every (output,
// node) pair, an optional mean function per output, and one jitter
// (extra noise standard deviation) per output. Model is a value type;
// WithParams returns a modified copy, so a Model can be shared across
// concurrent evaluations.
type Model struct {
	Nodes   []kernel.Kernel
	Weight  kernel.Kernel
	Means   []means.Mean // entries may be nil
	Jitters []float64
}

// NumParams returns the length of the flat parameter vector: node
// hyperparameters in node order, weight hyperparameters, mean-function
// parameters in output order, then jitters.
func (m Model) NumParams() int {
	n := 0
	for _, nk := range m.Nodes {
		n += nk.NumHyper()
	}
	n += m.Weight.NumHyper()
	for _, mn := range m.Means {
		if mn != nil {
			n += mn.NumParams()
		}
	}
	return n + len(m.Jitters)
}

// Params stores the flat parameter vector in dst and returns it. If dst
// is nil new memory is allocated. Params panics if dst is non-nil and
// has the wrong length.
func (m Model) Params(dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, m.NumParams())
	}
	if len(dst) != m.NumParams() {
		panic("gprn: parameter length mismatch")
	}
	idx := 0
	for _, nk := range m.Nodes {
		nk.Hyper(dst[idx : idx+nk.NumHyper()])
		idx += nk.NumHyper()
	}
	m.Weight.Hyper(dst[idx : idx+m.Weight.NumHyper()])
	idx += m.Weight.NumHyper()
	for _, mn := range m.Means {
		if mn == nil {
			continue
		}
		mn.Params(dst[idx : idx+mn.NumParams()])
		idx += mn.NumParams()
	}
	copy(dst[idx:], m.Jitters)
	return dst
}

// WithParams returns a copy of the model with all kernel, mean and
// jitter parameters replaced from the flat vector x. The receiver is
// left untouched.
func (m Model) WithParams(x []float64) (Model, error) {
	if len(x) != m.NumParams() {
		return Model{}, fmt.Errorf("gprn: got %d parameters, want %d", len(x), m.NumParams())
	}
	out := Model{
		Nodes:   make([]kernel.Kernel, len(m.Nodes)),
		Means:   make([]means.Mean, len(m.Means)),
		Jitters: make([]float64, len(m.Jitters)),
	}
	idx := 0
	for j, nk := range m.Nodes {
		nh := nk.NumHyper()
		out.Nodes[j] = nk.WithHyper(x[idx : idx+nh])
		idx += nh
	}
	wh := m.Weight.NumHyper()
	out.Weight = m.Weight.WithHyper(x[idx : idx+wh])
	idx += wh
	for i, mn := range m.Means {
		if mn == nil {
			continue
		}
		np := mn.NumParams()
		out.Means[i] = mn.WithParams(x[idx : idx+np])
		idx += np
	}
	copy(out.Jitters, x[idx:])
	return out, nil
}

// GPRN holds the observed data of a regression network together with
// its current model. The time vector and data matrices are fixed at
// construction and never mutated afterwards, so independent engine
// evaluations may run concurrently against the same GPRN.
type GPRN struct {
	model Model

	t    []float64
	y    *mat.Dense // p×N observed values
	yerr *mat.Dense // p×N measurement uncertainties

	p, q, n int
	layout  Layout
}

// New validates and assembles a regression network. The trailing series
// arguments are (value, error) pairs, one pair per output: 2·p slices
// with the error arrays in the odd positions. The number of pairs must
// match the number of declared outputs (the length of model.Means and
// model.Jitters), and every series must have the same length as t.
func New(model Model, t []float64, series ...[]float64) (*GPRN, error) {
	if len(model.Nodes) == 0 {
		return nil, fmt.Errorf("gprn: model has no node kernels")
	}
	if model.Weight == nil {
		return nil, fmt.Errorf("gprn: model has no weight kernel")
	}
	if len(series) == 0 || len(series)%2 != 0 {
		return nil, fmt.Errorf("gprn: got %d data series, want (value, error) pairs", len(series))
	}
	p := len(series) / 2
	if len(model.Jitters) != p {
		return nil, fmt.Errorf("gprn: got %d jitters for %d outputs", len(model.Jitters), p)
	}
	if len(model.Means) != p {
		return nil, fmt.Errorf("gprn: got %d mean functions for %d outputs", len(model.Means), p)
	}
	n := len(t)
	if n == 0 {
		return nil, fmt.Errorf("gprn: empty time vector")
	}
	for i, s := range series {
		if len(s) != n {
			return nil, fmt.Errorf("gprn: series %d has %d points, want %d", i, len(s), n)
		}
	}

	q := len(model.Nodes)
	y := mat.NewDense(p, n, nil)
	yerr := mat.NewDense(p, n, nil)
	for i := 0; i < p; i++ {
		y.SetRow(i, series[2*i])
		yerr.SetRow(i, series[2*i+1])
	}
	return &GPRN{
		model:  model,
		t:      append([]float64(nil), t...),
		y:      y,
		yerr:   yerr,
		p:      p,
		q:      q,
		n:      n,
		layout: Layout{N: n, Q: q, P: p},
	}, nil
}

// Model returns the model the network was constructed with.
func (g *GPRN) Model() Model { return g.model }

// Layout returns the latent-vector layout of the network.
func (g *GPRN) Layout() Layout { return g.layout }

// Times returns the observation times.
func (g *GPRN) Times() []float64 { return g.t }

// Evaluate applies the flat parameter vector x to a copy of the model,
// runs the mean-field engine with default settings and returns the
// evidence lower bound. Invalid parameters and terminal numerical
// failures map to -Inf, so Evaluate is directly usable as an MCMC
// log-probability. Note the sign convention: higher is better, so
// minimizing callers must negate. Each call is independent; Evaluate
// is safe to invoke from concurrent workers.
func (g *GPRN) Evaluate(x []float64) float64 {
	model, err := g.model.WithParams(x)
	if err != nil {
		return math.Inf(-1)
	}
	mf := NewMeanField(g)
	res, err := mf.runModel(model)
	if err != nil {
		return math.Inf(-1)
	}
	return res.ELBO
}

// residuals returns the p×N matrix of observations with each output's
// mean function subtracted.
func (g *GPRN) residuals(model Model) [][]float64 {
	resid := make([][]float64, g.p)
	mbuf := make([]float64, g.n)
	for i := 0; i < g.p; i++ {
		resid[i] = make([]float64, g.n)
		means.Eval(model.Means[i], g.t, mbuf)
		for t := 0; t < g.n; t++ {
			resid[i][t] = g.y.At(i, t) - mbuf[t]
		}
	}
	return resid
}

// errorTerm combines the jitters and the average residual noise of all
// outputs into the scalar noise term used by the mean-field updates.
// Fully noise-free data would make the term zero and the closed-form
// updates singular, so it is floored to one in that case.
func (g *GPRN) errorTerm(model Model) float64 {
	var jit float64
	for _, j := range model.Jitters {
		jit += j * j
	}
	term := math.Sqrt(jit) / float64(g.p)
	for i := 0; i < g.p; i++ {
		var s float64
		for t := 0; t < g.n; t++ {
			e := g.yerr.At(i, t)
			s += e * e
		}
		term += math.Sqrt(s) / float64(g.n)
	}
	if term == 0 {
		term = 1
	}
	return term
}

// noiseVariance returns jitter_i^2 + (mean |yerr_i|)^2 for output i,
// the aggregate observation noise used by the mixture engine and the
// predictive standard deviation.
func (g *GPRN) noiseVariance(model Model, i int) float64 {
	var mean float64
	for t := 0; t < g.n; t++ {
		mean += math.Abs(g.yerr.At(i, t))
	}
	mean /= float64(g.n)
	return model.Jitters[i]*model.Jitters[i] + mean*mean
}

// nopLogger is the default engine logger.
func nopLogger() *zap.Logger { return zap.NewNop() }
