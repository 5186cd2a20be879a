package gprn

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/jdavidrcamacho/Tests-gprn/kernel"
	"github.com/jdavidrcamacho/Tests-gprn/utils"
)

// diagJitter is the relative diagonal regularization applied to every
// training covariance matrix before factorization, to counter
// near-singularity from duplicate or closely spaced time points.
const diagJitter = 1e-5

const badKernelKind = "gprn: kernel implements no evaluation capability"

// kernelMatrix evaluates k over the training times, dispatching on the
// kernel's capability tag, and applies the relative diagonal
// regularization. Degenerate kernels produce their diagonal directly
// and receive no extra regularization.
func kernelMatrix(k kernel.Kernel, t []float64) *mat.SymDense {
	n := len(t)
	out := mat.NewSymDense(n, nil)
	switch k := k.(type) {
	case kernel.Degenerate:
		v := k.Variance()
		for i := 0; i < n; i++ {
			out.SetSym(i, i, v)
		}
		return out
	case kernel.NonStationary:
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				out.SetSym(i, j, k.ValueAt(t[i], t[j]))
			}
		}
	case kernel.Stationary:
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				out.SetSym(i, j, k.Value(t[i]-t[j]))
			}
		}
	default:
		panic(badKernelKind)
	}
	for i := 0; i < n; i++ {
		out.SetSym(i, i, out.At(i, i)*(1+diagJitter))
	}
	return out
}

// crossKernelMatrix evaluates k between the query times and the
// training times. No regularization is applied. Degenerate kernels
// have zero cross-covariance against training data.
func crossKernelMatrix(k kernel.Kernel, tstar, t []float64) *mat.Dense {
	m, n := len(tstar), len(t)
	out := mat.NewDense(m, n, nil)
	switch k := k.(type) {
	case kernel.Degenerate:
		// zero
	case kernel.NonStationary:
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				out.Set(i, j, k.ValueAt(tstar[i], t[j]))
			}
		}
	case kernel.Stationary:
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				out.Set(i, j, k.Value(tstar[i]-t[j]))
			}
		}
	default:
		panic(badKernelKind)
	}
	return out
}

// kernelSelfVariance returns k(s, s) for a single query time.
func kernelSelfVariance(k kernel.Kernel, s float64) float64 {
	switch k := k.(type) {
	case kernel.Degenerate:
		return k.Variance()
	case kernel.NonStationary:
		return k.ValueAt(s, s)
	case kernel.Stationary:
		return k.Value(0)
	default:
		panic(badKernelKind)
	}
}

// Layout describes how the flat latent vector u is indexed: the q node
// blocks of N values come first, followed by the q·p weight blocks.
// Computing the offsets once and naming them replaces ad hoc positional
// slicing of the latent vector.
type Layout struct {
	N int // observations
	Q int // nodes
	P int // outputs
}

// Dim returns the total latent dimension, N·q·(p+1).
func (l Layout) Dim() int { return l.N * l.Q * (l.P + 1) }

// NodeOffset returns the start of node j's block.
func (l Layout) NodeOffset(j int) int { return j * l.N }

// WeightOffset returns the start of the block for the weight coupling
// node j to output i.
func (l Layout) WeightOffset(i, j int) int { return l.Q*l.N + (i*l.Q+j)*l.N }

// Split divides a flat latent vector into its node part (q×N) and
// weight part (p×q×N). The returned slices alias u, so concatenating
// them reconstructs the original vector exactly.
func (l Layout) Split(u []float64) (nodes [][]float64, weights [][][]float64) {
	if len(u) != l.Dim() {
		panic("gprn: latent vector length mismatch")
	}
	nodes = make([][]float64, l.Q)
	for j := 0; j < l.Q; j++ {
		off := l.NodeOffset(j)
		nodes[j] = u[off : off+l.N]
	}
	weights = make([][][]float64, l.P)
	for i := 0; i < l.P; i++ {
		weights[i] = make([][]float64, l.Q)
		for j := 0; j < l.Q; j++ {
			off := l.WeightOffset(i, j)
			weights[i][j] = u[off : off+l.N]
		}
	}
	return nodes, weights
}

// JointCovariance assembles the joint prior covariance over all latent
// node and weight values: a block-diagonal matrix whose first q blocks
// are the node covariance matrices and whose remaining q·p blocks are
// copies of the weight kernel's covariance matrix. Nodes and weights
// are independent a priori, so all cross blocks are zero.
func (g *GPRN) JointCovariance(model Model) *mat.SymDense {
	blocks := make([]mat.Symmetric, 0, g.q*(g.p+1))
	for _, nk := range model.Nodes {
		blocks = append(blocks, kernelMatrix(nk, g.t))
	}
	kw := kernelMatrix(model.Weight, g.t)
	for i := 0; i < g.q*g.p; i++ {
		blocks = append(blocks, kw)
	}
	return utils.BlockDiag(g.layout.Dim(), blocks...)
}

// SampleJoint draws one sample of the full latent vector from the
// zero-mean Gaussian with the joint covariance and splits it into node
// and weight tensors. Singular joint covariances (for example from a
// white-noise or constant kernel) are tolerated by the sampler.
func (g *GPRN) SampleJoint(model Model, src rand.Source) (nodes [][]float64, weights [][][]float64, err error) {
	cov := g.JointCovariance(model)
	u, err := utils.SampleNormal(nil, cov, src)
	if err != nil {
		return nil, nil, err
	}
	nodes, weights = g.layout.Split(u)
	return nodes, weights, nil
}
