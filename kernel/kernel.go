// Package kernel provides the covariance functions used to build
// Gaussian process regression networks.
package kernel

// Bound is an inclusive range for a single hyperparameter.
type Bound struct {
	Min float64
	Max float64
}

// Kernel is a covariance function with a flat hyperparameter vector.
// Implementations are small value types: WithHyper returns a modified
// copy and never touches the receiver, so a kernel can be shared across
// concurrent evaluations.
//
// Every kernel additionally implements exactly one of the capability
// interfaces Stationary, NonStationary or Degenerate; covariance
// builders dispatch on those.
type Kernel interface {
	// NumHyper returns the number of hyperparameters.
	NumHyper() int
	// Hyper stores the hyperparameters in dst and returns it. If dst is
	// nil a new slice is allocated. Hyper panics if dst is non-nil and
	// len(dst) != NumHyper().
	Hyper(dst []float64) []float64
	// WithHyper returns a copy of the kernel with the given
	// hyperparameters. It panics if len(h) != NumHyper().
	WithHyper(h []float64) Kernel
	// Bounds returns suggested bounds on the hyperparameters, in the
	// same order as Hyper.
	Bounds() []Bound
}

// Stationary is a kernel whose value is a function of the lag between
// two inputs only.
type Stationary interface {
	Kernel
	// Value evaluates the kernel at the given lag.
	Value(lag float64) float64
}

// NonStationary is a kernel whose value depends on the absolute input
// positions rather than their lag.
type NonStationary interface {
	Kernel
	// ValueAt evaluates the kernel at the input pair (ti, tj).
	ValueAt(ti, tj float64) float64
}

// Degenerate is a kernel whose training covariance is purely diagonal
// and whose cross-covariance against held-out inputs is identically
// zero.
type Degenerate interface {
	Kernel
	// Variance returns the diagonal variance.
	Variance() float64
}

const badHyperLength = "kernel: hyperparameter length mismatch"

// hyperInto copies vals into dst, allocating if dst is nil.
func hyperInto(dst []float64, vals ...float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(vals))
	}
	if len(dst) != len(vals) {
		panic(badHyperLength)
	}
	copy(dst, vals)
	return dst
}

func checkHyper(h []float64, n int) {
	if len(h) != n {
		panic(badHyperLength)
	}
}
