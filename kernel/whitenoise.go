package kernel

var _ Degenerate = WhiteNoise{}

// WhiteNoise is uncorrelated noise with standard deviation wn. Its
// training covariance is wn^2 on the diagonal and zero elsewhere, and
// its cross-covariance against held-out inputs is identically zero.
type WhiteNoise struct {
	Wn float64
}

func (k WhiteNoise) NumHyper() int { return 1 }

func (k WhiteNoise) Hyper(dst []float64) []float64 { return hyperInto(dst, k.Wn) }

func (k WhiteNoise) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return WhiteNoise{Wn: h[0]}
}

func (k WhiteNoise) Bounds() []Bound {
	return []Bound{{0, 10}}
}

func (k WhiteNoise) Variance() float64 { return k.Wn * k.Wn }
