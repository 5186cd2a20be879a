package kernel

import "math"

var (
	_ NonStationary = Linear{}
	_ NonStationary = Polynomial{}
)

// Linear is the dot-product kernel about a center c,
//
//	k(ti, tj) = amp^2 * (ti - c) * (tj - c)
//
// Its value depends on the absolute input positions, so it cannot be
// evaluated from the lag alone.
type Linear struct {
	Amplitude float64
	Center    float64
}

func (k Linear) NumHyper() int { return 2 }

func (k Linear) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Center)
}

func (k Linear) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Linear{Amplitude: h[0], Center: h[1]}
}

func (k Linear) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {-1e4, 1e4}}
}

func (k Linear) ValueAt(ti, tj float64) float64 {
	return k.Amplitude * k.Amplitude * (ti - k.Center) * (tj - k.Center)
}

// Polynomial is the polynomial kernel,
//
//	k(ti, tj) = amp^2 * (ti*tj + offset)^degree
type Polynomial struct {
	Amplitude float64
	Offset    float64
	Degree    float64
}

func (k Polynomial) NumHyper() int { return 3 }

func (k Polynomial) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Offset, k.Degree)
}

func (k Polynomial) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Polynomial{Amplitude: h[0], Offset: h[1], Degree: h[2]}
}

func (k Polynomial) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {0, 1e4}, {1, 6}}
}

func (k Polynomial) ValueAt(ti, tj float64) float64 {
	return k.Amplitude * k.Amplitude * math.Pow(ti*tj+k.Offset, k.Degree)
}
