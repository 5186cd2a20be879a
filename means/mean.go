// Package means provides deterministic per-output trend functions for
// Gaussian process regression networks.
package means

import "math"

// Mean is a parametrized deterministic function of time. Like the
// kernels, implementations are value types: WithParams returns a
// modified copy.
type Mean interface {
	// NumParams returns the number of parameters.
	NumParams() int
	// Params stores the parameters in dst and returns it. If dst is nil
	// a new slice is allocated. Params panics if dst is non-nil and
	// len(dst) != NumParams().
	Params(dst []float64) []float64
	// WithParams returns a copy of the mean function with the given
	// parameters. It panics if len(p) != NumParams().
	WithParams(p []float64) Mean
	// Value evaluates the mean function at time t.
	Value(t float64) float64
}

// Eval evaluates m over the time vector, storing the result in dst.
// If dst is nil new memory is allocated. A nil mean contributes zero.
func Eval(m Mean, t []float64, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(t))
	}
	if len(dst) != len(t) {
		panic(badStorageLength)
	}
	if m == nil {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}
	for i, ti := range t {
		dst[i] = m.Value(ti)
	}
	return dst
}

const (
	badParamLength   = "means: parameter length mismatch"
	badStorageLength = "means: storage length mismatch"
)

func paramsInto(dst []float64, vals ...float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(vals))
	}
	if len(dst) != len(vals) {
		panic(badParamLength)
	}
	copy(dst, vals)
	return dst
}

func checkParams(p []float64, n int) {
	if len(p) != n {
		panic(badParamLength)
	}
}

var (
	_ Mean = Constant{}
	_ Mean = Linear{}
	_ Mean = Parabola{}
	_ Mean = Sine{}
	_ Mean = Keplerian{}
)

// Constant is a constant offset, m(t) = c.
type Constant struct {
	C float64
}

func (m Constant) NumParams() int { return 1 }

func (m Constant) Params(dst []float64) []float64 { return paramsInto(dst, m.C) }

func (m Constant) WithParams(p []float64) Mean {
	checkParams(p, m.NumParams())
	return Constant{C: p[0]}
}

func (m Constant) Value(t float64) float64 { return m.C }

// Linear is a straight-line trend, m(t) = slope*t + intercept.
type Linear struct {
	Slope     float64
	Intercept float64
}

func (m Linear) NumParams() int { return 2 }

func (m Linear) Params(dst []float64) []float64 {
	return paramsInto(dst, m.Slope, m.Intercept)
}

func (m Linear) WithParams(p []float64) Mean {
	checkParams(p, m.NumParams())
	return Linear{Slope: p[0], Intercept: p[1]}
}

func (m Linear) Value(t float64) float64 { return m.Slope*t + m.Intercept }

// Parabola is a quadratic trend, m(t) = a*t^2 + b*t + c.
type Parabola struct {
	A, B, C float64
}

func (m Parabola) NumParams() int { return 3 }

func (m Parabola) Params(dst []float64) []float64 {
	return paramsInto(dst, m.A, m.B, m.C)
}

func (m Parabola) WithParams(p []float64) Mean {
	checkParams(p, m.NumParams())
	return Parabola{A: p[0], B: p[1], C: p[2]}
}

func (m Parabola) Value(t float64) float64 { return (m.A*t+m.B)*t + m.C }

// Sine is a sinusoidal trend, m(t) = amp * sin(2 pi t / P + phase).
type Sine struct {
	Amplitude float64
	Period    float64
	Phase     float64
}

func (m Sine) NumParams() int { return 3 }

func (m Sine) Params(dst []float64) []float64 {
	return paramsInto(dst, m.Amplitude, m.Period, m.Phase)
}

func (m Sine) WithParams(p []float64) Mean {
	checkParams(p, m.NumParams())
	return Sine{Amplitude: p[0], Period: p[1], Phase: p[2]}
}

func (m Sine) Value(t float64) float64 {
	return m.Amplitude * math.Sin(2*math.Pi*t/m.Period+m.Phase)
}

// Keplerian is the radial-velocity signal of a planet on a Keplerian
// orbit,
//
//	m(t) = K * (e*cos(w) + cos(w + nu(t)))
//
// where nu is the true anomaly obtained by solving Kepler's equation
// for the eccentric anomaly.
type Keplerian struct {
	Period float64 // orbital period
	K      float64 // semi-amplitude
	Ecc    float64 // eccentricity
	Omega  float64 // longitude of periastron
	T0     float64 // time of periastron passage
}

func (m Keplerian) NumParams() int { return 5 }

func (m Keplerian) Params(dst []float64) []float64 {
	return paramsInto(dst, m.Period, m.K, m.Ecc, m.Omega, m.T0)
}

func (m Keplerian) WithParams(p []float64) Mean {
	checkParams(p, m.NumParams())
	return Keplerian{Period: p[0], K: p[1], Ecc: p[2], Omega: p[3], T0: p[4]}
}

func (m Keplerian) Value(t float64) float64 {
	meanAnom := 2 * math.Pi * (t - m.T0) / m.Period
	ecc := m.Ecc
	// Newton iteration on Kepler's equation E - e*sin(E) = M.
	e := meanAnom
	for i := 0; i < 100; i++ {
		d := (e - ecc*math.Sin(e) - meanAnom) / (1 - ecc*math.Cos(e))
		e -= d
		if math.Abs(d) < 1e-12 {
			break
		}
	}
	nu := 2 * math.Atan2(math.Sqrt(1+ecc)*math.Sin(e/2), math.Sqrt(1-ecc)*math.Cos(e/2))
	return m.K * (ecc*math.Cos(m.Omega) + math.Cos(m.Omega+nu))
}
