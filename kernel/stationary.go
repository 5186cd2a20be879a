package kernel

import "math"

var (
	_ Stationary = Constant{}
	_ Stationary = SquaredExponential{}
	_ Stationary = Periodic{}
	_ Stationary = QuasiPeriodic{}
	_ Stationary = RationalQuadratic{}
	_ Stationary = Cosine{}
	_ Stationary = Exponential{}
	_ Stationary = Matern32{}
	_ Stationary = Matern52{}
)

// Constant is a constant covariance,
//
//	k(r) = c^2
type Constant struct {
	Amplitude float64
}

func (k Constant) NumHyper() int { return 1 }

func (k Constant) Hyper(dst []float64) []float64 { return hyperInto(dst, k.Amplitude) }

func (k Constant) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Constant{Amplitude: h[0]}
}

func (k Constant) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}}
}

// Value implements Stationary. The lag is ignored.
func (k Constant) Value(lag float64) float64 { return k.Amplitude * k.Amplitude }

// SquaredExponential is the squared exponential kernel,
//
//	k(r) = amp^2 * exp(-r^2 / (2 ell^2))
type SquaredExponential struct {
	Amplitude float64
	Ell       float64
}

func (k SquaredExponential) NumHyper() int { return 2 }

func (k SquaredExponential) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Ell)
}

func (k SquaredExponential) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return SquaredExponential{Amplitude: h[0], Ell: h[1]}
}

func (k SquaredExponential) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}}
}

func (k SquaredExponential) Value(lag float64) float64 {
	return k.Amplitude * k.Amplitude * math.Exp(-lag*lag/(2*k.Ell*k.Ell))
}

// Periodic is the exponential sine squared kernel,
//
//	k(r) = amp^2 * exp(-2 sin^2(pi r / P) / ell^2)       r != 0
//	k(0) = amp^2 + wn^2
type Periodic struct {
	Amplitude float64
	Ell       float64
	Period    float64
	Noise     float64
}

func (k Periodic) NumHyper() int { return 4 }

func (k Periodic) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Ell, k.Period, k.Noise)
}

func (k Periodic) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Periodic{Amplitude: h[0], Ell: h[1], Period: h[2], Noise: h[3]}
}

func (k Periodic) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}, {1e-3, 1e4}, {0, 10}}
}

func (k Periodic) Value(lag float64) float64 {
	s := math.Sin(math.Pi * lag / k.Period)
	v := k.Amplitude * k.Amplitude * math.Exp(-2*s*s/(k.Ell*k.Ell))
	if lag == 0 {
		v += k.Noise * k.Noise
	}
	return v
}

// QuasiPeriodic multiplies a periodic kernel by a squared exponential
// decay, the usual model for an evolving stellar activity signal,
//
//	k(r) = amp^2 * exp(-2 sin^2(pi r / P) / ellP^2 - r^2 / (2 ellE^2))
type QuasiPeriodic struct {
	Amplitude float64
	EllE      float64 // evolution time scale
	Period    float64
	EllP      float64 // length scale of the periodic component
	Noise     float64
}

func (k QuasiPeriodic) NumHyper() int { return 5 }

func (k QuasiPeriodic) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.EllE, k.Period, k.EllP, k.Noise)
}

func (k QuasiPeriodic) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return QuasiPeriodic{Amplitude: h[0], EllE: h[1], Period: h[2], EllP: h[3], Noise: h[4]}
}

func (k QuasiPeriodic) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e4}, {1e-3, 1e4}, {1e-3, 1e3}, {0, 10}}
}

func (k QuasiPeriodic) Value(lag float64) float64 {
	s := math.Sin(math.Pi * lag / k.Period)
	v := k.Amplitude * k.Amplitude *
		math.Exp(-2*s*s/(k.EllP*k.EllP)-lag*lag/(2*k.EllE*k.EllE))
	if lag == 0 {
		v += k.Noise * k.Noise
	}
	return v
}

// RationalQuadratic is a scale mixture of squared exponentials,
//
//	k(r) = amp^2 * (1 + r^2 / (2 alpha ell^2))^-alpha
type RationalQuadratic struct {
	Amplitude float64
	Alpha     float64
	Ell       float64
}

func (k RationalQuadratic) NumHyper() int { return 3 }

func (k RationalQuadratic) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Alpha, k.Ell)
}

func (k RationalQuadratic) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return RationalQuadratic{Amplitude: h[0], Alpha: h[1], Ell: h[2]}
}

func (k RationalQuadratic) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}, {1e-3, 1e3}}
}

func (k RationalQuadratic) Value(lag float64) float64 {
	return k.Amplitude * k.Amplitude *
		math.Pow(1+lag*lag/(2*k.Alpha*k.Ell*k.Ell), -k.Alpha)
}

// Cosine is a purely periodic kernel,
//
//	k(r) = amp^2 * cos(2 pi r / P)
type Cosine struct {
	Amplitude float64
	Period    float64
}

func (k Cosine) NumHyper() int { return 2 }

func (k Cosine) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Period)
}

func (k Cosine) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Cosine{Amplitude: h[0], Period: h[1]}
}

func (k Cosine) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e4}}
}

func (k Cosine) Value(lag float64) float64 {
	return k.Amplitude * k.Amplitude * math.Cos(2*math.Pi*lag/k.Period)
}

// Exponential is the Ornstein-Uhlenbeck kernel,
//
//	k(r) = amp^2 * exp(-|r| / ell)
type Exponential struct {
	Amplitude float64
	Ell       float64
}

func (k Exponential) NumHyper() int { return 2 }

func (k Exponential) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Ell)
}

func (k Exponential) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Exponential{Amplitude: h[0], Ell: h[1]}
}

func (k Exponential) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}}
}

func (k Exponential) Value(lag float64) float64 {
	return k.Amplitude * k.Amplitude * math.Exp(-math.Abs(lag)/k.Ell)
}

// Matern32 is the Matern kernel with nu = 3/2,
//
//	k(r) = amp^2 * (1 + sqrt(3)|r|/ell) * exp(-sqrt(3)|r|/ell)
type Matern32 struct {
	Amplitude float64
	Ell       float64
}

func (k Matern32) NumHyper() int { return 2 }

func (k Matern32) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Ell)
}

func (k Matern32) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Matern32{Amplitude: h[0], Ell: h[1]}
}

func (k Matern32) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}}
}

func (k Matern32) Value(lag float64) float64 {
	s := math.Sqrt(3) * math.Abs(lag) / k.Ell
	return k.Amplitude * k.Amplitude * (1 + s) * math.Exp(-s)
}

// Matern52 is the Matern kernel with nu = 5/2,
//
//	k(r) = amp^2 * (1 + sqrt(5)|r|/ell + 5r^2/(3 ell^2)) * exp(-sqrt(5)|r|/ell)
type Matern52 struct {
	Amplitude float64
	Ell       float64
}

func (k Matern52) NumHyper() int { return 2 }

func (k Matern52) Hyper(dst []float64) []float64 {
	return hyperInto(dst, k.Amplitude, k.Ell)
}

func (k Matern52) WithHyper(h []float64) Kernel {
	checkHyper(h, k.NumHyper())
	return Matern52{Amplitude: h[0], Ell: h[1]}
}

func (k Matern52) Bounds() []Bound {
	return []Bound{{1e-3, 1e3}, {1e-3, 1e3}}
}

func (k Matern52) Value(lag float64) float64 {
	r := math.Abs(lag)
	s := math.Sqrt(5) * r / k.Ell
	return k.Amplitude * k.Amplitude * (1 + s + 5*r*r/(3*k.Ell*k.Ell)) * math.Exp(-s)
}
