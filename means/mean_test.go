package means

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsRoundTrip(t *testing.T) {
	ms := []Mean{
		Constant{C: 3},
		Linear{Slope: 0.5, Intercept: -1},
		Parabola{A: 1, B: 2, C: 3},
		Sine{Amplitude: 2, Period: 10, Phase: 0.3},
		Keplerian{Period: 100, K: 5, Ecc: 0.2, Omega: 1.1, T0: 3},
	}
	for _, m := range ms {
		p := m.Params(nil)
		require.Len(t, p, m.NumParams())
		assert.Equal(t, m, m.WithParams(p))
	}
}

func TestEvalNilMeanIsZero(t *testing.T) {
	ts := []float64{0, 1, 2}
	dst := []float64{9, 9, 9}
	Eval(nil, ts, dst)
	assert.Equal(t, []float64{0, 0, 0}, dst)
}

func TestEvalAllocatesWhenDstNil(t *testing.T) {
	got := Eval(Constant{C: 2}, []float64{0, 5, 10}, nil)
	assert.Equal(t, []float64{2, 2, 2}, got)
}

func TestEvalPanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		Eval(Constant{C: 1}, []float64{0, 1}, make([]float64, 3))
	})
}

func TestLinearAndParabola(t *testing.T) {
	assert.InDelta(t, 2.0, Linear{Slope: 0.5, Intercept: 1}.Value(2), 1e-14)
	assert.InDelta(t, 11.0, Parabola{A: 1, B: 2, C: 3}.Value(2), 1e-14)
}

func TestSineValue(t *testing.T) {
	m := Sine{Amplitude: 2, Period: 10, Phase: 0}
	assert.InDelta(t, 2, m.Value(2.5), 1e-12) // quarter period
	assert.InDelta(t, 0, m.Value(5), 1e-12)   // half period
}

func TestKeplerianCircularOrbit(t *testing.T) {
	// With zero eccentricity the true anomaly equals the mean anomaly
	// and the signal reduces to K*cos(omega + 2*pi*(t-T0)/P).
	m := Keplerian{Period: 10, K: 3, Ecc: 0, Omega: 0.7, T0: 1}
	for _, ti := range []float64{0, 1, 2.5, 7, 13} {
		want := 3 * math.Cos(0.7+2*math.Pi*(ti-1)/10)
		assert.InDelta(t, want, m.Value(ti), 1e-9)
	}
}

func TestKeplerianEccentricPeriodicity(t *testing.T) {
	m := Keplerian{Period: 10, K: 5, Ecc: 0.4, Omega: 1.2, T0: 0}
	for _, ti := range []float64{0.5, 3, 8} {
		assert.InDelta(t, m.Value(ti), m.Value(ti+10), 1e-8)
	}
	// The signal stays within the physical envelope.
	for ti := 0.0; ti < 10; ti += 0.1 {
		v := m.Value(ti)
		assert.LessOrEqual(t, math.Abs(v), 5*(1+0.4)+1e-9)
	}
}
