// Package filter implements the stateless signal transforms used for live
// display: a zero-phase Butterworth low-pass and a trailing moving average.
//
// Every function is pure: it never modifies its input and always returns a
// freshly allocated slice.
package filter

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

// DefaultOrder is the Butterworth order used when none is configured.
const DefaultOrder = 4

var (
	// ErrInvalidCutoff is returned when the cutoff is not inside (0, Nyquist)
	// or the sample rate is not positive.
	ErrInvalidCutoff = errors.New("invalid cutoff frequency")
	// ErrInvalidOrder is returned for filter orders below 1.
	ErrInvalidOrder = errors.New("invalid filter order")
	// ErrDegenerate is returned when a design is numerically unusable.
	ErrDegenerate = errors.New("degenerate filter design")
	// ErrInsufficientData is returned when a series is too short for an operation.
	ErrInsufficientData = errors.New("insufficient data")
)

// Coefficients holds a digital transfer function b(z)/a(z) with a[0] == 1.
type Coefficients struct {
	B []float64
	A []float64
}

// Order returns the filter order.
func (c Coefficients) Order() int {
	return len(c.A) - 1
}

// DCGain returns the gain at zero frequency.
func (c Coefficients) DCGain() float64 {
	return sum(c.B) / sum(c.A)
}

// Design returns a digital Butterworth low-pass of the given order.
// normalizedCutoff is the cutoff divided by the Nyquist frequency and must be
// in (0, 1).
func Design(order int, normalizedCutoff float64) (Coefficients, error) {
	if order < 1 {
		return Coefficients{}, fmt.Errorf("%w: %d", ErrInvalidOrder, order)
	}
	if !(normalizedCutoff > 0 && normalizedCutoff < 1) {
		return Coefficients{}, fmt.Errorf("%w: normalized cutoff %g not in (0, 1)", ErrInvalidCutoff, normalizedCutoff)
	}

	// Pre-warp for the bilinear transform with fs = 2.
	const fs = 2.0
	warped := 2 * fs * math.Tan(math.Pi*normalizedCutoff/fs)

	// Analog prototype poles on the left half of the unit circle, scaled to
	// the warped cutoff. The prototype has no zeros.
	poles := make([]complex128, order)
	for k := range poles {
		theta := math.Pi * float64(2*k+order+1) / float64(2*order)
		poles[k] = cmplx.Exp(complex(0, theta)) * complex(warped, 0)
	}
	gain := math.Pow(warped, float64(order))

	// Bilinear transform: every analog pole maps to (2fs+p)/(2fs-p) and
	// every zero at infinity maps to z = -1.
	fs2 := complex(2*fs, 0)
	den := complex(1, 0)
	for i, p := range poles {
		den *= fs2 - p
		poles[i] = (fs2 + p) / (fs2 - p)
	}
	gain /= real(den)

	for _, p := range poles {
		if cmplx.Abs(p) >= 1 {
			return Coefficients{}, fmt.Errorf("%w: pole %v outside unit circle", ErrDegenerate, p)
		}
	}

	b := binomial(order)
	for i := range b {
		b[i] *= gain
	}
	a := realPoly(poles)

	// Unit DC gain, exact up to rounding in the very small coefficients
	// of low cutoffs.
	if sb := sum(b); sb != 0 {
		k := sum(a) / sb
		for i := range b {
			b[i] *= k
		}
	}

	for _, v := range append(append([]float64{}, b...), a...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Coefficients{}, fmt.Errorf("%w: non-finite coefficient", ErrDegenerate)
		}
	}

	return Coefficients{B: b, A: a}, nil
}

// LowPass applies a zero-phase Butterworth low-pass to series.
// The filter runs forward and then backward, so the result has no phase lag
// and twice the attenuation of a single pass. Series too short for a stable
// forward-backward pass (len <= PadLen(order)) are returned unchanged.
func LowPass(series []float64, cutoffHz, sampleRateHz float64, order int) ([]float64, error) {
	if order == 0 {
		order = DefaultOrder
	}
	if !(sampleRateHz > 0) || math.IsInf(sampleRateHz, 0) {
		return nil, fmt.Errorf("%w: sample rate %g Hz", ErrInvalidCutoff, sampleRateHz)
	}
	nyquist := 0.5 * sampleRateHz
	if !(cutoffHz > 0 && cutoffHz < nyquist) {
		return nil, fmt.Errorf("%w: %g Hz with Nyquist %g Hz", ErrInvalidCutoff, cutoffHz, nyquist)
	}

	coeffs, err := Design(order, cutoffHz/nyquist)
	if err != nil {
		return nil, err
	}

	if len(series) <= PadLen(order) {
		return clone(series), nil
	}

	return FiltFilt(coeffs, series)
}

// PadLen returns the number of samples FiltFilt extends each edge by.
// Series must be longer than this to be filtered.
func PadLen(order int) int {
	return 3 * (order + 1)
}

// FiltFilt applies c forward and backward over x. The input is extended at
// both ends by odd reflection and each pass starts from the steady state of
// its first sample to suppress edge transients.
func FiltFilt(c Coefficients, x []float64) ([]float64, error) {
	padlen := PadLen(c.Order())
	n := len(x)
	if n <= padlen {
		return nil, fmt.Errorf("%w: need more than %d samples, got %d", ErrInsufficientData, padlen, n)
	}

	ext := make([]float64, n+2*padlen)
	for i := 1; i <= padlen; i++ {
		ext[padlen-i] = 2*x[0] - x[i]
		ext[padlen+n-1+i] = 2*x[n-1] - x[n-1-i]
	}
	copy(ext[padlen:], x)

	zi := SteadyState(c)
	state := scaled(zi, ext[0])
	y := Apply(c, ext, state)

	reverse(y)
	state = scaled(zi, y[0])
	y = Apply(c, y, state)
	reverse(y)

	return clone(y[padlen : padlen+n]), nil
}

// Apply runs one causal pass of c over x (direct form II transposed).
// state holds the initial delay line (len == order) and may be nil.
func Apply(c Coefficients, x []float64, state []float64) []float64 {
	order := c.Order()
	z := make([]float64, order)
	copy(z, state)

	b, a := c.B, c.A
	y := make([]float64, len(x))
	for i, xi := range x {
		yi := b[0]*xi + z[0]
		for k := 0; k < order-1; k++ {
			z[k] = b[k+1]*xi - a[k+1]*yi + z[k+1]
		}
		z[order-1] = b[order]*xi - a[order]*yi
		y[i] = yi
	}
	return y
}

// SteadyState returns the delay line a filter settles to under a constant
// unit input. Scaling it by the first sample starts a pass without a step.
func SteadyState(c Coefficients) []float64 {
	order := c.Order()
	g := c.DCGain()
	zi := make([]float64, order)
	acc := 0.0
	for k := order; k >= 1; k-- {
		acc += c.B[k] - c.A[k]*g
		zi[k-1] = acc
	}
	return zi
}

// binomial returns the coefficients of (1 + x)^n.
func binomial(n int) []float64 {
	out := make([]float64, n+1)
	out[0] = 1
	for i := 1; i <= n; i++ {
		out[i] = out[i-1] * float64(n-i+1) / float64(i)
	}
	return out
}

// realPoly expands prod(x - r) and returns the real parts of its coefficients.
func realPoly(roots []complex128) []float64 {
	coeffs := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(coeffs)+1)
		for i, c := range coeffs {
			next[i] += c
			next[i+1] -= r * c
		}
		coeffs = next
	}
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = real(c)
	}
	return out
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

func reverse(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
