package filter

import (
	"fmt"
)

// MovingAverage returns the trailing arithmetic mean of the last window
// points at every index. The first window-1 outputs average the points
// available so far, so a window at least as long as the series yields the
// running mean from the start. A window below 1 is treated as 1.
func MovingAverage(series []float64, window int) []float64 {
	if window <= 1 {
		return clone(series)
	}

	out := make([]float64, len(series))
	acc := 0.0
	for i, v := range series {
		acc += v
		if i >= window {
			acc -= series[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = acc / float64(n)
	}
	return out
}

// Mean returns the arithmetic mean of series, or 0 when it is empty.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return sum(series) / float64(len(series))
}

// Tail returns a copy of the last n elements of series. n <= 0 or n larger
// than the series returns a copy of the whole series.
func Tail(series []float64, n int) []float64 {
	if n <= 0 || n >= len(series) {
		return clone(series)
	}
	return clone(series[len(series)-n:])
}

// SampleRate estimates the sampling frequency of a monotonically increasing
// time series in seconds as the reciprocal of the mean time step.
func SampleRate(times []float64) (float64, error) {
	if len(times) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 timestamps, got %d", ErrInsufficientData, len(times))
	}
	dt := (times[len(times)-1] - times[0]) / float64(len(times)-1)
	if !(dt > 0) {
		return 0, fmt.Errorf("%w: non-increasing timestamps", ErrInsufficientData)
	}
	return 1 / dt, nil
}
