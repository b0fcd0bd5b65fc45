package scope

// Downsample decimates values to at most maxPoints for display.
// It reuses dst when it has enough capacity and returns the result. Series
// that already fit are copied as is. maxPoints <= 0 disables decimation.
func Downsample(dst []float64, values []float64, maxPoints int) []float64 {
	if maxPoints <= 0 || len(values) <= maxPoints {
		if cap(dst) >= len(values) {
			dst = dst[:len(values)]
		} else {
			dst = make([]float64, len(values))
		}
		copy(dst, values)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]float64, 0, maxPoints)
	}

	if maxPoints == 1 {
		return append(dst, values[len(values)-1])
	}

	// Both ends are kept so the trace ends at the latest reading.
	step := float64(len(values)-1) / float64(maxPoints-1)
	for i := range maxPoints {
		idx := int(float64(i)*step + 0.5)
		if idx >= len(values) {
			idx = len(values) - 1
		}
		dst = append(dst, values[idx])
	}

	return dst
}
