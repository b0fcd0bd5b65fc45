package filter

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a series.
type Summary struct {
	Count  int
	Mean   float64
	Min    float64
	Max    float64
	StdDev float64 // population standard deviation
	Median float64 // empirical: the lower middle value of an even count
}

// Describe summarizes series. An empty series yields a zero Summary.
func Describe(series []float64) Summary {
	if len(series) == 0 {
		return Summary{}
	}

	mean, std := stat.PopMeanStdDev(series, nil)

	sorted := clone(series)
	sort.Float64s(sorted)

	return Summary{
		Count:  len(series),
		Mean:   mean,
		Min:    floats.Min(series),
		Max:    floats.Max(series),
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
}
