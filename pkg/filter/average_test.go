package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverage(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		window int
		want   []float64
	}{
		{"empty", []float64{}, 5, []float64{}},
		{"window one is identity", []float64{1, 5, 2}, 1, []float64{1, 5, 2}},
		{"window zero is identity", []float64{1, 5, 2}, 0, []float64{1, 5, 2}},
		{"negative window is identity", []float64{1, 5, 2}, -3, []float64{1, 5, 2}},
		{"window two", []float64{2, 4, 6, 8}, 2, []float64{2, 3, 5, 7}},
		{"window three", []float64{3, 3, 6, 9, 0}, 3, []float64{3, 3, 4, 6, 5}},
		{"window covers series", []float64{1, 2, 3, 4}, 10, []float64{1, 1.5, 2, 2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MovingAverage(tt.series, tt.window)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12, "index %d", i)
			}
		})
	}
}

func TestMovingAverage_DoesNotAlias(t *testing.T) {
	in := []float64{1, 2, 3}
	out := MovingAverage(in, 1)
	out[0] = 99
	assert.Equal(t, 1.0, in[0])
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.5, Mean([]float64{1, 2, 3, 4}))
	assert.Equal(t, -1.0, Mean([]float64{-1}))
}

func TestTail(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, []float64{4, 5}, Tail(s, 2))
	assert.Equal(t, s, Tail(s, 0))
	assert.Equal(t, s, Tail(s, 10))
	assert.Equal(t, s, Tail(s, -1))

	out := Tail(s, 2)
	out[0] = 0
	assert.Equal(t, 4.0, s[3])
}

func TestSampleRate(t *testing.T) {
	times := make([]float64, 101)
	for i := range times {
		times[i] = 10 + float64(i)*0.01
	}
	fs, err := SampleRate(times)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, fs, 1e-9)

	_, err = SampleRate([]float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = SampleRate([]float64{1, 1, 1})
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = SampleRate([]float64{2, 1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, Summary{}, Describe(nil))

	s := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.0, s.StdDev, 1e-12)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 4.0, s.Median, "lower middle of an even count")

	s = Describe([]float64{3, 1, 2})
	assert.Equal(t, 2.0, s.Median)
	assert.False(t, math.IsNaN(s.StdDev))
}
