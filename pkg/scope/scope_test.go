package scope

import (
	"math"
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func TestDownsample(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		maxPoints int
		want      []float64
	}{
		{"empty", 0, 10, nil},
		{"fits", 5, 10, []float64{0, 1, 2, 3, 4}},
		{"exact", 4, 4, []float64{0, 1, 2, 3}},
		{"disabled", 3, 0, []float64{0, 1, 2}},
		{"decimated", 11, 6, []float64{0, 2, 4, 6, 8, 10}},
		{"single point keeps latest", 9, 1, []float64{8}},
		{"two points keep ends", 100, 2, []float64{0, 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Downsample(nil, ramp(tt.n), tt.maxPoints))
		})
	}
}

func TestDownsample_ReusesDestination(t *testing.T) {
	dst := make([]float64, 0, 100)
	out := Downsample(dst, ramp(1000), 50)
	require.Len(t, out, 50)
	assert.Same(t, &dst[:1][0], &out[0], "dst backing array should be reused")
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 999.0, out[49])

	in := ramp(3)
	out = Downsample(dst, in, 50)
	out[0] = 42
	assert.Equal(t, 0.0, in[0], "output must not alias input")
}

func TestAutoScale(t *testing.T) {
	b := AutoScale([]float64{1, 2, 3}, 0.1, []float64{10, 20, 30}, []float64{15, math.NaN(), 25})
	assert.Equal(t, 1.0, b.XMin)
	assert.Equal(t, 3.0, b.XMax)
	assert.InDelta(t, 8.0, b.YMin, 1e-12)
	assert.InDelta(t, 32.0, b.YMax, 1e-12)
	assert.False(t, b.Empty())

	flat := AutoScale([]float64{5}, 0, []float64{7})
	assert.Equal(t, Bounds{XMin: 5, XMax: 6, YMin: 7, YMax: 8}, flat)

	empty := AutoScale(nil, 0)
	assert.Equal(t, Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1}, empty)
}

func TestInset(t *testing.T) {
	a := Inset(fyne.NewSize(400, 300), 60, 20, 20, 40)
	assert.Equal(t, Area{X: 60, Y: 20, Width: 320, Height: 240}, a)

	tiny := Inset(fyne.NewSize(10, 10), 60, 20, 20, 40)
	assert.Zero(t, tiny.Width)
	assert.Zero(t, tiny.Height)
}

func TestProject(t *testing.T) {
	b := Bounds{XMin: 0, XMax: 10, YMin: 0, YMax: 100}
	a := Area{X: 10, Y: 20, Width: 100, Height: 50}

	pts := Project(
		[]float64{0, 5, 10, 12, 3},
		[]float64{0, 50, 100, -10, math.Inf(1)},
		b, a,
	)
	require.Len(t, pts, 4, "non-finite points are skipped")
	assert.Equal(t, fyne.NewPos(10, 70), pts[0], "origin at bottom left")
	assert.Equal(t, fyne.NewPos(60, 45), pts[1])
	assert.Equal(t, fyne.NewPos(110, 20), pts[2], "max at top right")
	assert.Equal(t, fyne.NewPos(110, 70), pts[3], "out of range is clamped")
}

func TestProject_MismatchedLengths(t *testing.T) {
	pts := Project(ramp(5), ramp(3), Bounds{XMax: 4, YMax: 4}, Area{Width: 4, Height: 4})
	assert.Len(t, pts, 3)
}
