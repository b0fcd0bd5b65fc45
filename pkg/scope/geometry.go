package scope

import (
	"math"

	"fyne.io/fyne/v2"
	"github.com/chewxy/math32"
)

// Bounds is the data range mapped onto the plot area.
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Empty reports whether no finite point contributed to b.
func (b Bounds) Empty() bool {
	return b.XMin > b.XMax || b.YMin > b.YMax
}

// AutoScale returns the range covering every finite point of the traces,
// with margin (a fraction of the span) added above and below. x is shared
// by all traces. A flat trace gets a unit span; an empty input gets [0, 1].
func AutoScale(x []float64, margin float64, traces ...[]float64) Bounds {
	b := Bounds{
		XMin: math.Inf(1), XMax: math.Inf(-1),
		YMin: math.Inf(1), YMax: math.Inf(-1),
	}
	for _, v := range x {
		if isFinite(v) {
			b.XMin = math.Min(b.XMin, v)
			b.XMax = math.Max(b.XMax, v)
		}
	}
	for _, trace := range traces {
		for _, v := range trace {
			if isFinite(v) {
				b.YMin = math.Min(b.YMin, v)
				b.YMax = math.Max(b.YMax, v)
			}
		}
	}

	if b.XMin > b.XMax {
		b.XMin, b.XMax = 0, 1
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = 0, 1
	}
	if b.XMax == b.XMin {
		b.XMax = b.XMin + 1
	}

	if b.YMax == b.YMin {
		b.YMax = b.YMin + 1
	}

	span := b.YMax - b.YMin
	b.YMin -= span * margin
	b.YMax += span * margin
	return b
}

// Area is the plot rectangle in widget coordinates.
type Area struct {
	X, Y          float32
	Width, Height float32
}

// Inset returns the area left inside size after the margins.
func Inset(size fyne.Size, left, top, right, bottom float32) Area {
	return Area{
		X:      left,
		Y:      top,
		Width:  math32.Max(size.Width-left-right, 0),
		Height: math32.Max(size.Height-top-bottom, 0),
	}
}

// Project maps (x[i], y[i]) into a and returns one position per finite pair.
// Points outside b are clamped to the area edges.
func Project(x, y []float64, b Bounds, a Area) []fyne.Position {
	n := min(len(x), len(y))
	out := make([]fyne.Position, 0, n)
	for i := range n {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			continue
		}
		fx := clamp01(float32((x[i] - b.XMin) / (b.XMax - b.XMin)))
		fy := clamp01(float32((y[i] - b.YMin) / (b.YMax - b.YMin)))
		out = append(out, fyne.NewPos(
			a.X+fx*a.Width,
			a.Y+a.Height-fy*a.Height,
		))
	}
	return out
}

func clamp01(v float32) float32 {
	return math32.Min(math32.Max(v, 0), 1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
