package scope

import (
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

var (
	gridColor     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	rawColor      = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	filteredColor = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	titleColor    = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

const (
	hLines = 8
	vLines = 10
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	label := r.scope.label
	unit := r.scope.unit
	average := r.scope.average
	b := r.scope.bounds
	var raw, filtered []fyne.Position
	size := r.scope.Size()
	area := Inset(size, 60, 20, 20, 40)
	if len(r.scope.raw) > 1 {
		raw = Project(r.scope.time, r.scope.raw, b, area)
	}
	if len(r.scope.filtered) > 1 {
		filtered = Project(r.scope.time, r.scope.filtered, b, area)
	}
	r.scope.mu.RUnlock()

	r.objects = []fyne.CanvasObject{r.bg}
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.drawGrid(area, b, unit)
	r.drawPolyline(raw, rawColor, 1)
	r.drawPolyline(filtered, filteredColor, 2.5)

	if label != "" {
		title := canvas.NewText(fmt.Sprintf("%s  avg %s%s", label, formatValue(average), unit), titleColor)
		title.TextSize = 11
		title.Move(fyne.NewPos(area.X+10, area.Y+4))
		r.objects = append(r.objects, title)
	}
}

// drawGrid draws the oscilloscope-style grid with axis labels.
func (r *scopeRenderer) drawGrid(a Area, b Bounds, unit string) {
	for i := range hLines + 1 {
		y := a.Y + float32(i)*a.Height/hLines
		r.addLine(fyne.NewPos(a.X, y), fyne.NewPos(a.X+a.Width, y), gridColor, 1)

		value := b.YMax - float64(i)*(b.YMax-b.YMin)/hLines
		text := canvas.NewText(formatValue(value)+unit, labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(a.X-5, y-6))
		r.objects = append(r.objects, text)
	}

	for i := range vLines + 1 {
		x := a.X + float32(i)*a.Width/vLines
		r.addLine(fyne.NewPos(x, a.Y), fyne.NewPos(x, a.Y+a.Height), gridColor, 1)

		seconds := float64(i) * (b.XMax - b.XMin) / vLines
		text := canvas.NewText(formatSeconds(seconds), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, a.Y+a.Height+5))
		r.objects = append(r.objects, text)
	}
}

func (r *scopeRenderer) drawPolyline(points []fyne.Position, c color.Color, width float32) {
	for i := range len(points) - 1 {
		r.addLine(points[i], points[i+1], c, width)
	}
}

func (r *scopeRenderer) addLine(p1, p2 fyne.Position, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = p1
	line.Position2 = p2
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatSeconds(s float64) string {
	if s < 1 {
		return strconv.FormatFloat(s, 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(s, 'f', 1, 64) + "s"
}
