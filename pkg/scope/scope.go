// Package scope provides the trace widget of the GUI: one channel drawn as
// its raw series with the low-passed series on top.
package scope

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// DefaultMaxDisplayPoints limits the points drawn per trace.
const DefaultMaxDisplayPoints = 1000

// Trace is the data shown by the widget.
type Trace struct {
	Label    string    // channel name
	Unit     string    // unit suffix of the Y axis
	Time     []float64 // device time in seconds
	Raw      []float64
	Filtered []float64 // may be nil
	Average  float64
}

// ScopeWidget is a Fyne widget that draws a channel oscilloscope-style.
type ScopeWidget struct {
	widget.BaseWidget

	mu       sync.RWMutex
	label    string
	unit     string
	average  float64
	time     []float64
	raw      []float64
	filtered []float64
	bounds   Bounds

	maxDisplayPoints int
}

// New creates an empty scope. maxDisplayPoints <= 0 uses
// DefaultMaxDisplayPoints.
func New(maxDisplayPoints int) *ScopeWidget {
	if maxDisplayPoints <= 0 {
		maxDisplayPoints = DefaultMaxDisplayPoints
	}
	s := &ScopeWidget{
		maxDisplayPoints: maxDisplayPoints,
		bounds:           AutoScale(nil, 0),
	}
	s.ExtendBaseWidget(s)
	return s
}

// UpdateData replaces the displayed trace. Call it on the Fyne thread
// (fyne.Do) when updating from a goroutine.
func (s *ScopeWidget) UpdateData(t Trace) {
	s.mu.Lock()

	// Decimate into the existing buffers
	s.time = Downsample(s.time, t.Time, s.maxDisplayPoints)
	s.raw = Downsample(s.raw, t.Raw, s.maxDisplayPoints)
	if len(t.Filtered) == len(t.Raw) {
		s.filtered = Downsample(s.filtered, t.Filtered, s.maxDisplayPoints)
	} else {
		s.filtered = s.filtered[:0]
	}
	s.label = t.Label
	s.unit = t.Unit
	s.average = t.Average
	s.bounds = AutoScale(s.time, 0.1, s.raw, s.filtered)

	s.mu.Unlock()

	s.Refresh()
}

// Bounds returns the current axis range.
func (s *ScopeWidget) Bounds() Bounds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
