// Package aggregate turns the stored history into display values: the
// latest reading, the bounded tail, its zero-phase low-pass and a windowed
// average per channel.
//
// The Aggregator never calls back into presentation. Callers either compute
// on demand or run it on a period and poll Latest.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/filter"
	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/metrics"
	"github.com/itohio/godaq/pkg/store"
)

const (
	// DefaultPeriod is the recompute period of Run.
	DefaultPeriod = time.Second
	// DefaultMaxPoints bounds the tail shown and filtered.
	DefaultMaxPoints = 10000
	// DefaultCutoffHz is the low-pass cutoff for live display.
	DefaultCutoffHz = 1.0
)

// Settings control one aggregation pass.
type Settings struct {
	Units         frame.Unit
	MaxPoints     int     // tail length shown and filtered
	AverageWindow int     // samples averaged, 0 = whole retained history
	CutoffHz      float64 // low-pass cutoff
	Order         int     // Butterworth order, 0 = filter.DefaultOrder
	SampleRateHz  float64 // 0 = estimate from the device clock of the tail
}

// DefaultSettings returns the live display defaults.
func DefaultSettings() Settings {
	return Settings{
		Units:     frame.Celsius,
		MaxPoints: DefaultMaxPoints,
		CutoffHz:  DefaultCutoffHz,
		Order:     filter.DefaultOrder,
	}
}

func (s Settings) normalized() Settings {
	if s.MaxPoints <= 0 {
		s.MaxPoints = DefaultMaxPoints
	}
	if s.AverageWindow < 0 {
		s.AverageWindow = 0
	}
	if s.Order == 0 {
		s.Order = filter.DefaultOrder
	}
	return s
}

// Channel holds the display values of one channel.
type Channel struct {
	Channel  frame.Channel
	Latest   float64
	Series   []float64 // bounded tail in display units
	Filtered []float64 // zero-phase low-pass of Series, or Series itself when Err != nil
	Average  float64
	Err      error // why filtering fell back to raw data
}

// Snapshot is the result of one aggregation pass.
type Snapshot struct {
	At           time.Time
	Settings     Settings
	SampleRateHz float64 // rate the filter ran at, 0 when unknown
	Frames       int     // frames retained in the store
	Appended     uint64  // frames appended to the store
	Channels     [frame.NumChannels]Channel
}

// Channel returns the values of ch.
func (s *Snapshot) Channel(ch frame.Channel) Channel {
	if !ch.Valid() {
		return Channel{Channel: ch}
	}
	return s.Channels[ch]
}

// Aggregator computes display values from a store.
type Aggregator struct {
	store   *store.Store
	metrics *metrics.Metrics

	mu      sync.RWMutex
	latest  Snapshot
	ready   bool
	lastErr [frame.NumChannels]string
}

// New creates an aggregator reading from st. m may be nil.
func New(st *store.Store, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   st,
		metrics: m,
	}
}

// Compute runs one aggregation pass over a single consistent store read.
// A channel whose filter fails keeps its raw tail in Filtered and reports the
// reason in Err; other channels are unaffected.
func (a *Aggregator) Compute(settings Settings) Snapshot {
	start := time.Now()
	s := settings.normalized()

	view := a.store.Window(s.MaxPoints, s.AverageWindow)
	fs, fsErr := sampleRate(s, view)

	snap := Snapshot{
		At:       start,
		Settings: s,
		Frames:   view.Total,
		Appended: view.Appended,
	}
	if fsErr == nil {
		snap.SampleRateHz = fs
	}

	for _, ch := range frame.Channels() {
		series := frame.ConvertSeries(ch, view.Series(ch), s.Units)
		c := Channel{
			Channel: ch,
			Series:  series,
			Average: frame.Convert(ch, view.Mean(ch), s.Units),
		}
		if n := len(series); n > 0 {
			c.Latest = series[n-1]
		}
		if ch == frame.Time {
			c.Filtered = clone(series)
		} else {
			c.Filtered, c.Err = a.lowPass(ch, series, s, fs, fsErr)
		}
		snap.Channels[ch] = c
	}

	a.metrics.AggregateDuration(time.Since(start))
	a.metrics.StoreFrames(view.Total)

	return snap
}

// Series returns the last maxPoints values of ch in units.
func (a *Aggregator) Series(ch frame.Channel, maxPoints int, units frame.Unit) []float64 {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return frame.ConvertSeries(ch, a.store.Series(ch, maxPoints), units)
}

// Filtered returns the zero-phase low-pass of the last maxPoints values of ch.
// s supplies units, order and sample rate. On failure the raw tail is
// returned together with the error.
func (a *Aggregator) Filtered(ch frame.Channel, maxPoints int, cutoffHz float64, s Settings) ([]float64, error) {
	s.MaxPoints = maxPoints
	s.CutoffHz = cutoffHz
	s = s.normalized()

	if !ch.Valid() {
		return nil, fmt.Errorf("invalid channel %d", int(ch))
	}

	view := a.store.Snapshot(s.MaxPoints)
	series := frame.ConvertSeries(ch, view.Series(ch), s.Units)
	if ch == frame.Time {
		return series, nil
	}
	fs, fsErr := sampleRate(s, view)
	return a.lowPass(ch, series, s, fs, fsErr)
}

// Average returns the mean of the last window values of ch, or of the whole
// retained history when window <= 0.
func (a *Aggregator) Average(ch frame.Channel, window int, units frame.Unit) float64 {
	view := a.store.Window(1, window)
	return frame.Convert(ch, view.Mean(ch), units)
}

// Run recomputes a snapshot every period until ctx is done. settings is
// called before each pass so changes apply on the next tick.
func (a *Aggregator) Run(ctx context.Context, period time.Duration, settings func() Settings) {
	if period <= 0 {
		period = DefaultPeriod
	}
	if settings == nil {
		settings = DefaultSettings
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		a.publish(a.Compute(settings()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Latest returns the snapshot of the last Run pass.
func (a *Aggregator) Latest() (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.ready
}

func (a *Aggregator) publish(s Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latest = s
	a.ready = true
}

// lowPass filters series, falling back to a copy of it on failure. Series
// too short to filter are returned unfiltered without an error.
func (a *Aggregator) lowPass(ch frame.Channel, series []float64, s Settings, fs float64, fsErr error) ([]float64, error) {
	if len(series) <= filter.PadLen(s.Order) {
		a.clearFallback(ch)
		return clone(series), nil
	}

	var (
		out []float64
		err error
	)
	if fsErr != nil {
		err = fsErr
	} else {
		out, err = filter.LowPass(series, s.CutoffHz, fs, s.Order)
	}
	if err != nil {
		a.fallback(ch, err)
		return clone(series), err
	}

	a.clearFallback(ch)
	return out, nil
}

// fallback counts a filter failure and logs it when the reason changes.
func (a *Aggregator) fallback(ch frame.Channel, err error) {
	a.metrics.FilterFallback(ch.String())

	a.mu.Lock()
	changed := a.lastErr[ch] != err.Error()
	a.lastErr[ch] = err.Error()
	a.mu.Unlock()

	if changed {
		log.Printf("Filter failed on %s, showing raw data: %v", ch, err)
	}
}

func (a *Aggregator) clearFallback(ch frame.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr[ch] = ""
}

// sampleRate returns the configured rate or estimates it from the device
// clock of the snapshot.
func sampleRate(s Settings, view store.Snapshot) (float64, error) {
	if s.SampleRateHz > 0 {
		return s.SampleRateHz, nil
	}
	fs, err := filter.SampleRate(view.Series(frame.Time))
	if err != nil {
		return 0, fmt.Errorf("estimate sample rate: %w", err)
	}
	return fs, nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
