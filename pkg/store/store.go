// Package store keeps the in-memory history of acquired frames as one
// index-aligned sequence per channel.
//
// A Store has a single writer (the ingestion loop) and any number of readers.
// Every read returns a copy taken under the read lock, so readers never see a
// frame that is appended to some channels and not to others.
package store

import (
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/frame"
)

// BytesPerFrame is the approximate memory held per stored frame: one float64
// per channel plus the host timestamp.
const BytesPerFrame = 8*frame.NumChannels + 24

// Store holds per-channel time series.
//
// With maxSamples == 0 the history grows for as long as the session runs.
// With maxSamples > 0 the oldest frames are evicted so at most maxSamples
// remain.
type Store struct {
	mu sync.RWMutex

	maxSamples int
	channels   [frame.NumChannels][]float64
	hostTime   []time.Time
	appended   uint64
}

// New creates an empty store. maxSamples <= 0 means unbounded retention.
func New(maxSamples int) *Store {
	if maxSamples < 0 {
		maxSamples = 0
	}
	return &Store{maxSamples: maxSamples}
}

// MaxSamples returns the retention bound (0 = unbounded).
func (s *Store) MaxSamples() int {
	return s.maxSamples
}

// Append adds one frame to every channel.
func (s *Store) Append(f frame.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range frame.Channels() {
		s.channels[ch] = append(s.channels[ch], f.Value(ch))
	}
	s.hostTime = append(s.hostTime, f.HostTime)
	s.appended++

	if s.maxSamples > 0 && len(s.hostTime) > s.maxSamples {
		excess := len(s.hostTime) - s.maxSamples
		for ch := range s.channels {
			s.channels[ch] = s.channels[ch][excess:]
		}
		s.hostTime = s.hostTime[excess:]
	}
}

// Len returns the number of retained frames.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hostTime)
}

// Appended returns the number of frames appended since creation or the last
// Reset, including evicted ones.
func (s *Store) Appended() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appended
}

// Reset drops all history.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.channels {
		s.channels[ch] = nil
	}
	s.hostTime = nil
	s.appended = 0
}

// Series returns a copy of the last n values of ch. n <= 0 returns the whole
// retained history. Unknown channels yield nil.
func (s *Store) Series(ch frame.Channel, n int) []float64 {
	if !ch.Valid() {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.channels[ch], n)
}

// Latest returns the most recent frame.
func (s *Store) Latest() (frame.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.hostTime)
	if n == 0 {
		return frame.Frame{}, false
	}

	f := frame.Frame{HostTime: s.hostTime[n-1]}
	for _, ch := range frame.Channels() {
		f.SetValue(ch, s.channels[ch][n-1])
	}
	return f, true
}

// Snapshot copies the last n frames of every channel in one read. n <= 0
// copies the whole retained history.
func (s *Store) Snapshot(n int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(n)
}

// Window is Snapshot(tail) that also averages every channel over the last
// meanWindow frames under the same lock. meanWindow <= 0 averages the whole
// retained history without copying it.
func (s *Store) Window(tail, meanWindow int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot(tail)
	n := len(s.hostTime)
	if meanWindow <= 0 || meanWindow > n {
		meanWindow = n
	}
	snap.meanCount = meanWindow
	if meanWindow == 0 {
		return snap
	}
	for ch := range s.channels {
		acc := 0.0
		for _, v := range s.channels[ch][n-meanWindow:] {
			acc += v
		}
		snap.means[ch] = acc / float64(meanWindow)
	}
	return snap
}

func (s *Store) snapshot(n int) Snapshot {
	snap := Snapshot{
		Total:    len(s.hostTime),
		Appended: s.appended,
	}
	for ch := range s.channels {
		snap.channels[ch] = tail(s.channels[ch], n)
	}
	if n <= 0 || n >= len(s.hostTime) {
		snap.hostTime = append([]time.Time(nil), s.hostTime...)
	} else {
		snap.hostTime = append([]time.Time(nil), s.hostTime[len(s.hostTime)-n:]...)
	}
	return snap
}

// Snapshot is a consistent copy of the store's tail.
type Snapshot struct {
	// Total is the number of frames retained by the store at snapshot time,
	// which may exceed Len when the snapshot was bounded.
	Total int
	// Appended is the store's append counter at snapshot time.
	Appended uint64

	channels  [frame.NumChannels][]float64
	hostTime  []time.Time
	means     [frame.NumChannels]float64
	meanCount int
}

// Len returns the number of frames in the snapshot.
func (s Snapshot) Len() int {
	return len(s.hostTime)
}

// Series returns the snapshot's values for ch. The slice is owned by the
// snapshot; callers that modify it should copy it first.
func (s Snapshot) Series(ch frame.Channel) []float64 {
	if !ch.Valid() {
		return nil
	}
	return s.channels[ch]
}

// Mean returns the average of ch computed by Store.Window, or 0 when the
// snapshot carries no averages.
func (s Snapshot) Mean(ch frame.Channel) float64 {
	if !ch.Valid() {
		return 0
	}
	return s.means[ch]
}

// MeanCount returns the number of frames behind Mean.
func (s Snapshot) MeanCount() int {
	return s.meanCount
}

// HostTimes returns the receipt timestamps of the snapshot's frames.
func (s Snapshot) HostTimes() []time.Time {
	return s.hostTime
}

// Frames rebuilds the snapshot's frames in order.
func (s Snapshot) Frames() []frame.Frame {
	out := make([]frame.Frame, s.Len())
	for i := range out {
		out[i].HostTime = s.hostTime[i]
		for _, ch := range frame.Channels() {
			out[i].SetValue(ch, s.channels[ch][i])
		}
	}
	return out
}

func tail(v []float64, n int) []float64 {
	if n <= 0 || n >= len(v) {
		n = len(v)
	}
	out := make([]float64, n)
	copy(out, v[len(v)-n:])
	return out
}
