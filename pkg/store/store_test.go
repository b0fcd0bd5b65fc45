package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godaq/pkg/frame"
)

func testFrame(i int) frame.Frame {
	var f frame.Frame
	for _, ch := range frame.Channels() {
		f.SetValue(ch, float64(i)*100+float64(ch))
	}
	f.HostTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Millisecond)
	return f
}

func TestStore_AppendKeepsChannelsAligned(t *testing.T) {
	s := New(0)
	const k = 250
	for i := 0; i < k; i++ {
		s.Append(testFrame(i))
	}

	assert.Equal(t, k, s.Len())
	assert.Equal(t, uint64(k), s.Appended())

	snap := s.Snapshot(0)
	require.Equal(t, k, snap.Len())
	for _, ch := range frame.Channels() {
		series := snap.Series(ch)
		require.Len(t, series, k, ch.String())
		for i, v := range series {
			require.Equal(t, float64(i)*100+float64(ch), v, "%s[%d]", ch, i)
		}
	}
	assert.Equal(t, testFrame(k-1).HostTime, snap.HostTimes()[k-1])
}

func TestStore_Series(t *testing.T) {
	s := New(0)
	assert.Empty(t, s.Series(frame.IR1, 10))

	for i := 0; i < 5; i++ {
		s.Append(testFrame(i))
	}

	tests := []struct {
		name string
		ch   frame.Channel
		n    int
		want []float64
	}{
		{"all", frame.Time, 0, []float64{0, 100, 200, 300, 400}},
		{"tail", frame.Load, 2, []float64{311, 411}},
		{"larger than history", frame.IR1, 50, []float64{1, 101, 201, 301, 401}},
		{"negative", frame.Pad, -1, []float64{9, 109, 209, 309, 409}},
		{"invalid channel", frame.Channel(99), 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Series(tt.ch, tt.n))
		})
	}
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := New(0)
	s.Append(testFrame(1))

	series := s.Series(frame.IR3, 0)
	series[0] = -1
	assert.Equal(t, 103.0, s.Series(frame.IR3, 0)[0])

	snap := s.Snapshot(0)
	snap.Series(frame.IR3)[0] = -1
	assert.Equal(t, 103.0, s.Series(frame.IR3, 0)[0])
}

func TestStore_Retention(t *testing.T) {
	s := New(3)
	assert.Equal(t, 3, s.MaxSamples())
	for i := 0; i < 10; i++ {
		s.Append(testFrame(i))
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, uint64(10), s.Appended())
	assert.Equal(t, []float64{7, 8, 9}, []float64{
		s.Series(frame.Time, 0)[0] / 100,
		s.Series(frame.Time, 0)[1] / 100,
		s.Series(frame.Time, 0)[2] / 100,
	})
	for _, ch := range frame.Channels() {
		assert.Len(t, s.Series(ch, 0), 3, ch.String())
	}
	assert.Len(t, s.Snapshot(0).HostTimes(), 3)
	assert.Equal(t, 0, New(-5).MaxSamples())
}

func TestStore_SnapshotBounded(t *testing.T) {
	s := New(0)
	for i := 0; i < 20; i++ {
		s.Append(testFrame(i))
	}

	snap := s.Snapshot(4)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, 20, snap.Total)
	assert.Equal(t, uint64(20), snap.Appended)
	assert.Equal(t, []float64{1600, 1700, 1800, 1900}, snap.Series(frame.Time))

	frames := snap.Frames()
	require.Len(t, frames, 4)
	assert.Equal(t, testFrame(19), frames[3])
}

func TestStore_LatestAndReset(t *testing.T) {
	s := New(0)
	_, ok := s.Latest()
	assert.False(t, ok)

	s.Append(testFrame(1))
	s.Append(testFrame(2))
	f, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, testFrame(2), f)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint64(0), s.Appended())
	_, ok = s.Latest()
	assert.False(t, ok)
}

// TestStore_ConcurrentReadersSeeWholeFrames appends from one goroutine while
// several readers check that every snapshot is index-aligned.
func TestStore_ConcurrentReadersSeeWholeFrames(t *testing.T) {
	s := New(500)
	done := make(chan struct{})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Snapshot(100)
				n := snap.Len()
				for _, ch := range frame.Channels() {
					if len(snap.Series(ch)) != n {
						t.Errorf("channel %s has %d values, want %d", ch, len(snap.Series(ch)), n)
						return
					}
				}
				if n > 0 {
					last := snap.Series(frame.Time)[n-1]
					if snap.Series(frame.RotorRPM)[n-1] != last+float64(frame.RotorRPM) {
						t.Errorf("torn frame at %v", last)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		s.Append(testFrame(i))
	}
	close(done)
	wg.Wait()

	assert.Equal(t, 500, s.Len())
	assert.Equal(t, uint64(5000), s.Appended())
}

func TestStore_Window(t *testing.T) {
	s := New(0)
	snap := s.Window(10, 0)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.MeanCount())
	assert.Equal(t, 0.0, snap.Mean(frame.IR1))

	for i := 0; i < 10; i++ {
		s.Append(testFrame(i))
	}

	tests := []struct {
		name       string
		tail       int
		meanWindow int
		wantLen    int
		wantCount  int
		wantMean   float64 // of Time, i*100
	}{
		{"all history", 3, 0, 3, 10, 450},
		{"last four", 3, 4, 3, 4, 750},
		{"window larger than history", 20, 50, 10, 10, 450},
		{"single", 1, 1, 1, 1, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := s.Window(tt.tail, tt.meanWindow)
			assert.Equal(t, tt.wantLen, snap.Len())
			assert.Equal(t, tt.wantCount, snap.MeanCount())
			assert.InDelta(t, tt.wantMean, snap.Mean(frame.Time), 1e-9)
			assert.InDelta(t, tt.wantMean+float64(frame.Load), snap.Mean(frame.Load), 1e-9)
		})
	}

	assert.Equal(t, 0, s.Snapshot(0).MeanCount())
	assert.Equal(t, 0.0, s.Window(1, 0).Mean(frame.Channel(-1)))
}
