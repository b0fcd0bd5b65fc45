package daq

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/frame"
)

// mockQueueSize is the number of encoded lines buffered between the
// generator and Read.
const mockQueueSize = 1000

// Ensure Mock implements Conn.
var _ Conn = (*Mock)(nil)

// Mock simulates a brake dyno board. It emits wire lines at the configured
// rate: the rotor spins up, the brake is applied periodically, and the rotor,
// pad and caliper heat and cool with increasing thermal lag.
type Mock struct {
	cfg         config.MockConfig
	readTimeout time.Duration

	lines   chan []byte
	pending []byte

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// Simulation state, owned by the generator goroutine.
	start    time.Time
	rng      *rand.Rand
	rpm      float64
	pressure float64
	rotor    float64 // rotor surface temperature (°C)
	pad      float64
	caliper  float64
}

// NewMock starts a simulated board. A nil cfg uses the default mock section.
func NewMock(cfg *config.MockConfig, readTimeout time.Duration) *Mock {
	def := config.Default().Mock
	if cfg == nil {
		cfg = &def
	}
	c := *cfg
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mock{
		cfg:         c,
		readTimeout: readTimeout,
		lines:       make(chan []byte, mockQueueSize),
		ctx:         ctx,
		cancel:      cancel,
		start:       time.Now(),
		rng:         rand.New(rand.NewPCG(1, 2)),
		rotor:       c.Ambient,
		pad:         c.Ambient,
		caliper:     c.Ambient,
	}

	go m.generateLines()

	return m
}

// Read returns buffered wire data, waiting up to the read timeout for the
// next line. It returns (0, nil) on timeout and io.EOF once closed.
func (m *Mock) Read(p []byte) (int, error) {
	if len(m.pending) == 0 {
		timer := time.NewTimer(m.readTimeout)
		defer timer.Stop()

		select {
		case <-m.ctx.Done():
			return 0, io.EOF
		case line := <-m.lines:
			m.pending = line
		case <-timer.C:
			return 0, nil
		}
	}

	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

// Close stops the simulated board.
func (m *Mock) Close() error {
	m.once.Do(m.cancel)
	return nil
}

// generateLines generates simulated lines.
func (m *Mock) generateLines() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			line := []byte(frame.Encode(m.step(now)) + "\n")
			select {
			case m.lines <- line:
			case <-m.ctx.Done():
				return
			default:
				// Queue full, the reader is not keeping up
			}
		}
	}
}

// step advances the simulation by one sample period.
func (m *Mock) step(now time.Time) frame.Frame {
	elapsed := now.Sub(m.start)
	dt := m.cfg.SampleRate.Seconds()

	braking := false
	if m.cfg.BrakePeriod > 0 {
		phase := elapsed % m.cfg.BrakePeriod
		braking = phase >= m.cfg.BrakePeriod-m.cfg.BrakeDuration
	}

	// The drive holds speed; braking drags it down by a tenth.
	targetRPM := m.cfg.MaxRPM
	targetPressure := 0.0
	if braking {
		targetRPM *= 0.9
		targetPressure = 40 // bar
	}
	m.rpm = lag(m.rpm, targetRPM, dt, 2.0)
	m.pressure = lag(m.pressure, targetPressure, dt, 0.2)

	// Friction heat scales with clamp pressure and sliding speed.
	heat := 0.0
	if m.cfg.MaxRPM > 0 {
		heat = (m.pressure / 40) * (m.rpm / m.cfg.MaxRPM)
	}
	rotorTau := 40.0
	if braking {
		rotorTau = 4.0
	}
	m.rotor = lag(m.rotor, m.cfg.Ambient+450*heat, dt, rotorTau)
	m.pad = lag(m.pad, m.rotor, dt, 6.0)
	m.caliper = lag(m.caliper, m.pad, dt, 20.0)

	f := frame.Frame{
		RelativeTime:  math.Round(elapsed.Seconds()*1000) / 1000,
		Load:          round2(m.pressure*2.5 + m.noise()),
		BrakePressure: round2(m.pressure + m.noise()*0.1),
		RotorRPM:      round2(m.rpm + m.noise()*5),
	}
	// IR sensors look at increasing radii; the outer track runs hotter.
	for k := range f.IR {
		gain := 0.85 + 0.04*float64(k)
		f.IR[k] = round2(m.cfg.Ambient + (m.rotor-m.cfg.Ambient)*gain + m.noise())
	}
	f.TC[frame.TCPad] = round2(m.pad + m.noise()*0.5)
	f.TC[frame.TCCaliper] = round2(m.caliper + m.noise()*0.5)

	return f
}

func (m *Mock) noise() float64 {
	return m.rng.NormFloat64() * m.cfg.NoiseLevel
}

// lag moves v toward target with a first-order time constant tau (seconds).
func lag(v, target, dt, tau float64) float64 {
	alpha := dt / tau
	if alpha > 1 {
		alpha = 1
	}
	return v + alpha*(target-v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
