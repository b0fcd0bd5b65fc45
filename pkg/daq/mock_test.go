package daq

import (
	"bufio"
	"io"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/store"
)

func fastMockConfig() *config.MockConfig {
	return &config.MockConfig{
		SampleRate:    time.Millisecond,
		Ambient:       20,
		NoiseLevel:    0,
		BrakePeriod:   200 * time.Millisecond,
		BrakeDuration: 100 * time.Millisecond,
		MaxRPM:        1000,
	}
}

func TestMock_EmitsDecodableLines(t *testing.T) {
	m := NewMock(fastMockConfig(), 100*time.Millisecond)
	defer m.Close()

	scanner := bufio.NewScanner(m)
	prev := -1.0
	for i := 0; i < 50; i++ {
		require.True(t, scanner.Scan(), "line %d", i)
		f, err := frame.Decode(scanner.Text(), time.Now())
		require.NoError(t, err, scanner.Text())
		assert.GreaterOrEqual(t, f.RelativeTime, prev, "device clock must not go backwards")
		prev = f.RelativeTime
		for _, v := range f.IR {
			assert.GreaterOrEqual(t, v, 19.0)
		}
	}
}

func TestMock_ReadTimesOut(t *testing.T) {
	cfg := fastMockConfig()
	cfg.SampleRate = time.Hour
	m := NewMock(cfg, 5*time.Millisecond)
	defer m.Close()

	n, err := m.Read(make([]byte, 64))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestMock_Step(t *testing.T) {
	cfg := fastMockConfig()
	cfg.SampleRate = 10 * time.Millisecond
	cfg.BrakePeriod = 10 * time.Second
	cfg.BrakeDuration = 5 * time.Second
	m := &Mock{
		cfg:     *cfg,
		start:   time.Unix(0, 0),
		rng:     rand.New(rand.NewPCG(1, 2)),
		rotor:   20,
		pad:     20,
		caliper: 20,
	}

	// Spin up without braking.
	var f frame.Frame
	for i := 1; i <= 400; i++ {
		f = m.step(m.start.Add(time.Duration(i) * 10 * time.Millisecond))
	}
	assert.InDelta(t, 4.0, f.RelativeTime, 1e-9)
	assert.InDelta(t, 860, f.RotorRPM, 30)
	assert.Zero(t, f.BrakePressure)
	assert.InDelta(t, 20.0, f.TC[frame.TCPad], 0.01)

	// Brake from 5 s to 10 s heats the rotor first, then the pad, then the caliper.
	for i := 401; i <= 900; i++ {
		f = m.step(m.start.Add(time.Duration(i) * 10 * time.Millisecond))
	}
	assert.InDelta(t, 40, f.BrakePressure, 1)
	assert.Greater(t, f.IR[0], f.TC[frame.TCPad])
	assert.Greater(t, f.TC[frame.TCPad], f.TC[frame.TCCaliper])
	assert.Greater(t, f.TC[frame.TCCaliper], 20.0)
	assert.Greater(t, f.IR[7], f.IR[0], "outer track runs hotter")
}

// TestMock_GracefulShutdown tests that reads end with io.EOF after Close.
func TestMock_GracefulShutdown(t *testing.T) {
	m := NewMock(fastMockConfig(), time.Second)

	buf := make([]byte, 256)
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			n, err := m.Read(buf)
			if err != nil {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			received += n
			if received >= 3*64 {
				m.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Mock did not stop within timeout")
	}
	assert.GreaterOrEqual(t, received, 3*64)
	assert.NoError(t, m.Close())
}

func TestService_WithMockBoard(t *testing.T) {
	st := store.New(0)
	cfg := fastMockConfig()
	svc := New(st, Options{Opener: DefaultOpener(cfg), ReadTimeout: 50 * time.Millisecond})

	require.NoError(t, svc.Start(MockPort))
	require.Eventually(t, func() bool { return st.Len() >= 100 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Stop())

	assert.Zero(t, svc.Stats().DecodeErrors)
	n := st.Len()
	for _, ch := range frame.Channels() {
		assert.Len(t, st.Series(ch, 0), n, ch.String())
	}
}
