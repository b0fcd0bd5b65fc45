package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/godaq/pkg/frame"
)

const wantHeader = "Time,IR1,IR2,IR3,IR4,IR5,IR6,IR7,IR8,PAD,Caliper,Load,Brake_Pressure,Rotor_RPM,Laptop_Time"

func sampleFrame(i int) frame.Frame {
	f := frame.Frame{
		RelativeTime:  12.345 + float64(i)*0.01,
		HostTime:      time.Date(2024, 3, 9, 14, 5, 7, 89*int(time.Millisecond), time.Local).Add(time.Duration(i) * 10 * time.Millisecond),
		Load:          112.5 + float64(i),
		BrakePressure: 3.25,
		RotorRPM:      850,
	}
	for k := range f.IR {
		f.IR[k] = 25.1 + float64(k)/10 + float64(i)
	}
	f.TC[frame.TCPad] = 30.5
	f.TC[frame.TCCaliper] = -2.125
	return f
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	assert.Equal(t, "data_20240309_14_05_07.csv", FileName(now))
}

func TestNumberedFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	assert.Equal(t, "data_20240309_14_05_07.csv", NumberedFileName(now, 0))
	assert.Equal(t, "data_20240309_14_05_07_1.csv", NumberedFileName(now, 1))
	assert.Equal(t, "data_20240309_14_05_07_12.csv", NumberedFileName(now, 12))
}

func TestHostTime(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 8, 7, 6*int(time.Millisecond)+999, time.Local)
	assert.Equal(t, "09:08:07:006", FormatHostTime(ts))

	parsed, err := ParseHostTime("09:08:07:006")
	require.NoError(t, err)
	assert.Equal(t, "09:08:07:006", FormatHostTime(parsed))

	for _, bad := range []string{"", "09:08:07", "09:08:07:abc", "9-8-7:001", "09:08:07:1000"} {
		_, err := ParseHostTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestSink_OpenWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewSink(false)
	require.NoError(t, s.Open(path))
	defer s.Close()

	assert.True(t, s.IsOpen())
	assert.Equal(t, path, s.Path())

	// Header is on disk before any row is written.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, wantHeader+"\n", string(data))
}

func TestSink_OpenTwiceFails(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(false)
	require.NoError(t, s.Open(filepath.Join(dir, "a.csv")))

	err := s.Open(filepath.Join(dir, "b.csv"))
	assert.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, filepath.Join(dir, "a.csv"), s.Path())
	_, statErr := os.Stat(filepath.Join(dir, "b.csv"))
	assert.True(t, os.IsNotExist(statErr), "second open must not create a file")

	require.NoError(t, s.Close())
	require.NoError(t, s.Open(filepath.Join(dir, "b.csv")))
	require.NoError(t, s.Close())
}

func TestSink_OpenExistingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("keep\n"), 0o644))

	s := NewSink(false)
	err := s.Open(path)
	assert.ErrorIs(t, err, os.ErrExist)
	assert.False(t, s.IsOpen())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
}

func TestSink_WriteWhileClosed(t *testing.T) {
	s := NewSink(false)
	assert.ErrorIs(t, s.Write(sampleFrame(0)), ErrNotOpen)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestSink_OpenBadPath(t *testing.T) {
	s := NewSink(false)
	err := s.Open(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
	assert.False(t, s.IsOpen())
}

func TestSink_EveryRowIsFlushed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewSink(true)
	require.NoError(t, s.Open(path))
	defer s.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Write(sampleFrame(i)))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		assert.Len(t, lines, i+2, "row %d must be on disk before close", i)
	}
	assert.Equal(t, uint64(3), s.Rows())
}

func TestSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewSink(false)
	require.NoError(t, s.Open(path))

	const n = 50
	want := make([]frame.Frame, n)
	for i := range want {
		want[i] = sampleFrame(i)
		require.NoError(t, s.Write(want[i]))
	}
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	table, err := ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, strings.Split(wantHeader, ",")[:frame.NumChannels], table.Names)
	require.Equal(t, n, table.Len())

	got, err := table.Frames()
	require.NoError(t, err)
	for i := range want {
		for _, ch := range frame.Channels() {
			assert.InDelta(t, want[i].Value(ch), got[i].Value(ch), 1e-12, "row %d %s", i, ch)
		}
		assert.Equal(t, FormatHostTime(want[i].HostTime), FormatHostTime(got[i].HostTime))
	}
}

func TestReadAll_Errors(t *testing.T) {
	_, err := ReadAll(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ReadAll(strings.NewReader("Time,IR1\n1,abc\n"))
	assert.ErrorContains(t, err, `column "IR1"`)

	_, err = ReadAll(strings.NewReader("Time,IR1\n1,2,3\n"))
	assert.Error(t, err)
}

func TestTable_FramesMissingColumn(t *testing.T) {
	table, err := ReadAll(strings.NewReader("Time,IR1\n1,2\n"))
	require.NoError(t, err)
	_, err = table.Frames()
	assert.ErrorContains(t, err, "IR2")
}

func TestWriteTable(t *testing.T) {
	table, err := ReadAll(strings.NewReader("Time,ir1,Laptop_Time\n1.5,20,10:00:00:001\n2.5,21,10:00:00:011\n"))
	require.NoError(t, err)

	col, ok := table.Column("IR1")
	require.True(t, ok)
	assert.Equal(t, []float64{20, 21}, col)

	require.NoError(t, table.SetColumn("Time", []float64{0, 1}))
	require.NoError(t, table.SetColumn("IR1_filtered", []float64{20.5, 20.75}))
	assert.Error(t, table.SetColumn("short", []float64{1}))

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table))
	assert.Equal(t,
		"Time,ir1,IR1_filtered,Laptop_Time\n0,20,20.5,10:00:00:001\n1,21,20.75,10:00:00:011\n",
		buf.String())
}
