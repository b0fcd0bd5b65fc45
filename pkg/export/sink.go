// Package export streams acquired frames to append-only CSV files and reads
// such files back for offline processing.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itohio/godaq/pkg/frame"
)

// HostTimeColumn is the header of the receipt-time column.
const HostTimeColumn = "Laptop_Time"

// fileNameLayout yields data_YYYYMMDD_HH_MM_SS.csv.
const fileNameLayout = "data_20060102_15_04_05.csv"

var (
	// ErrAlreadyOpen is returned by Open while a file is open.
	ErrAlreadyOpen = errors.New("export already open")
	// ErrNotOpen is returned by Write and StopExport when nothing is open.
	ErrNotOpen = errors.New("export not open")
)

// FileName returns the export file name for a session started at now.
func FileName(now time.Time) string {
	return now.Format(fileNameLayout)
}

// NumberedFileName returns FileName(now) with a _n suffix before the
// extension. n == 0 yields FileName(now).
func NumberedFileName(now time.Time, n int) string {
	name := FileName(now)
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d.csv", strings.TrimSuffix(name, ".csv"), n)
}

// Header returns the export header row.
func Header() []string {
	out := make([]string, 0, frame.NumChannels+1)
	for _, ch := range frame.Channels() {
		out = append(out, ch.String())
	}
	return append(out, HostTimeColumn)
}

// FormatHostTime renders t as HH:MM:SS:mmm.
func FormatHostTime(t time.Time) string {
	return fmt.Sprintf("%s:%03d", t.Format("15:04:05"), t.Nanosecond()/int(time.Millisecond))
}

// ParseHostTime parses HH:MM:SS:mmm into a time of day on the zero date.
func ParseHostTime(s string) (time.Time, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return time.Time{}, fmt.Errorf("invalid host time %q", s)
	}
	clock, err := time.Parse("15:04:05", s[:i])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid host time %q: %w", s, err)
	}
	ms, err := strconv.Atoi(s[i+1:])
	if err != nil || ms < 0 || ms > 999 {
		return time.Time{}, fmt.Errorf("invalid host time milliseconds %q", s)
	}
	return clock.Add(time.Duration(ms) * time.Millisecond), nil
}

// Record renders f as one export row.
func Record(f frame.Frame) []string {
	out := make([]string, 0, frame.NumChannels+1)
	for _, ch := range frame.Channels() {
		out = append(out, frame.FormatValue(f.Value(ch)))
	}
	return append(out, FormatHostTime(f.HostTime))
}

// Sink writes frames to one CSV file at a time. Every row is flushed to the
// operating system as soon as it is written so the file always holds a
// complete prefix of the received data. With sync enabled each row is also
// fsynced.
type Sink struct {
	mu   sync.Mutex
	sync bool

	file *os.File
	w    *csv.Writer
	path string
	rows uint64
}

// NewSink creates a closed sink.
func NewSink(sync bool) *Sink {
	return &Sink{sync: sync}
}

// Open creates path, writes the header and keeps the file open for Write.
// An existing file is never overwritten: the error then matches os.ErrExist.
func (s *Sink) Open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, s.path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Header()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export header: %w", err)
	}

	s.file = f
	s.w = w
	s.path = path
	s.rows = 0
	return nil
}

// Write appends one row and flushes it.
func (s *Sink) Write(f frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrNotOpen
	}

	if err := s.w.Write(Record(f)); err != nil {
		return fmt.Errorf("failed to write export row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush export row: %w", err)
	}
	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync export file: %w", err)
		}
	}
	s.rows++
	return nil
}

// Close flushes and closes the file. Closing a closed sink is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	s.w.Flush()
	flushErr := s.w.Error()
	closeErr := s.file.Close()

	s.file = nil
	s.w = nil
	s.path = ""

	if flushErr != nil {
		return fmt.Errorf("failed to flush export file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close export file: %w", closeErr)
	}
	return nil
}

// IsOpen reports whether a file is open.
func (s *Sink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file != nil
}

// Path returns the open file's path, or "" when closed.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Rows returns the number of rows written to the current (or last) file.
func (s *Sink) Rows() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}
