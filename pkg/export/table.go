package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/itohio/godaq/pkg/frame"
)

// Table is a CSV file loaded into named numeric columns. The host-time
// column, when present, is kept as text.
type Table struct {
	Names    []string
	Columns  [][]float64
	HostTime []string
}

// ReadAll parses a CSV with a header row. Every column except HostTimeColumn
// must be numeric.
func ReadAll(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv: missing header")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	t := &Table{}
	hostIdx := -1
	idx := make([]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, HostTimeColumn) {
			hostIdx = i
			idx[i] = -1
			t.HostTime = []string{}
			continue
		}
		idx[i] = len(t.Names)
		t.Names = append(t.Names, name)
		t.Columns = append(t.Columns, nil)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		for i, field := range rec {
			if i == hostIdx {
				t.HostTime = append(t.HostTime, field)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
			t.Columns[idx[i]] = append(t.Columns[idx[i]], v)
		}
	}

	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.Columns) > 0 {
		return len(t.Columns[0])
	}
	return len(t.HostTime)
}

// Index returns the position of the named column (case-insensitive) or -1.
func (t *Table) Index(name string) int {
	for i, n := range t.Names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// SetColumn replaces the named column, or appends it if absent.
func (t *Table) SetColumn(name string, values []float64) error {
	if len(t.Names) > 0 && len(values) != t.Len() {
		return fmt.Errorf("column %q has %d rows, table has %d", name, len(values), t.Len())
	}
	if i := t.Index(name); i >= 0 {
		t.Columns[i] = values
		return nil
	}
	t.Names = append(t.Names, name)
	t.Columns = append(t.Columns, values)
	return nil
}

// Frames rebuilds frames from a table that carries every channel column.
// Host times only keep the time of day.
func (t *Table) Frames() ([]frame.Frame, error) {
	cols := make([][]float64, frame.NumChannels)
	for _, ch := range frame.Channels() {
		c, ok := t.Column(ch.String())
		if !ok {
			return nil, fmt.Errorf("missing column %q", ch.String())
		}
		cols[ch] = c
	}

	out := make([]frame.Frame, t.Len())
	for i := range out {
		for _, ch := range frame.Channels() {
			out[i].SetValue(ch, cols[ch][i])
		}
		if i < len(t.HostTime) {
			ht, err := ParseHostTime(t.HostTime[i])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			out[i].HostTime = ht
		}
	}
	return out, nil
}

// WriteTable writes t as CSV, numeric columns first and the host-time column
// last when present.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)

	header := append([]string(nil), t.Names...)
	hasHost := t.HostTime != nil
	if hasHost {
		header = append(header, HostTimeColumn)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(header))
	for i := 0; i < t.Len(); i++ {
		for c, col := range t.Columns {
			row[c] = frame.FormatValue(col[i])
		}
		if hasHost {
			row[len(row)-1] = t.HostTime[i]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
