package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/itohio/godaq/pkg/export"
	"github.com/itohio/godaq/pkg/filter"
	"github.com/itohio/godaq/pkg/frame"
)

var (
	filterCutoff     float64
	filterOrder      int
	filterRate       float64
	filterFahrenheit bool
	filterOutput     string
)

var filterCmd = &cobra.Command{
	Use:   "filter <file.csv>",
	Short: "Low-pass filter every channel of an exported CSV",
	Long: `filter applies a zero-phase Butterworth low-pass to every numeric column
except the time column, rebases time to start at 0 and writes
<name>_filtered.csv next to the input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(args[0])
		if err != nil {
			return err
		}

		fs, err := filterTable(t, filterOptions{
			CutoffHz:     filterCutoff,
			Order:        filterOrder,
			SampleRateHz: filterRate,
			Fahrenheit:   filterFahrenheit,
		})
		if err != nil {
			return err
		}

		out := filterOutput
		if out == "" {
			out = filteredName(args[0])
		}
		if err := writeTable(out, t); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d rows at %.3g Hz (cutoff %g Hz), saved to %s\n", t.Len(), fs, filterCutoff, out)
		return nil
	},
}

func init() {
	f := filterCmd.Flags()
	f.Float64VarP(&filterCutoff, "cutoff", "c", 0.1, "cutoff frequency in Hz")
	f.IntVar(&filterOrder, "order", filter.DefaultOrder, "Butterworth order")
	f.Float64Var(&filterRate, "rate", 0, "sample rate in Hz (0 = from the time column)")
	f.BoolVarP(&filterFahrenheit, "fahrenheit", "F", false, "convert temperatures to Fahrenheit")
	f.StringVarP(&filterOutput, "output", "o", "", "output file (default <name>_filtered.csv)")
}

type filterOptions struct {
	CutoffHz     float64
	Order        int
	SampleRateHz float64
	Fahrenheit   bool
}

// filterTable rebases the time column to 0 and low-passes every other
// numeric column in place. It returns the sample rate used.
func filterTable(t *export.Table, opts filterOptions) (float64, error) {
	ti := timeIndex(t)
	if ti < 0 {
		return 0, fmt.Errorf("no numeric columns")
	}

	times := t.Columns[ti]
	if len(times) > 0 {
		t0 := times[0]
		for i := range times {
			times[i] -= t0
		}
	}

	fs := opts.SampleRateHz
	if fs <= 0 {
		var err error
		if fs, err = filter.SampleRate(times); err != nil {
			return 0, fmt.Errorf("failed to determine sample rate: %w", err)
		}
	}

	for i, name := range t.Names {
		if i == ti {
			continue
		}
		col := t.Columns[i]
		if opts.Fahrenheit {
			if ch, err := frame.ParseChannel(name); err == nil {
				frame.ConvertSeries(ch, col, frame.Fahrenheit)
			}
		}
		out, err := filter.LowPass(col, opts.CutoffHz, fs, opts.Order)
		if err != nil {
			return 0, fmt.Errorf("column %q: %w", name, err)
		}
		t.Columns[i] = out
	}

	return fs, nil
}

// timeIndex returns the Time column, or the first column when absent.
func timeIndex(t *export.Table) int {
	if i := t.Index(frame.Time.String()); i >= 0 {
		return i
	}
	if len(t.Names) > 0 {
		return 0
	}
	return -1
}

// filteredName returns path with _filtered inserted before the extension.
func filteredName(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_filtered" + ext
}

func readTable(path string) (*export.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	t, err := export.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

func writeTable(path string, t *export.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteTable(f, t); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
