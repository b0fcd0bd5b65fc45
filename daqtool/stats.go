package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itohio/godaq/pkg/filter"
)

var (
	statsColumn  string
	statsWindow  float64
	statsCutoffs []float64
	statsOrder   int
)

var statsCmd = &cobra.Command{
	Use:   "stats <file.csv>",
	Short: "Summarize one column raw, averaged and low-passed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(args[0])
		if err != nil {
			return err
		}

		series, ok := t.Column(statsColumn)
		if !ok {
			return fmt.Errorf("column %q not found in %s", statsColumn, args[0])
		}
		ti := timeIndex(t)
		fs, err := filter.SampleRate(t.Columns[ti])
		if err != nil {
			return fmt.Errorf("failed to determine sample rate: %w", err)
		}

		rows, err := summarize(series, fs, statsWindow, statsCutoffs, statsOrder)
		if err != nil {
			return err
		}
		return printStats(cmd.OutOrStdout(), rows)
	},
}

func init() {
	f := statsCmd.Flags()
	f.StringVar(&statsColumn, "column", "IR1", "column to summarize")
	f.Float64Var(&statsWindow, "window", 1, "moving average window in seconds")
	f.Float64SliceVar(&statsCutoffs, "cutoff", []float64{1, 0.1}, "low-pass cutoffs in Hz")
	f.IntVar(&statsOrder, "order", filter.DefaultOrder, "Butterworth order")
}

type statRow struct {
	Name string
	filter.Summary
}

// summarize describes series raw, through a moving average of
// windowSeconds and through a low-pass at each cutoff.
func summarize(series []float64, fs, windowSeconds float64, cutoffs []float64, order int) ([]statRow, error) {
	window := max(1, int(math.Round(windowSeconds*fs)))

	rows := []statRow{
		{Name: "Raw", Summary: filter.Describe(series)},
		{
			Name:    fmt.Sprintf("Moving Average (%g s)", windowSeconds),
			Summary: filter.Describe(filter.MovingAverage(series, window)),
		},
	}
	for _, cutoff := range cutoffs {
		lp, err := filter.LowPass(series, cutoff, fs, order)
		if err != nil {
			return nil, fmt.Errorf("low-pass at %g Hz: %w", cutoff, err)
		}
		rows = append(rows, statRow{
			Name:    fmt.Sprintf("Low Pass (%g Hz)", cutoff),
			Summary: filter.Describe(lp),
		})
	}
	return rows, nil
}

func printStats(w io.Writer, rows []statRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Filter\tMean\tMax\tMin\tStd\tMedian")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", r.Name, r.Mean, r.Max, r.Min, r.StdDev, r.Median)
	}
	return tw.Flush()
}
