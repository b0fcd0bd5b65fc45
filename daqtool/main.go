// daqtool records brake dyno sessions without the GUI and post-processes
// exported CSV files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "daqtool",
	Short: "Headless acquisition and offline processing for brake dyno data",
	Long: `daqtool records brake dyno telemetry from a serial DAQ board and
post-processes the CSV files it exports.

Commands:
  ports    List serial ports
  record   Acquire (and optionally export) until interrupted
  filter   Low-pass filter every channel of an exported CSV
  stats    Summarize one column raw, averaged and low-passed`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "configuration file path")
	rootCmd.AddCommand(portsCmd, recordCmd, filterCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
