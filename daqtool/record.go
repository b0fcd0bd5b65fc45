package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/core"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/frame"
)

var (
	recordPort      string
	recordMock      bool
	recordExport    bool
	recordExportDir string
	recordDuration  time.Duration
	recordInterval  time.Duration
	recordMetrics   string
	recordBroker    string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Acquire until interrupted, logging running averages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		applyRecordFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if recordDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, recordDuration)
			defer cancel()
		}

		return record(ctx, cfg, core.Options{}, recordExport, recordInterval)
	},
}

func init() {
	f := recordCmd.Flags()
	f.StringVarP(&recordPort, "port", "p", "", "serial port (default from config)")
	f.BoolVar(&recordMock, "mock", false, "use the simulated brake dyno")
	f.BoolVarP(&recordExport, "export", "e", false, "export every frame to CSV")
	f.StringVar(&recordExportDir, "export-dir", "", "export directory (default from config)")
	f.DurationVarP(&recordDuration, "duration", "d", 0, "stop after this long (0 = until interrupted)")
	f.DurationVar(&recordInterval, "interval", 5*time.Second, "how often to log running averages")
	f.StringVar(&recordMetrics, "metrics", "", "serve Prometheus metrics on this address")
	f.StringVar(&recordBroker, "mqtt", "", "forward frames to this MQTT broker")
}

func applyRecordFlags(cmd *cobra.Command, cfg *config.Config) {
	if recordPort != "" {
		cfg.Serial.Port = recordPort
	}
	if recordMock {
		cfg.Serial.Port = daq.MockPort
	}
	if recordExportDir != "" {
		cfg.Export.Directory = recordExportDir
	}
	if cmd.Flags().Changed("metrics") {
		cfg.Metrics.Listen = recordMetrics
	}
	if cmd.Flags().Changed("mqtt") {
		cfg.MQTT.Broker = recordBroker
	}
}

// record runs one session until ctx is done.
func record(ctx context.Context, cfg *config.Config, opts core.Options, export bool, interval time.Duration) error {
	c, err := core.New(cfg, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(""); err != nil {
		return err
	}
	if export {
		if _, err := c.StartExport(""); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := errors.Join(c.Stop(), <-runErr)
			logSummary(c)
			return err
		case <-ticker.C:
			if c.State() != daq.Running {
				cancel()
				err := errors.Join(errors.New("acquisition stopped: port closed"), <-runErr, c.Stop())
				logSummary(c)
				return err
			}
			log.Print(averageLine(c))
		}
	}
}

// averageLine formats the running average of every channel.
func averageLine(c *core.Core) string {
	s := c.Settings()
	var b strings.Builder
	for i, ch := range frame.Channels()[1:] {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s=%.2f", ch, c.Average(ch, s.AverageWindow))
	}
	return b.String()
}

func logSummary(c *core.Core) {
	st := c.Stats()
	log.Printf("Recorded %d frames (%d dropped lines, %d exported rows)", st.Frames, st.DecodeErrors, st.ExportRows)
}
