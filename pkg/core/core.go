// Package core wires the acquisition pipeline together and exposes the
// control surface used by the GUI and the command line tool.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itohio/godaq/pkg/aggregate"
	"github.com/itohio/godaq/pkg/config"
	"github.com/itohio/godaq/pkg/daq"
	"github.com/itohio/godaq/pkg/forward"
	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/metrics"
	"github.com/itohio/godaq/pkg/store"
)

// MockDescription labels the simulated board in port lists.
const MockDescription = "Simulated brake dyno"

// Options override the connections Core makes by itself.
type Options struct {
	// Opener opens ports. Defaults to daq.DefaultOpener with the mock section
	// of the configuration.
	Opener daq.Opener
	// Publisher replaces the MQTT connection made from the mqtt section.
	Publisher forward.Publisher
}

// Core owns the store, the ingestion service, the aggregator and the optional
// forwarder of one application instance.
type Core struct {
	cfg       *config.Config
	store     *store.Store
	service   *daq.Service
	agg       *aggregate.Aggregator
	metrics   *metrics.Metrics
	forwarder *forward.Forwarder

	mu       sync.RWMutex
	settings aggregate.Settings
}

// New builds a core from cfg. When cfg.MQTT.Broker is set (or a Publisher is
// given) every stored frame is also forwarded.
func New(cfg *config.Config, opts Options) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Opener == nil {
		// The mock section is read at every Start so edits apply to the next session.
		opts.Opener = daq.DefaultOpener(&cfg.Mock)
	}

	m := metrics.New()
	st := store.New(cfg.Store.MaxSamples)
	c := &Core{
		cfg:     cfg,
		store:   st,
		metrics: m,
		agg:     aggregate.New(st, m),
		service: daq.New(st, daq.Options{
			BaudRate:     cfg.Serial.BaudRate,
			ReadTimeout:  cfg.Serial.ReadTimeout,
			PollInterval: cfg.Serial.PollInterval,
			Opener:       opts.Opener,
			SyncExport:   cfg.Export.Sync,
			Metrics:      m,
		}),
		settings: cfg.Display.Settings(),
	}

	switch {
	case opts.Publisher != nil:
		c.forwarder = forward.New(opts.Publisher, cfg.MQTT.Topic, byte(cfg.MQTT.QoS), 0, m)
	case cfg.MQTT.Broker != "":
		fwd, err := forward.Dial(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, byte(cfg.MQTT.QoS), m)
		if err != nil {
			return nil, err
		}
		c.forwarder = fwd
	}
	if c.forwarder != nil {
		c.service.AddSink(c.forwarder)
	}

	return c, nil
}

// Run recomputes display snapshots every display.refresh_interval and serves
// metrics when metrics.listen is set. It blocks until ctx is done.
func (c *Core) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		serveErr error
	)

	if addr := c.cfg.Metrics.Listen; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.metrics.Serve(ctx, addr); err != nil {
				serveErr = err
				log.Printf("%v", err)
			}
		}()
	}

	c.agg.Run(ctx, c.cfg.Display.RefreshInterval, c.Settings)
	cancel()
	wg.Wait()

	return serveErr
}

// Close stops acquisition and the forwarder.
func (c *Core) Close() error {
	err := c.service.Stop()
	if c.forwarder != nil {
		err = errors.Join(err, c.forwarder.Close())
	}
	return err
}

// ListPorts returns the serial ports of the host followed by the simulated
// board. The simulated board is listed even when enumeration fails.
func (c *Core) ListPorts() ([]daq.Port, error) {
	ports, err := daq.Ports()
	ports = append(ports, daq.Port{Name: daq.MockPort, Description: MockDescription})
	if err != nil {
		return ports, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Start begins a session on port, or on serial.port when port is empty.
func (c *Core) Start(port string) error {
	if port == "" {
		port = c.cfg.Serial.Port
	}
	return c.service.Start(port)
}

// Stop ends the session. Stop without a session is a no-op.
func (c *Core) Stop() error {
	return c.service.Stop()
}

// StartExport starts a CSV export in dir, or in export.directory when dir is
// empty, and returns the file path.
func (c *Core) StartExport(dir string) (string, error) {
	if dir == "" {
		dir = c.cfg.Export.Directory
	}
	return c.service.StartExport(dir)
}

// StopExport closes the active export.
func (c *Core) StopExport() error {
	return c.service.StopExport()
}

// ExportPath returns the active export file, or "".
func (c *Core) ExportPath() string {
	return c.service.ExportPath()
}

// Series returns the last maxPoints values of ch in the display units.
func (c *Core) Series(ch frame.Channel, maxPoints int) []float64 {
	return c.agg.Series(ch, maxPoints, c.Settings().Units)
}

// Filtered returns the zero-phase low-pass of the last maxPoints values of
// ch. When filtering is impossible the raw values are returned with the
// reason.
func (c *Core) Filtered(ch frame.Channel, maxPoints int, cutoffHz float64) ([]float64, error) {
	return c.agg.Filtered(ch, maxPoints, cutoffHz, c.Settings())
}

// Average returns the mean of the last window values of ch, or of the whole
// history when window <= 0.
func (c *Core) Average(ch frame.Channel, window int) float64 {
	return c.agg.Average(ch, window, c.Settings().Units)
}

// Snapshot returns the latest periodic snapshot, computing one when Run has
// not produced any yet.
func (c *Core) Snapshot() aggregate.Snapshot {
	if snap, ok := c.agg.Latest(); ok {
		return snap
	}
	return c.agg.Compute(c.Settings())
}

// Refresh computes a snapshot with the current settings right away.
func (c *Core) Refresh() aggregate.Snapshot {
	return c.agg.Compute(c.Settings())
}

// State returns the ingestion state.
func (c *Core) State() daq.State {
	return c.service.State()
}

// SessionID returns the ID of the current or last session.
func (c *Core) SessionID() string {
	return c.service.SessionID()
}

// Stats returns the ingestion counters.
func (c *Core) Stats() daq.Stats {
	return c.service.Stats()
}

// Settings returns the display settings.
func (c *Core) Settings() aggregate.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// SetSettings replaces the display settings. They apply from the next
// aggregation pass.
func (c *Core) SetSettings(s aggregate.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Metrics returns the metrics of this instance.
func (c *Core) Metrics() *metrics.Metrics {
	return c.metrics
}

// Config returns the configuration the core was built with.
func (c *Core) Config() *config.Config {
	return c.cfg
}
