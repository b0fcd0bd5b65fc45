package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/godaq/pkg/aggregate"
	"github.com/itohio/godaq/pkg/frame"
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Display DisplayConfig `yaml:"display"`
	Mock    MockConfig    `yaml:"mock"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Upper bound of one blocking read
	PollInterval time.Duration `yaml:"poll_interval"` // Sleep after a read that returned nothing
}

// StoreConfig contains in-memory history retention.
type StoreConfig struct {
	MaxSamples int `yaml:"max_samples"` // 0 keeps the whole session in memory
}

// ExportConfig contains CSV export parameters.
type ExportConfig struct {
	Directory string `yaml:"directory"`
	Sync      bool   `yaml:"sync"` // fsync every row
}

// DisplayConfig contains live display parameters.
type DisplayConfig struct {
	Units           string        `yaml:"units"`           // "C" or "F"
	MaxPlotPoints   int           `yaml:"max_plot_points"` // Tail length shown and filtered
	AverageWindow   int           `yaml:"average_window"`  // Samples averaged, 0 = all
	CutoffHz        float64       `yaml:"cutoff_hz"`
	FilterOrder     int           `yaml:"filter_order"`
	SampleRateHz    float64       `yaml:"sample_rate_hz"` // 0 = estimate from the device clock
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// MockConfig contains simulated brake dyno parameters.
type MockConfig struct {
	SampleRate    time.Duration `yaml:"sample_rate"`    // Interval between frames
	Ambient       float64       `yaml:"ambient"`        // Ambient temperature (°C)
	NoiseLevel    float64       `yaml:"noise_level"`    // Sensor noise amplitude
	BrakePeriod   time.Duration `yaml:"brake_period"`   // Time between brake applications
	BrakeDuration time.Duration `yaml:"brake_duration"` // Length of one brake application
	MaxRPM        float64       `yaml:"max_rpm"`        // Rotor speed before braking
}

// MQTTConfig contains live forwarding parameters. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`
}

// MetricsConfig contains the metrics endpoint. An empty address disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "COM3", // Default for Windows, "/dev/ttyUSB0" on Linux
			BaudRate:     230400,
			ReadTimeout:  time.Second,
			PollInterval: time.Millisecond,
		},
		Store: StoreConfig{
			MaxSamples: 0,
		},
		Export: ExportConfig{
			Directory: ".",
			Sync:      false,
		},
		Display: DisplayConfig{
			Units:           "C",
			MaxPlotPoints:   10000,
			AverageWindow:   0,
			CutoffHz:        1.0,
			FilterOrder:     4,
			SampleRateHz:    0,
			RefreshInterval: time.Second,
		},
		Mock: MockConfig{
			SampleRate:    10 * time.Millisecond, // 100 frames per second
			Ambient:       22,
			NoiseLevel:    0.2,
			BrakePeriod:   20 * time.Second,
			BrakeDuration: 5 * time.Second,
			MaxRPM:        1200,
		},
		MQTT: MQTTConfig{
			Topic:    "godaq/frames",
			ClientID: "godaq",
			QoS:      0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Serial.BaudRate <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate))
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout must be positive, got %s", c.Serial.ReadTimeout))
	}
	if c.Serial.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("serial.poll_interval must be positive, got %s", c.Serial.PollInterval))
	}
	if c.Store.MaxSamples < 0 {
		errs = append(errs, fmt.Errorf("store.max_samples must not be negative, got %d", c.Store.MaxSamples))
	}

	d := c.Display
	if _, err := frame.ParseUnit(d.Units); err != nil {
		errs = append(errs, fmt.Errorf("display.units: %w", err))
	}
	if d.MaxPlotPoints <= 0 {
		errs = append(errs, fmt.Errorf("display.max_plot_points must be positive, got %d", d.MaxPlotPoints))
	}
	if d.AverageWindow < 0 {
		errs = append(errs, fmt.Errorf("display.average_window must not be negative, got %d", d.AverageWindow))
	}
	if d.CutoffHz <= 0 {
		errs = append(errs, fmt.Errorf("display.cutoff_hz must be positive, got %g", d.CutoffHz))
	}
	if d.FilterOrder < 1 || d.FilterOrder > 10 {
		errs = append(errs, fmt.Errorf("display.filter_order must be in [1, 10], got %d", d.FilterOrder))
	}
	if d.SampleRateHz < 0 {
		errs = append(errs, fmt.Errorf("display.sample_rate_hz must not be negative, got %g", d.SampleRateHz))
	} else if d.SampleRateHz > 0 && d.CutoffHz >= d.SampleRateHz/2 {
		errs = append(errs, fmt.Errorf("display.cutoff_hz %g must be below Nyquist %g", d.CutoffHz, d.SampleRateHz/2))
	}
	if d.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("display.refresh_interval must be positive, got %s", d.RefreshInterval))
	}

	if c.Mock.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("mock.sample_rate must be positive, got %s", c.Mock.SampleRate))
	}
	if c.Mock.BrakeDuration > c.Mock.BrakePeriod {
		errs = append(errs, fmt.Errorf("mock.brake_duration %s exceeds mock.brake_period %s", c.Mock.BrakeDuration, c.Mock.BrakePeriod))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// Settings returns the aggregation settings described by the display section.
// Unknown units fall back to Celsius.
func (d DisplayConfig) Settings() aggregate.Settings {
	units, err := frame.ParseUnit(d.Units)
	if err != nil {
		units = frame.Celsius
	}
	return aggregate.Settings{
		Units:         units,
		MaxPoints:     d.MaxPlotPoints,
		AverageWindow: d.AverageWindow,
		CutoffHz:      d.CutoffHz,
		Order:         d.FilterOrder,
		SampleRateHz:  d.SampleRateHz,
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.Serial.PollInterval == 0 {
		c.Serial.PollInterval = def.Serial.PollInterval
	}

	if c.Export.Directory == "" {
		c.Export.Directory = def.Export.Directory
	}

	if c.Display.Units == "" {
		c.Display.Units = def.Display.Units
	}
	if c.Display.MaxPlotPoints == 0 {
		c.Display.MaxPlotPoints = def.Display.MaxPlotPoints
	}
	if c.Display.CutoffHz == 0 {
		c.Display.CutoffHz = def.Display.CutoffHz
	}
	if c.Display.FilterOrder == 0 {
		c.Display.FilterOrder = def.Display.FilterOrder
	}
	if c.Display.RefreshInterval == 0 {
		c.Display.RefreshInterval = def.Display.RefreshInterval
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.BrakePeriod == 0 {
		c.Mock.BrakePeriod = def.Mock.BrakePeriod
	}
	if c.Mock.BrakeDuration == 0 {
		c.Mock.BrakeDuration = def.Mock.BrakeDuration
	}
	if c.Mock.MaxRPM == 0 {
		c.Mock.MaxRPM = def.Mock.MaxRPM
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}
