package daq

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/itohio/godaq/pkg/config"
)

// SerialOpener opens hardware serial ports.
type SerialOpener struct{}

// Open opens port in 8N1 mode with the given read timeout.
func (SerialOpener) Open(port string, baudRate int, readTimeout time.Duration) (Conn, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}

	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return p, nil
}

// DefaultOpener opens MockPort as a simulated board and anything else as a
// serial port. A nil mock config uses the mock defaults.
func DefaultOpener(mock *config.MockConfig) Opener {
	serialOpener := SerialOpener{}
	return OpenerFunc(func(port string, baudRate int, readTimeout time.Duration) (Conn, error) {
		if port == MockPort {
			return NewMock(mock, readTimeout), nil
		}
		return serialOpener.Open(port, baudRate, readTimeout)
	})
}

// Ports returns a list of available serial ports. USB adapters are described
// by product name or VID:PID when the platform reports them.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil && len(details) > 0 {
		result := make([]Port, 0, len(details))
		for _, d := range details {
			result = append(result, Port{
				Name:        d.Name,
				Description: describe(d),
			})
		}
		return result, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(names))
	for _, name := range names {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

func describe(d *enumerator.PortDetails) string {
	switch {
	case !d.IsUSB:
		return d.Name
	case d.Product != "":
		return fmt.Sprintf("%s (%s)", d.Name, d.Product)
	default:
		return fmt.Sprintf("%s (USB %s:%s)", d.Name, d.VID, d.PID)
	}
}
