// Package daq owns the connection to the data-acquisition board: it reads
// the serial byte stream, assembles and decodes wire lines, and fans every
// decoded frame out to the store, the export file and any extra sinks.
package daq

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/itohio/godaq/pkg/frame"
)

const (
	// DefaultBaudRate is the board's serial speed.
	DefaultBaudRate = 230400
	// DefaultReadTimeout bounds one blocking read.
	DefaultReadTimeout = time.Second
	// DefaultPollInterval is the pause after a read that returned nothing.
	DefaultPollInterval = time.Millisecond
	// MockPort is the port name that opens the simulated board.
	MockPort = "mock"
)

var (
	// ErrConnection is wrapped by every ConnectionError.
	ErrConnection = errors.New("connection failed")
	// ErrAlreadyRunning is returned by Start while acquisition is running.
	ErrAlreadyRunning = errors.New("acquisition already running")
)

// ConnectionError reports a port that could not be opened.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to open port %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// State is the ingestion lifecycle state.
type State int32

const (
	Idle State = iota
	Connecting
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Port describes an available serial port.
type Port struct {
	Name        string
	Description string
}

// Conn is an open byte stream from the board. Read returns (0, nil) when no
// data arrived within the read timeout.
type Conn interface {
	io.Reader
	io.Closer
}

// Opener opens a connection to the named port.
type Opener interface {
	Open(port string, baudRate int, readTimeout time.Duration) (Conn, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(port string, baudRate int, readTimeout time.Duration) (Conn, error)

// Open calls f.
func (f OpenerFunc) Open(port string, baudRate int, readTimeout time.Duration) (Conn, error) {
	return f(port, baudRate, readTimeout)
}

// FrameSink receives every stored frame. WriteFrame must not block.
type FrameSink interface {
	WriteFrame(session string, f frame.Frame)
}

// Stats are counters of the current service.
type Stats struct {
	Frames       uint64 // frames decoded and stored
	DecodeErrors uint64 // lines dropped
	ExportRows   uint64 // rows written to export files
	ExportErrors uint64 // failed export writes
}
