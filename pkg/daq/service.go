package daq

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/itohio/godaq/pkg/export"
	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/metrics"
	"github.com/itohio/godaq/pkg/store"
)

const (
	// readBufferSize is the size of one serial read.
	readBufferSize = 4096
	// maxExportSuffix bounds the numbered names tried by StartExport.
	maxExportSuffix = 1000
)

// Options configure a Service. Zero values use the package defaults.
type Options struct {
	BaudRate     int
	ReadTimeout  time.Duration
	PollInterval time.Duration
	Opener       Opener           // defaults to SerialOpener
	SyncExport   bool             // fsync every exported row
	Metrics      *metrics.Metrics // optional
}

// Service runs acquisition sessions: one connection and one read loop at a
// time. Start, Stop and the export controls may be called from any goroutine.
type Service struct {
	store   *store.Store
	opener  Opener
	metrics *metrics.Metrics
	export  *export.Sink

	baudRate     int
	readTimeout  time.Duration
	pollInterval time.Duration
	now          func() time.Time

	state atomic.Int32

	// lifeMu serializes Start and Stop.
	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	session string
	port    string
	sinks   []FrameSink

	frames       atomic.Uint64
	decodeErrors atomic.Uint64
	exportRows   atomic.Uint64
	exportErrors atomic.Uint64
}

// New creates an idle service that appends to st.
func New(st *store.Store, opts Options) *Service {
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Opener == nil {
		opts.Opener = SerialOpener{}
	}

	return &Service{
		store:        st,
		opener:       opts.Opener,
		metrics:      opts.Metrics,
		export:       export.NewSink(opts.SyncExport),
		baudRate:     opts.BaudRate,
		readTimeout:  opts.ReadTimeout,
		pollInterval: opts.PollInterval,
		now:          time.Now,
	}
}

// AddSink registers a sink that receives every frame of sessions started
// afterwards.
func (s *Service) AddSink(sink FrameSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Start opens port and starts the read loop. The store is cleared and a new
// session ID is assigned. If the port cannot be opened a *ConnectionError is
// returned and the state goes back to what it was.
func (s *Service) Start(port string) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	prev := s.State()
	if prev == Running || prev == Connecting {
		return ErrAlreadyRunning
	}
	s.setState(Connecting)

	conn, err := s.opener.Open(port, s.baudRate, s.readTimeout)
	if err != nil {
		s.setState(prev)
		return &ConnectionError{Port: port, Err: err}
	}

	// A previous loop that ended on its own has already exited.
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	s.store.Reset()
	s.frames.Store(0)
	s.decodeErrors.Store(0)

	session := uuid.NewString()
	s.mu.Lock()
	s.session = session
	s.port = port
	sinks := append([]FrameSink(nil), s.sinks...)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setState(Running)

	go s.readLoop(ctx, conn, session, sinks, s.done)

	log.Printf("Acquisition started on %s at %d baud (session %s)", port, s.baudRate, session)
	return nil
}

// Stop ends the read loop after the line being processed, closes the port
// and closes an active export. Stop is a no-op when nothing is running.
func (s *Service) Stop() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	err := s.closeExport()
	s.setState(Stopped)

	log.Printf("Acquisition stopped (%d frames, %d dropped lines)", s.frames.Load(), s.decodeErrors.Load())
	return err
}

// StartExport creates data_YYYYMMDD_HH_MM_SS.csv in dir and starts writing
// every new frame to it. When that file already exists a _1, _2, ... suffix
// is added. Export may be started before or during acquisition.
func (s *Service) StartExport(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	now := s.now()

	for n := 0; n < maxExportSuffix; n++ {
		path := filepath.Join(dir, export.NumberedFileName(now, n))
		err := s.export.Open(path)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		log.Printf("Exporting to %s", path)
		return path, nil
	}
	return "", fmt.Errorf("failed to create export file in %s: %d files named %s exist",
		dir, maxExportSuffix, export.FileName(now))
}

// StopExport closes the active export file.
func (s *Service) StopExport() error {
	if !s.export.IsOpen() {
		return export.ErrNotOpen
	}
	return s.closeExport()
}

// ExportPath returns the active export file, or "" when not exporting.
func (s *Service) ExportPath() string {
	return s.export.Path()
}

// State returns the lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// SessionID returns the ID of the current or last session.
func (s *Service) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Port returns the port of the current or last session.
func (s *Service) Port() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Stats returns the service counters.
func (s *Service) Stats() Stats {
	return Stats{
		Frames:       s.frames.Load(),
		DecodeErrors: s.decodeErrors.Load(),
		ExportRows:   s.exportRows.Load(),
		ExportErrors: s.exportErrors.Load(),
	}
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.IngestState(int(st))
}

func (s *Service) closeExport() error {
	path := s.export.Path()
	if err := s.export.Close(); err != nil {
		return fmt.Errorf("failed to close export %s: %w", path, err)
	}
	if path != "" {
		log.Printf("Export %s closed after %d rows", path, s.export.Rows())
	}
	return nil
}

// readLoop reads until ctx is cancelled or the port fails. Every complete
// line of a read is processed before cancellation is checked again.
// Cancellation closes the port, which ends a blocked Read.
func (s *Service) readLoop(ctx context.Context, conn Conn, session string, sinks []FrameSink, done chan struct{}) {
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			if err := conn.Close(); err != nil {
				log.Printf("Error closing serial port: %v", err)
			}
		})
	}

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-exited:
		}
	}()

	defer close(done)
	defer closeConn()
	defer close(exited)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in read loop: %v", r)
			s.fail()
		}
	}()

	var lines lineBuffer
	buf := make([]byte, readBufferSize)
	emit := func(line string) {
		s.handleLine(session, line, sinks)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if dropped := lines.feed(buf[:n], emit); dropped > 0 {
				s.decodeErrors.Add(1)
				s.metrics.DecodeError("overflow")
				log.Printf("Discarded %d bytes without a line break", dropped)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading from serial port: %v", err)
			s.fail()
			return
		}
		if n == 0 {
			time.Sleep(s.pollInterval)
		}
	}
}

// fail ends a session after a port error. There is no reconnect.
func (s *Service) fail() {
	if err := s.closeExport(); err != nil {
		log.Printf("%v", err)
	}
	s.setState(Stopped)
}

func (s *Service) handleLine(session, line string, sinks []FrameSink) {
	f, err := frame.Decode(line, s.now())
	if err != nil {
		s.decodeErrors.Add(1)
		reason := "numeric"
		var de *frame.DecodeError
		if errors.As(err, &de) {
			reason = de.Reason()
		}
		s.metrics.DecodeError(reason)
		log.Printf("Failed to parse line '%s': %v", truncate(line, 120), err)
		return
	}

	s.store.Append(f)
	s.frames.Add(1)
	s.metrics.FrameStored()

	s.writeExport(f)

	for _, sink := range sinks {
		sink.WriteFrame(session, f)
	}
}

// writeExport writes f when an export is open. A failed write closes the
// export; acquisition continues.
func (s *Service) writeExport(f frame.Frame) {
	err := s.export.Write(f)
	switch {
	case err == nil:
		s.exportRows.Add(1)
		s.metrics.ExportRow()
	case errors.Is(err, export.ErrNotOpen):
	default:
		s.exportErrors.Add(1)
		s.metrics.ExportError()
		log.Printf("Export write failed, closing export: %v", err)
		if cerr := s.closeExport(); cerr != nil {
			log.Printf("%v", cerr)
		}
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
