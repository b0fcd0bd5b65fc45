// Package forward publishes live frames to an MQTT broker as JSON.
package forward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/godaq/pkg/frame"
	"github.com/itohio/godaq/pkg/metrics"
)

const (
	// DefaultBufferSize is the number of frames queued for publishing.
	DefaultBufferSize = 1000
	// PublishTimeout bounds the wait for one publish acknowledgement.
	PublishTimeout = 2 * time.Second
	// disconnectQuiesce is passed to mqtt.Client.Disconnect, in milliseconds.
	disconnectQuiesce = 250
)

// ErrPublishTimeout is returned when the broker does not acknowledge a publish in time.
var ErrPublishTimeout = errors.New("publish timeout")

// Publisher is the part of mqtt.Client the forwarder uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Payload is the JSON document published per frame.
type Payload struct {
	Session       string               `json:"session"`
	Time          float64              `json:"time"`
	HostTime      time.Time            `json:"host_time"`
	IR            [frame.NumIR]float64 `json:"ir"`
	Pad           float64              `json:"pad"`
	Caliper       float64              `json:"caliper"`
	Load          float64              `json:"load"`
	BrakePressure float64              `json:"brake_pressure"`
	RotorRPM      float64              `json:"rotor_rpm"`
}

// NewPayload converts a frame.
func NewPayload(session string, f frame.Frame) Payload {
	return Payload{
		Session:       session,
		Time:          f.RelativeTime,
		HostTime:      f.HostTime,
		IR:            f.IR,
		Pad:           f.TC[frame.TCPad],
		Caliper:       f.TC[frame.TCCaliper],
		Load:          f.Load,
		BrakePressure: f.BrakePressure,
		RotorRPM:      f.RotorRPM,
	}
}

type item struct {
	session string
	frame   frame.Frame
}

// Forwarder queues frames and publishes them from its own goroutine so the
// acquisition loop never waits on the network. Frames arriving while the
// queue is full are dropped and counted.
type Forwarder struct {
	client  Publisher
	topic   string
	qos     byte
	metrics *metrics.Metrics
	onClose func()

	queue  chan item
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	sent    uint64
	dropped uint64
	failed  uint64
}

// New starts a forwarder on an already connected client.
func New(client Publisher, topic string, qos byte, bufSize int, m *metrics.Metrics) *Forwarder {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		client:  client,
		topic:   topic,
		qos:     qos,
		metrics: m,
		queue:   make(chan item, bufSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	f.wg.Add(1)
	go f.run()

	return f
}

// Dial connects to broker and starts a forwarder that disconnects on Close.
func Dial(broker, clientID, topic string, qos byte, m *metrics.Metrics) (*Forwarder, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", broker, token.Error())
	}

	f := New(client, topic, qos, 0, m)
	f.onClose = func() { client.Disconnect(disconnectQuiesce) }
	return f, nil
}

// WriteFrame queues f for publishing without blocking.
func (f *Forwarder) WriteFrame(session string, fr frame.Frame) {
	select {
	case <-f.ctx.Done():
		return
	default:
	}

	select {
	case f.queue <- item{session: session, frame: fr}:
	default:
		f.mu.Lock()
		f.dropped++
		dropped := f.dropped
		f.mu.Unlock()
		f.metrics.ForwardDrop()
		if dropped == 1 || dropped%1000 == 0 {
			log.Printf("Forward queue full, dropped %d frames so far", dropped)
		}
	}
}

// Close stops publishing. Frames still queued are discarded.
func (f *Forwarder) Close() error {
	f.once.Do(func() {
		f.cancel()
		f.wg.Wait()
		if f.onClose != nil {
			f.onClose()
		}
	})
	return nil
}

// Stats returns the number of published, dropped and failed frames.
func (f *Forwarder) Stats() (sent, dropped, failed uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent, f.dropped, f.failed
}

func (f *Forwarder) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case it := <-f.queue:
			err := f.publish(it)
			f.mu.Lock()
			if err != nil {
				f.failed++
			} else {
				f.sent++
			}
			failed := f.failed
			f.mu.Unlock()

			if err != nil {
				f.metrics.ForwardError()
				if failed == 1 || failed%1000 == 0 {
					log.Printf("Failed to publish frame (%d failures): %v", failed, err)
				}
			}
		}
	}
}

func (f *Forwarder) publish(it item) error {
	payload, err := json.Marshal(NewPayload(it.session, it.frame))
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	token := f.client.Publish(f.topic, f.qos, false, payload)
	if !token.WaitTimeout(PublishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}
