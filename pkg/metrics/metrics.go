// Package metrics exposes acquisition counters in the Prometheus text format.
//
// A nil *Metrics is valid and records nothing, so components take an optional
// *Metrics without checking it.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "godaq"

// Metrics holds the collectors of one acquisition process.
type Metrics struct {
	registry *prometheus.Registry

	frames          prometheus.Counter
	decodeErrors    *prometheus.CounterVec
	exportRows      prometheus.Counter
	exportErrors    prometheus.Counter
	filterFallbacks *prometheus.CounterVec
	forwardErrors   prometheus.Counter
	forwardDrops    prometheus.Counter
	storeFrames     prometheus.Gauge
	state           prometheus.Gauge
	aggregate       prometheus.Histogram
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total frames decoded and stored.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total wire lines dropped by reason.",
		}, []string{"reason"}), // field_count, numeric
		exportRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "rows_total",
			Help:      "Total rows written to export files.",
		}),
		exportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "errors_total",
			Help:      "Total export write failures.",
		}),
		filterFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_fallbacks_total",
			Help:      "Total aggregation passes that fell back to raw data.",
		}, []string{"channel"}),
		forwardErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forward",
			Name:      "errors_total",
			Help:      "Total frames the live forwarder failed to publish.",
		}),
		forwardDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forward",
			Name:      "dropped_total",
			Help:      "Total frames dropped because the forward queue was full.",
		}),
		storeFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "frames",
			Help:      "Frames currently retained in memory.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_state",
			Help:      "Ingestion state (0 idle, 1 connecting, 2 running, 3 stopped).",
		}),
		aggregate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "duration_seconds",
			Help:      "Time spent computing one display snapshot.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	m.registry.MustRegister(
		m.frames,
		m.decodeErrors,
		m.exportRows,
		m.exportErrors,
		m.filterFallbacks,
		m.forwardErrors,
		m.forwardDrops,
		m.storeFrames,
		m.state,
		m.aggregate,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving metrics on %s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

// FrameStored counts one decoded and stored frame.
func (m *Metrics) FrameStored() {
	if m == nil {
		return
	}
	m.frames.Inc()
}

// DecodeError counts one dropped wire line.
func (m *Metrics) DecodeError(reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}

// ExportRow counts one exported row.
func (m *Metrics) ExportRow() {
	if m == nil {
		return
	}
	m.exportRows.Inc()
}

// ExportError counts one failed export write.
func (m *Metrics) ExportError() {
	if m == nil {
		return
	}
	m.exportErrors.Inc()
}

// FilterFallback counts one channel that was shown unfiltered.
func (m *Metrics) FilterFallback(channel string) {
	if m == nil {
		return
	}
	m.filterFallbacks.WithLabelValues(channel).Inc()
}

// ForwardError counts one frame the forwarder failed to publish.
func (m *Metrics) ForwardError() {
	if m == nil {
		return
	}
	m.forwardErrors.Inc()
}

// ForwardDrop counts one frame dropped on a full forward queue.
func (m *Metrics) ForwardDrop() {
	if m == nil {
		return
	}
	m.forwardDrops.Inc()
}

// StoreFrames records the number of retained frames.
func (m *Metrics) StoreFrames(n int) {
	if m == nil {
		return
	}
	m.storeFrames.Set(float64(n))
}

// IngestState records the numeric ingestion state.
func (m *Metrics) IngestState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}

// AggregateDuration observes the time of one aggregation pass.
func (m *Metrics) AggregateDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.aggregate.Observe(d.Seconds())
}
