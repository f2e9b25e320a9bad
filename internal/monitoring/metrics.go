// Package monitoring exposes Prometheus metrics for the terminal service.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Construct it once per process;
// the collectors register themselves in the default registry.
// A nil *Metrics is valid and records nothing, which keeps tests quiet.
type Metrics struct {
	Subscribers      prometheus.Gauge
	AttachesTotal    prometheus.Counter
	OutputBytesTotal prometheus.Counter
	InputBytesTotal  prometheus.Counter
	PTYReadsTotal    prometheus.Counter
	BroadcastsTotal  prometheus.Counter
	StartsTotal      prometheus.Counter
	ExitsTotal       prometheus.Counter
	ResizesTotal     prometheus.Counter
}

// NewMetrics creates the metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		Subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "terminal_subscribers",
				Help: "Number of currently attached subscribers",
			},
		),
		AttachesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_attaches_total",
				Help: "Total number of subscriber attachments",
			},
		),
		OutputBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_output_bytes_total",
				Help: "Total bytes read from the PTY master",
			},
		),
		InputBytesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_input_bytes_total",
				Help: "Total bytes written to the PTY master",
			},
		),
		PTYReadsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_pty_reads_total",
				Help: "Total successful PTY reads",
			},
		),
		BroadcastsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_broadcasts_total",
				Help: "Total broadcast passes over the subscriber set",
			},
		),
		StartsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_starts_total",
				Help: "Total terminal process starts",
			},
		),
		ExitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_exits_total",
				Help: "Total terminal process exits",
			},
		),
		ResizesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "terminal_resizes_total",
				Help: "Total successful terminal resizes",
			},
		),
	}
}

// Handler returns the Prometheus exposition handler for the /metrics route.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SubscriberAttached records a new subscriber.
func (m *Metrics) SubscriberAttached() {
	if m == nil {
		return
	}
	m.Subscribers.Inc()
	m.AttachesTotal.Inc()
}

// SubscriberDetached records a removed subscriber.
func (m *Metrics) SubscriberDetached() {
	if m == nil {
		return
	}
	m.Subscribers.Dec()
}

// OutputChunk records one successful PTY read of n bytes.
func (m *Metrics) OutputChunk(n int) {
	if m == nil {
		return
	}
	m.PTYReadsTotal.Inc()
	m.OutputBytesTotal.Add(float64(n))
}

// InputWrite records n input bytes written to the PTY.
func (m *Metrics) InputWrite(n int) {
	if m == nil {
		return
	}
	m.InputBytesTotal.Add(float64(n))
}

// Broadcast records one broadcast pass.
func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.BroadcastsTotal.Inc()
}

// SessionStarted records a process start.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.StartsTotal.Inc()
}

// SessionExited records a process exit.
func (m *Metrics) SessionExited() {
	if m == nil {
		return
	}
	m.ExitsTotal.Inc()
}

// Resized records a successful resize.
func (m *Metrics) Resized() {
	if m == nil {
		return
	}
	m.ResizesTotal.Inc()
}
