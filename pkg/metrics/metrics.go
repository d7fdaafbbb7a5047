// Package metrics exposes client-side session counters in Prometheus format.
//
// All methods are safe on a nil *Metrics so components can run without an
// endpoint configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "radiolink"

// Metrics holds the collectors for one client process.
type Metrics struct {
	registry *prometheus.Registry

	ConnectAttempts prometheus.Counter
	ConnectFailures *prometheus.CounterVec
	SessionsOpen    prometheus.Gauge
	SessionDuration prometheus.Histogram
	TokenLatency    prometheus.Histogram
	Transmitting    prometheus.Gauge
	RemoteSinks     prometheus.Gauge
	FramesSent      prometheus.Counter
	FramesPlayed    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ConnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect attempts accepted by the session manager.",
		}),
		ConnectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Failed connect attempts by error kind.",
		}, []string{"kind"}),
		SessionsOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Whether a session is currently open (0 or 1).",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of open sessions.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
		}),
		TokenLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_request_seconds",
			Help:      "Latency of join-token requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		Transmitting: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ptt_transmitting",
			Help:      "Whether the local microphone is unmuted (0 or 1).",
		}),
		RemoteSinks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_audio_sinks",
			Help:      "Remote participants with an attached audio sink.",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Encoded microphone frames written to the session.",
		}),
		FramesPlayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_played_total",
			Help:      "Mixed frames written to the playback device.",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectAttempt() {
	if m != nil {
		m.ConnectAttempts.Inc()
	}
}

func (m *Metrics) ConnectFailed(kind string) {
	if m != nil {
		m.ConnectFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveTokenRequest(d time.Duration) {
	if m != nil {
		m.TokenLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsOpen.Set(1)
	}
}

// SessionClosed records the end of a session opened at since.
func (m *Metrics) SessionClosed(since time.Time) {
	if m == nil {
		return
	}
	m.SessionsOpen.Set(0)
	m.Transmitting.Set(0)
	if !since.IsZero() {
		m.SessionDuration.Observe(time.Since(since).Seconds())
	}
}

func (m *Metrics) SetTransmitting(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Transmitting.Set(1)
	} else {
		m.Transmitting.Set(0)
	}
}

func (m *Metrics) SinkOpened() {
	if m != nil {
		m.RemoteSinks.Inc()
	}
}

func (m *Metrics) SinkClosed() {
	if m != nil {
		m.RemoteSinks.Dec()
	}
}

func (m *Metrics) FrameSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) FramePlayed() {
	if m != nil {
		m.FramesPlayed.Inc()
	}
}
