// Package metrics exposes Prometheus instrumentation for the VAD
// service. A nil *Metrics is valid and records nothing, which keeps
// instrumentation optional in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors.
type Metrics struct {
	sessionsActive  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	sessionsEvicted prometheus.Counter

	framesProcessed *prometheus.CounterVec
	framesDropped   prometheus.Counter

	speechSegmentSeconds prometheus.Histogram
	calibrationsTotal    prometheus.Counter
	processingErrors     prometheus.Counter

	wsConnections prometheus.Gauge
}

// New registers the service collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vad_sessions_active",
			Help: "Number of live VAD sessions.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_sessions_created_total",
			Help: "Total VAD sessions created.",
		}),
		sessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_sessions_evicted_total",
			Help: "Sessions evicted after idling past the timeout.",
		}),
		framesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_frames_processed_total",
			Help: "Audio frames processed, by verdict.",
		}, []string{"verdict"}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_frames_dropped_total",
			Help: "Audio chunks dropped due to queue overflow.",
		}),
		speechSegmentSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_speech_segment_seconds",
			Help:    "Duration of detected speech segments.",
			Buckets: []float64{0.3, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		calibrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_calibrations_total",
			Help: "Completed noise calibrations.",
		}),
		processingErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_processing_errors_total",
			Help: "Errors while processing audio frames.",
		}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vad_ws_connections",
			Help: "Open WebSocket connections.",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) SessionEvicted() {
	if m == nil {
		return
	}
	m.sessionsEvicted.Inc()
}

func (m *Metrics) FrameProcessed(verdict string) {
	if m == nil {
		return
	}
	m.framesProcessed.WithLabelValues(verdict).Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) SpeechSegment(d time.Duration) {
	if m == nil {
		return
	}
	m.speechSegmentSeconds.Observe(d.Seconds())
}

func (m *Metrics) CalibrationCompleted() {
	if m == nil {
		return
	}
	m.calibrationsTotal.Inc()
}

func (m *Metrics) ProcessingError() {
	if m == nil {
		return
	}
	m.processingErrors.Inc()
}

func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
