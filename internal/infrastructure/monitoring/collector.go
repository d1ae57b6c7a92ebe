package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers run-time metrics for the whole client: sessions,
// signaling traffic, media packets and reactor health. It owns its
// registry so several collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	sessionsActive    prometheus.Gauge
	sessionsTotal     prometheus.Counter
	sessionDuration   prometheus.Histogram
	signalingMessages *prometheus.CounterVec
	signalingErrors   *prometheus.CounterVec
	videoPackets      prometheus.Counter
	dataMessages      prometheus.Counter
	keyframeRequests  prometheus.Counter
	droppedDispatches prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peercam_sessions_active",
			Help: "Number of currently open sessions",
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "peercam_sessions_total",
			Help: "Total number of sessions opened since start",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "peercam_session_duration_seconds",
			Help:    "Duration of closed sessions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		signalingMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peercam_signaling_messages_total",
			Help: "Signaling messages handled, by backend and type",
		}, []string{"backend", "type"}),

		signalingErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peercam_signaling_errors_total",
			Help: "Backend-local signaling faults, by backend",
		}, []string{"backend"}),

		videoPackets: factory.NewCounter(prometheus.CounterOpts{
			Name: "peercam_video_packets_total",
			Help: "RTP video packets received from remote peers",
		}),

		dataMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "peercam_data_messages_total",
			Help: "Messages carried over the serial data channel bridge",
		}),

		keyframeRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "peercam_keyframe_requests_total",
			Help: "PLI keyframe requests sent to remote peers",
		}),

		droppedDispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "peercam_dropped_dispatches_total",
			Help: "Renderer dispatches dropped because the reactor was stopping",
		}),
	}
}

// Handler exposes the collector's registry for the control API.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordSessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Inc()
	c.sessionsTotal.Inc()
}

func (c *Collector) RecordSessionClosed(duration time.Duration) {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
	c.sessionDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordSignalingMessage(backend, msgType string) {
	if c == nil {
		return
	}
	c.signalingMessages.WithLabelValues(backend, msgType).Inc()
}

func (c *Collector) RecordSignalingError(backend string) {
	if c == nil {
		return
	}
	c.signalingErrors.WithLabelValues(backend).Inc()
}

func (c *Collector) RecordVideoPacket() {
	if c == nil {
		return
	}
	c.videoPackets.Inc()
}

func (c *Collector) RecordDataMessage() {
	if c == nil {
		return
	}
	c.dataMessages.Inc()
}

func (c *Collector) RecordKeyframeRequest() {
	if c == nil {
		return
	}
	c.keyframeRequests.Inc()
}

func (c *Collector) RecordDroppedDispatch() {
	if c == nil {
		return
	}
	c.droppedDispatches.Inc()
}
