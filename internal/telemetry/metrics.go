// metrics.go: Prometheus metrics setup and manipulation for telemetry
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the analytics pipeline.
// All observation methods tolerate a nil receiver so callers work
// unchanged when telemetry is disabled.
type Metrics struct {
	FrameProcessSeconds prometheus.Histogram
	MotionDetections    prometheus.Counter
	ObjectDetections    *prometheus.CounterVec
	AlertsTriggered     prometheus.Counter
	AlertsSuppressed    *prometheus.CounterVec
	HeartbeatsPublished prometheus.Counter
	MQTTConnected       prometheus.Gauge
	JobsDropped         prometheus.Counter
}

const metricsPath = "/metrics"

// NewMetrics initializes and registers all Prometheus metrics used in the telemetry system.
func NewMetrics() (*Metrics, error) {
	metrics := &Metrics{
		FrameProcessSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thirdeye_frame_process_seconds",
			Help:    "Wall-clock time spent processing a single frame.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		MotionDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thirdeye_motion_detections_total",
			Help: "Count of confirmed motion regions persisted.",
		}),
		ObjectDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thirdeye_object_detections_total",
			Help: "Count of tracked object detections partitioned by class label.",
		}, []string{"label"}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thirdeye_alerts_triggered_total",
			Help: "Count of intruder alerts that reached the triggered state.",
		}),
		AlertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thirdeye_alerts_suppressed_total",
			Help: "Count of alert checks suppressed, partitioned by reason.",
		}, []string{"reason"}),
		HeartbeatsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thirdeye_heartbeats_published_total",
			Help: "Count of liveness pings published to the broker.",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thirdeye_mqtt_connected",
			Help: "1 while the MQTT broker connection is up, 0 otherwise.",
		}),
		JobsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thirdeye_jobs_dropped_total",
			Help: "Count of background jobs dropped because the queue was full.",
		}),
	}

	collectors := []prometheus.Collector{
		metrics.FrameProcessSeconds,
		metrics.MotionDetections,
		metrics.ObjectDetections,
		metrics.AlertsTriggered,
		metrics.AlertsSuppressed,
		metrics.HeartbeatsPublished,
		metrics.MQTTConnected,
		metrics.JobsDropped,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return nil, err
		}
	}

	return metrics, nil
}

// RegisterMetricsHandlers adds metrics routes to the provided mux
func RegisterMetricsHandlers(mux *http.ServeMux) {
	mux.Handle(metricsPath, promhttp.Handler())
}

// ObserveFrameProcess records the processing time of one frame.
func (m *Metrics) ObserveFrameProcess(seconds float64) {
	if m == nil {
		return
	}
	m.FrameProcessSeconds.Observe(seconds)
}

// IncrementMotionDetections counts persisted motion regions.
func (m *Metrics) IncrementMotionDetections(n int) {
	if m == nil {
		return
	}
	m.MotionDetections.Add(float64(n))
}

// IncrementObjectDetections counts tracked detections for a class label.
func (m *Metrics) IncrementObjectDetections(label string) {
	if m == nil {
		return
	}
	m.ObjectDetections.WithLabelValues(label).Inc()
}

// IncrementAlertsTriggered counts a finalized alert.
func (m *Metrics) IncrementAlertsTriggered() {
	if m == nil {
		return
	}
	m.AlertsTriggered.Inc()
}

// IncrementAlertsSuppressed counts a suppressed alert check by reason.
func (m *Metrics) IncrementAlertsSuppressed(reason string) {
	if m == nil {
		return
	}
	m.AlertsSuppressed.WithLabelValues(reason).Inc()
}

// IncrementHeartbeatsPublished counts a published liveness ping.
func (m *Metrics) IncrementHeartbeatsPublished() {
	if m == nil {
		return
	}
	m.HeartbeatsPublished.Inc()
}

// UpdateMQTTConnectionStatus records the broker connection state.
func (m *Metrics) UpdateMQTTConnectionStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.MQTTConnected.Set(1)
	} else {
		m.MQTTConnected.Set(0)
	}
}

// IncrementJobsDropped counts a job rejected by a full queue.
func (m *Metrics) IncrementJobsDropped() {
	if m == nil {
		return
	}
	m.JobsDropped.Inc()
}
