// Package metrics exposes the agent's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lanwatch_agent"

// Recorder owns the agent's collectors on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	heartbeats      *prometheus.CounterVec
	retryDelay      prometheus.Gauge
	segments        prometheus.Gauge
	scans           *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	discovered      prometheus.Counter
	reports         *prometheus.CounterVec
	flapsSuppressed prometheus.Counter
	probeDuration   *prometheus.HistogramVec
	commands        *prometheus.CounterVec
}

// New registers the agent collectors plus the Go and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		heartbeats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat attempts by result.",
		}, []string{"result"}),
		retryDelay: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heartbeat_retry_delay_seconds",
			Help:      "Current heartbeat retry delay.",
		}),
		segments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segments",
			Help:      "Segments currently assigned to the agent.",
		}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Segment scans by result.",
		}, []string{"result"}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of segment scans.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		discovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovered_devices_total",
			Help:      "Devices found by segment scans.",
		}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reports_total",
			Help:      "Status reports produced, by reported status.",
		}, []string{"status"}),
		flapsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flaps_suppressed_total",
			Help:      "Offline readings reported as online while below the failure threshold.",
		}),
		probeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Probe latency by check type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"check_type"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Remote commands handled, by type and outcome.",
		}, []string{"type", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// HeartbeatSucceeded counts a successful heartbeat and records the retry
// delay it reset to.
func (r *Recorder) HeartbeatSucceeded(delay time.Duration) {
	if r == nil {
		return
	}
	r.heartbeats.WithLabelValues("success").Inc()
	r.retryDelay.Set(delay.Seconds())
}

// HeartbeatFailed counts a failed heartbeat and records the next retry delay.
func (r *Recorder) HeartbeatFailed(nextDelay time.Duration) {
	if r == nil {
		return
	}
	r.heartbeats.WithLabelValues("failure").Inc()
	r.retryDelay.Set(nextDelay.Seconds())
}

func (r *Recorder) SetSegments(n int) {
	if r == nil {
		return
	}
	r.segments.Set(float64(n))
}

// ScanFinished records one segment scan. result is "success", "empty" or "error".
func (r *Recorder) ScanFinished(result string, elapsed time.Duration, devices int) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(result).Inc()
	r.scanDuration.Observe(elapsed.Seconds())
	r.discovered.Add(float64(devices))
}

func (r *Recorder) StatusReported(status string) {
	if r == nil {
		return
	}
	r.reports.WithLabelValues(status).Inc()
}

func (r *Recorder) FlapSuppressed() {
	if r == nil {
		return
	}
	r.flapsSuppressed.Inc()
}

func (r *Recorder) ProbeObserved(checkType string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.probeDuration.WithLabelValues(checkType).Observe(elapsed.Seconds())
}

func (r *Recorder) CommandHandled(commandType, status string) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(commandType, status).Inc()
}
