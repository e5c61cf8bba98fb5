// Package metrics exports Prometheus metrics for device monitoring.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/accesshub/accesshub/internal/domain/device"
)

var (
	// Connection metrics
	ConnectionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_device_connection_attempts_total",
			Help: "Total number of device authentication attempts",
		},
		[]string{"device", "result"},
	)

	// Sync metrics
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_sync_cycles_total",
			Help: "Total number of log sync cycles",
		},
		[]string{"device", "result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accesshub_sync_duration_seconds",
			Help:    "Duration of one device sync cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LogsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_logs_ingested_total",
			Help: "Total number of newly stored access log entries",
		},
		[]string{"device"},
	)

	LogGaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_log_gaps_total",
			Help: "Total number of detected gaps in device log sequences",
		},
		[]string{"device"},
	)

	AccessEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accesshub_access_events_total",
			Help: "Access events observed after storage, by event type",
		},
		[]string{"event"},
	)

	// Sweep metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "accesshub_sweep_duration_seconds",
			Help:    "Duration of a monitoring sweep in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SweepDevices = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accesshub_sweep_devices",
			Help: "Devices per outcome in the last sweep",
		},
		[]string{"outcome"},
	)

	// Statistics job
	DevicesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accesshub_devices",
			Help: "Registered devices by status",
		},
		[]string{"status"},
	)

	LogsLast24h = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accesshub_logs_ingested_last_24h",
			Help: "Access log entries stored during the last 24 hours",
		},
	)

	LogsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accesshub_logs_stored",
			Help: "Access log entries currently stored",
		},
	)

	RealtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "accesshub_realtime_subscribers",
			Help: "Connected realtime subscribers",
		},
	)
)

func result(kind device.FailureKind) string {
	if kind == device.FailureNone {
		return "success"
	}
	return string(kind)
}

// Recorder feeds engine measurements into the package metrics.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (Recorder) ObserveConnection(deviceSID string, kind device.FailureKind) {
	ConnectionAttempts.WithLabelValues(deviceSID, result(kind)).Inc()
}

func (Recorder) ObserveSync(deviceSID string, kind device.FailureKind, entries, gaps int, took time.Duration) {
	SyncCycles.WithLabelValues(deviceSID, result(kind)).Inc()
	SyncDuration.Observe(took.Seconds())
	if entries > 0 {
		LogsIngested.WithLabelValues(deviceSID).Add(float64(entries))
	}
	if gaps > 0 {
		LogGaps.WithLabelValues(deviceSID).Add(float64(gaps))
	}
}

func (Recorder) ObserveSweep(checked, connected, failed, skipped int, took time.Duration) {
	SweepDuration.Observe(took.Seconds())
	SweepDevices.WithLabelValues("checked").Set(float64(checked))
	SweepDevices.WithLabelValues("connected").Set(float64(connected))
	SweepDevices.WithLabelValues("error").Set(float64(failed))
	SweepDevices.WithLabelValues("skipped").Set(float64(skipped))
}

// OnLogsIngested counts stored events by type.
func (Recorder) OnLogsIngested(_ context.Context, batch device.IngestedBatch) {
	for _, e := range batch.Entries {
		AccessEvents.WithLabelValues(e.EventType.String()).Inc()
	}
}

// SetDeviceCounts replaces the per-status device gauges.
func SetDeviceCounts(counts map[device.Status]int64) {
	for _, s := range []device.Status{device.StatusActive, device.StatusInactive, device.StatusMaintenance, device.StatusError} {
		DevicesByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// PublishStatistics implements the ingestion statistics sink.
func (Recorder) PublishStatistics(counts map[device.Status]int64, total, last24h int64) {
	SetDeviceCounts(counts)
	LogsTotal.Set(float64(total))
	LogsLast24h.Set(float64(last24h))
}
