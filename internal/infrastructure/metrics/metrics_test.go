package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/accesshub/accesshub/internal/domain/device"
)

func TestRecorder_ObserveSync(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(LogsIngested.WithLabelValues("dev_metrics"))

	r.ObserveSync("dev_metrics", device.FailureNone, 4, 1, 20*time.Millisecond)
	r.ObserveSync("dev_metrics", device.FailureTimeout, 0, 0, time.Second)

	assert.Equal(t, before+4, testutil.ToFloat64(LogsIngested.WithLabelValues("dev_metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(LogGaps.WithLabelValues("dev_metrics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SyncCycles.WithLabelValues("dev_metrics", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SyncCycles.WithLabelValues("dev_metrics", "success")))
}

func TestRecorder_ObserveSweep(t *testing.T) {
	NewRecorder().ObserveSweep(5, 3, 1, 1, time.Second)

	assert.Equal(t, 5.0, testutil.ToFloat64(SweepDevices.WithLabelValues("checked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SweepDevices.WithLabelValues("error")))
}

func TestRecorder_CountsEvents(t *testing.T) {
	denied := testutil.ToFloat64(AccessEvents.WithLabelValues("access_denied"))

	NewRecorder().OnLogsIngested(context.Background(), device.IngestedBatch{Entries: []device.LogEntry{
		{EventType: device.EventAccessDenied},
		{EventType: device.EventAccessDenied},
		{EventType: device.EventAccessGranted},
	}})

	assert.Equal(t, denied+2, testutil.ToFloat64(AccessEvents.WithLabelValues("access_denied")))
}

func TestSetDeviceCounts(t *testing.T) {
	SetDeviceCounts(map[device.Status]int64{device.StatusActive: 3, device.StatusError: 1})

	assert.Equal(t, 3.0, testutil.ToFloat64(DevicesByStatus.WithLabelValues("active")))
	assert.Equal(t, 0.0, testutil.ToFloat64(DevicesByStatus.WithLabelValues("maintenance")))
}
