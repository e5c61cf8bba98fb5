package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// MonitoringSweepJob runs one sweep per tick while monitoring is running.
type MonitoringSweepJob struct {
	monitor MonitorControl
	logger  logger.Interface
}

func NewMonitoringSweepJob(monitor MonitorControl, logger logger.Interface) *MonitoringSweepJob {
	return &MonitoringSweepJob{monitor: monitor, logger: logger}
}

// Execute returns the number of devices checked. A stopped monitor or an
// overlapping sweep is a quiet no-op.
func (j *MonitoringSweepJob) Execute(ctx context.Context) (int, error) {
	stats, err := j.monitor.Sweep(ctx)
	switch {
	case errors.Is(err, monitoring.ErrNotRunning):
		return 0, nil
	case errors.Is(err, monitoring.ErrSweepInProgress):
		j.logger.Debugw("previous sweep still running, skipping tick")
		return 0, nil
	case err != nil:
		return 0, err
	}
	return stats.DevicesChecked, nil
}

// SessionCleaner ends sessions idle beyond the configured timeout.
type SessionCleaner interface {
	CleanupIdleSessions(ctx context.Context) (int, error)
}

type SessionCleanupJob struct {
	cleaner SessionCleaner
}

func NewSessionCleanupJob(cleaner SessionCleaner) *SessionCleanupJob {
	return &SessionCleanupJob{cleaner: cleaner}
}

func (j *SessionCleanupJob) Execute(ctx context.Context) (int, error) {
	return j.cleaner.CleanupIdleSessions(ctx)
}

// StatisticsSink receives the periodic ingestion statistics.
type StatisticsSink interface {
	PublishStatistics(counts map[device.Status]int64, total, last24h int64)
}

// IngestionStatisticsJob computes device counts and ingestion volume.
type IngestionStatisticsJob struct {
	devices device.DeviceRepository
	logs    device.LogStore
	sink    StatisticsSink
	logger  logger.Interface
	now     func() time.Time
}

func NewIngestionStatisticsJob(devices device.DeviceRepository, logs device.LogStore, sink StatisticsSink, logger logger.Interface) *IngestionStatisticsJob {
	return &IngestionStatisticsJob{
		devices: devices,
		logs:    logs,
		sink:    sink,
		logger:  logger,
		now:     biztime.NowUTC,
	}
}

// Execute returns the number of entries stored in the last 24 hours.
func (j *IngestionStatisticsJob) Execute(ctx context.Context) (int, error) {
	counts, err := j.devices.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	total, err := j.logs.Count(ctx)
	if err != nil {
		return 0, err
	}
	last24h, err := j.logs.CountSince(ctx, j.now().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}

	if j.sink != nil {
		j.sink.PublishStatistics(counts, total, last24h)
	}

	j.logger.Infow("ingestion statistics",
		"devices_active", counts[device.StatusActive],
		"devices_inactive", counts[device.StatusInactive],
		"devices_maintenance", counts[device.StatusMaintenance],
		"devices_error", counts[device.StatusError],
		"logs_total", total,
		"logs_last_24h", last24h)
	return int(last24h), nil
}
