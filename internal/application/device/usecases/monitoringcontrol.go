package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
	apperrors "github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// MonitorControl is the lifecycle surface of the monitoring loop.
type MonitorControl interface {
	Start() bool
	Stop() bool
	Status() monitoring.MonitorStatus
	Sweep(ctx context.Context) (monitoring.SweepStats, error)
}

type MonitoringActionResult struct {
	Changed bool                     `json:"changed"`
	Status  monitoring.MonitorStatus `json:"status"`
}

// MonitoringControlUseCase starts, stops and reports the monitoring loop.
type MonitoringControlUseCase struct {
	monitor      MonitorControl
	devices      device.DeviceRepository
	sweepTimeout time.Duration
	logger       logger.Interface
}

func NewMonitoringControlUseCase(monitor MonitorControl, devices device.DeviceRepository, sweepTimeout time.Duration, logger logger.Interface) *MonitoringControlUseCase {
	if sweepTimeout <= 0 {
		sweepTimeout = 5 * time.Minute
	}
	return &MonitoringControlUseCase{
		monitor:      monitor,
		devices:      devices,
		sweepTimeout: sweepTimeout,
		logger:       logger,
	}
}

// Start moves the loop to running and kicks off a first sweep in the
// background. Starting a running loop is not an error.
func (uc *MonitoringControlUseCase) Start(ctx context.Context) *MonitoringActionResult {
	changed := uc.monitor.Start()
	if changed {
		detached := context.WithoutCancel(ctx)
		goroutine.SafeGo(uc.logger, "initial-sweep", func() {
			sweepCtx, cancel := context.WithTimeout(detached, uc.sweepTimeout)
			defer cancel()
			if _, err := uc.monitor.Sweep(sweepCtx); err != nil &&
				!errors.Is(err, monitoring.ErrSweepInProgress) && !errors.Is(err, monitoring.ErrNotRunning) {
				uc.logger.Errorw("initial sweep failed", "error", err)
			}
		})
	}
	return &MonitoringActionResult{Changed: changed, Status: uc.monitor.Status()}
}

// Stop moves the loop to stopped. Stopping a stopped loop is not an error.
func (uc *MonitoringControlUseCase) Stop() *MonitoringActionResult {
	changed := uc.monitor.Stop()
	return &MonitoringActionResult{Changed: changed, Status: uc.monitor.Status()}
}

func (uc *MonitoringControlUseCase) Status(ctx context.Context) (*dto.MonitoringStatusDTO, error) {
	counts, err := uc.devices.CountByStatus(ctx)
	if err != nil {
		uc.logger.Errorw("failed to count devices", "error", err)
		return nil, apperrors.NewInternalError("failed to read monitoring status")
	}

	out := &dto.MonitoringStatusDTO{
		MonitorStatus:   uc.monitor.Status(),
		DevicesByStatus: make(map[string]int64, len(counts)),
	}
	for status, n := range counts {
		out.DevicesByStatus[string(status)] = n
		out.DevicesTotal += n
	}
	return out, nil
}
