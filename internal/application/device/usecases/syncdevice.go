package usecases

import (
	"context"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// SyncDeviceUseCase runs one sync cycle outside the sweep. It shares the
// cursor with the sweep so the two never ingest the same batch twice.
type SyncDeviceUseCase struct {
	resolver deviceResolver
	syncer   monitoring.Syncer
	logger   logger.Interface
}

func NewSyncDeviceUseCase(devices device.DeviceRepository, syncer monitoring.Syncer, logger logger.Interface) *SyncDeviceUseCase {
	return &SyncDeviceUseCase{
		resolver: deviceResolver{devices: devices},
		syncer:   syncer,
		logger:   logger,
	}
}

func (uc *SyncDeviceUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*dto.SyncResultDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}
	if !d.IsEnabled() {
		return nil, errors.NewDeviceDisabledError("device is disabled", d.SID())
	}
	if d.InMaintenance() {
		return nil, errors.NewValidationError("device is in maintenance", d.SID())
	}

	res := uc.syncer.Sync(ctx, d)
	if !res.Success {
		uc.logger.Warnw("on-demand sync failed", "device_id", d.SID(), "kind", res.Kind, "message", res.Message)
		return nil, outcomeError(device.Failed(res.Kind, res.Message))
	}
	return dto.ToSyncResultDTO(res), nil
}
