package usecases

import (
	"context"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// DeviceCommand addresses one device by SID or numeric id.
type DeviceCommand struct {
	DeviceRef string
}

// ConnectDeviceUseCase authenticates against a device on operator request.
type ConnectDeviceUseCase struct {
	resolver deviceResolver
	conn     Connector
	backoff  BackoffResetter
	logger   logger.Interface
}

func NewConnectDeviceUseCase(devices device.DeviceRepository, conn Connector, backoff BackoffResetter, logger logger.Interface) *ConnectDeviceUseCase {
	return &ConnectDeviceUseCase{
		resolver: deviceResolver{devices: devices},
		conn:     conn,
		backoff:  backoff,
		logger:   logger,
	}
}

func (uc *ConnectDeviceUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*dto.ConnectionResultDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}
	if !d.IsEnabled() {
		return nil, errors.NewDeviceDisabledError("device is disabled", d.SID())
	}

	out := uc.conn.Connect(ctx, d)
	if !out.Success {
		uc.logger.Warnw("manual connect failed", "device_id", d.SID(), "kind", out.Kind, "message", out.Message)
		return nil, outcomeError(out)
	}

	if uc.backoff != nil {
		uc.backoff.ResetBackoff(d.ID())
	}
	return dto.ToConnectionResultDTO(d, out, true), nil
}

// DisconnectDeviceUseCase ends the active session of a device. It succeeds
// for devices that are not connected.
type DisconnectDeviceUseCase struct {
	resolver deviceResolver
	conn     Connector
	logger   logger.Interface
}

func NewDisconnectDeviceUseCase(devices device.DeviceRepository, conn Connector, logger logger.Interface) *DisconnectDeviceUseCase {
	return &DisconnectDeviceUseCase{
		resolver: deviceResolver{devices: devices},
		conn:     conn,
		logger:   logger,
	}
}

func (uc *DisconnectDeviceUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*dto.ConnectionResultDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}

	out := uc.conn.Disconnect(ctx, d)
	if !out.Success {
		return nil, outcomeError(out)
	}
	return dto.ToConnectionResultDTO(d, out, false), nil
}
