package usecases

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// MaintenanceCommand moves a device in or out of maintenance.
type MaintenanceCommand struct {
	DeviceRef string
	Enabled   bool
}

// ManageDeviceUseCase handles the operator actions that change whether a
// device is polled: enable, disable and maintenance.
type ManageDeviceUseCase struct {
	resolver deviceResolver
	devices  device.DeviceRepository
	audits   device.AuditRepository
	conn     Connector
	backoff  BackoffResetter
	logger   logger.Interface
	now      func() time.Time
}

func NewManageDeviceUseCase(
	devices device.DeviceRepository,
	audits device.AuditRepository,
	conn Connector,
	backoff BackoffResetter,
	logger logger.Interface,
) *ManageDeviceUseCase {
	return &ManageDeviceUseCase{
		resolver: deviceResolver{devices: devices},
		devices:  devices,
		audits:   audits,
		conn:     conn,
		backoff:  backoff,
		logger:   logger,
		now:      biztime.NowUTC,
	}
}

// Enable re-enables a device and clears its failure streak.
func (uc *ManageDeviceUseCase) Enable(ctx context.Context, cmd DeviceCommand) (*dto.DeviceDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.save(ctx, d, func(d *device.Device) (bool, error) {
		d.Enable(now)
		return true, nil
	}); err != nil {
		return nil, err
	}
	if uc.backoff != nil {
		uc.backoff.ResetBackoff(d.ID())
	}

	uc.audit(ctx, d, device.SeverityInfo, "device enabled by operator")
	uc.logger.Infow("device enabled", "device_id", d.SID(), "name", d.Name())
	return dto.ToDeviceDTO(d, uc.conn.IsConnected(d.ID())), nil
}

// Disable stops polling a device and ends its session.
func (uc *ManageDeviceUseCase) Disable(ctx context.Context, cmd DeviceCommand) (*dto.DeviceDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if err := uc.save(ctx, d, func(d *device.Device) (bool, error) {
		d.Disable(now)
		return true, nil
	}); err != nil {
		return nil, err
	}

	if out := uc.conn.Disconnect(ctx, d); !out.Success {
		uc.logger.Warnw("failed to disconnect disabled device", "device_id", d.SID(), "message", out.Message)
	}

	uc.audit(ctx, d, device.SeverityWarning, "device disabled by operator")
	uc.logger.Infow("device disabled", "device_id", d.SID(), "name", d.Name())
	return dto.ToDeviceDTO(d, false), nil
}

// SetMaintenance toggles maintenance. The enabled flag is left untouched.
func (uc *ManageDeviceUseCase) SetMaintenance(ctx context.Context, cmd MaintenanceCommand) (*dto.DeviceDTO, error) {
	d, err := uc.resolver.resolve(ctx, cmd.DeviceRef)
	if err != nil {
		return nil, err
	}
	if d.InMaintenance() == cmd.Enabled {
		return dto.ToDeviceDTO(d, uc.conn.IsConnected(d.ID())), nil
	}

	now := uc.now()
	if err := uc.save(ctx, d, func(d *device.Device) (bool, error) {
		d.SetMaintenance(cmd.Enabled, now)
		return true, nil
	}); err != nil {
		return nil, err
	}

	msg := "device left maintenance"
	if cmd.Enabled {
		msg = "device entered maintenance"
	}
	uc.audit(ctx, d, device.SeverityInfo, msg)
	uc.logger.Infow(msg, "device_id", d.SID(), "name", d.Name())
	return dto.ToDeviceDTO(d, uc.conn.IsConnected(d.ID())), nil
}

// save applies mutate on top of concurrent health writes from the sweep.
func (uc *ManageDeviceUseCase) save(ctx context.Context, d *device.Device, mutate device.Mutation) error {
	if err := device.ApplyAndSave(ctx, uc.devices, d, mutate); err != nil {
		if stderrors.Is(err, device.ErrDeviceNotFound) {
			return errors.NewNotFoundError("device not found")
		}
		uc.logger.Errorw("failed to update device", "device_id", d.SID(), "error", err)
		return errors.NewInternalError("failed to update device")
	}
	return nil
}

func (uc *ManageDeviceUseCase) audit(ctx context.Context, d *device.Device, severity device.Severity, message string) {
	entry := device.NewAuditEntry(d.ID(), device.AuditMaintenance, severity, message, map[string]any{
		"status":     string(d.Status()),
		"is_enabled": d.IsEnabled(),
	}, uc.now())
	if err := uc.audits.Record(ctx, entry); err != nil {
		uc.logger.Warnw("failed to record audit entry", "device_id", d.SID(), "error", err)
	}
}
