// Package usecases implements the administrative operations on devices,
// their stored logs and the monitoring loop.
package usecases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/id"
)

// Connector is the part of the connection service the admin surface uses.
type Connector interface {
	Connect(ctx context.Context, d *device.Device) device.Outcome
	Disconnect(ctx context.Context, d *device.Device) device.Outcome
	EnsureConnected(ctx context.Context, d *device.Device) (monitoring.DeviceTransport, device.Outcome)
	RecordFetchFailure(ctx context.Context, d *device.Device, op string, err error) device.Outcome
	RecordActivity(ctx context.Context, d *device.Device, ok bool)
	IsConnected(deviceID uint) bool
}

// BackoffResetter clears the sweep backoff of a device.
type BackoffResetter interface {
	ResetBackoff(deviceID uint)
}

// RemoteStatus is the last status payload read from a device.
type RemoteStatus struct {
	Status    map[string]any
	FetchedAt time.Time
}

// StatusCache keeps remote status payloads keyed by device SID.
type StatusCache interface {
	Set(ctx context.Context, sid string, status map[string]any) error
	GetMany(ctx context.Context, sids []string) (map[string]*RemoteStatus, error)
}

// deviceResolver looks devices up by prefixed SID or numeric id.
type deviceResolver struct {
	devices device.DeviceRepository
}

func (r deviceResolver) resolve(ctx context.Context, ref string) (*device.Device, error) {
	if ref == "" {
		return nil, errors.NewValidationError("device ID is required")
	}

	var (
		d   *device.Device
		err error
	)
	if id.ValidatePrefixed(id.PrefixDevice, ref) {
		d, err = r.devices.GetBySID(ctx, ref)
	} else {
		n, perr := strconv.ParseUint(ref, 10, 64)
		if perr != nil || n == 0 {
			return nil, errors.NewValidationError(
				fmt.Sprintf("invalid device ID format, expected %s_xxxxx or a numeric id", id.PrefixDevice))
		}
		d, err = r.devices.GetByID(ctx, uint(n))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if d == nil {
		return nil, errors.NewNotFoundError("device not found")
	}
	return d, nil
}

// resolveEnabled is resolve plus the disabled check every remote call needs.
func (r deviceResolver) resolveEnabled(ctx context.Context, ref string) (*device.Device, error) {
	d, err := r.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !d.IsEnabled() {
		return nil, errors.NewDeviceDisabledError("device is disabled", d.SID())
	}
	return d, nil
}

// outcomeError maps a failed outcome onto the admin error taxonomy.
func outcomeError(out device.Outcome) error {
	switch out.Kind {
	case device.FailureDisabled, device.FailureDisabledByThreshold:
		return errors.NewDeviceDisabledError(out.Message)
	case device.FailureNotFound:
		return errors.NewNotFoundError(out.Message)
	case device.FailurePersistence, device.FailureInternal:
		return errors.NewInternalError("failed to process device request")
	default:
		return errors.NewDeviceUnavailableError(out.Message, string(out.Kind))
	}
}

// remoteAccess runs one call against a live transport and records the
// result on the device health.
type remoteAccess struct {
	deviceResolver
	conn Connector
}

func (r remoteAccess) withTransport(ctx context.Context, ref, op string, fn func(t monitoring.DeviceTransport) error) (*device.Device, error) {
	d, err := r.resolveEnabled(ctx, ref)
	if err != nil {
		return nil, err
	}

	t, out := r.conn.EnsureConnected(ctx, d)
	if !out.Success {
		return d, outcomeError(out)
	}

	if err := fn(t); err != nil {
		return d, outcomeError(r.conn.RecordFetchFailure(ctx, d, op, err))
	}
	r.conn.RecordActivity(ctx, d, true)
	return d, nil
}
