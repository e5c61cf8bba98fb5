package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/id"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// SeedDevice is a device declared in configuration.
type SeedDevice struct {
	Name                    string
	Address                 string
	Port                    int
	UseHTTPS                bool
	Login                   string
	Password                string
	IsPrimary               bool
	MaxReconnectionAttempts int
}

// DeviceDefaults fill fields a device leaves unset.
type DeviceDefaults struct {
	ConnectionTimeout       time.Duration
	RequestTimeout          time.Duration
	MaxReconnectionAttempts int
}

type SeedResult struct {
	Created int
	Updated int
}

// SeedDevicesUseCase upserts configured devices by name. Health state of
// existing devices is preserved.
type SeedDevicesUseCase struct {
	devices  device.DeviceRepository
	defaults DeviceDefaults
	logger   logger.Interface
	now      func() time.Time
}

func NewSeedDevicesUseCase(devices device.DeviceRepository, defaults DeviceDefaults, logger logger.Interface) *SeedDevicesUseCase {
	return &SeedDevicesUseCase{
		devices:  devices,
		defaults: defaults,
		logger:   logger,
		now:      biztime.NowUTC,
	}
}

func (uc *SeedDevicesUseCase) Execute(ctx context.Context, seeds []SeedDevice) (*SeedResult, error) {
	res := &SeedResult{}
	for _, s := range seeds {
		existing, err := uc.devices.GetByName(ctx, s.Name)
		if err != nil {
			return res, fmt.Errorf("failed to look up device %q: %w", s.Name, err)
		}

		if existing != nil {
			if err := uc.update(ctx, existing, s); err != nil {
				return res, err
			}
			res.Updated++
			continue
		}

		if err := uc.create(ctx, s); err != nil {
			return res, err
		}
		res.Created++
	}

	if len(seeds) > 0 {
		uc.logger.Infow("configured devices seeded", "created", res.Created, "updated", res.Updated)
	}
	return res, nil
}

func (uc *SeedDevicesUseCase) create(ctx context.Context, s SeedDevice) error {
	sid, err := id.NewDeviceID()
	if err != nil {
		return fmt.Errorf("failed to generate device id: %w", err)
	}

	d, err := device.NewDevice(device.Params{
		SID:                     sid,
		Name:                    s.Name,
		Address:                 s.Address,
		Port:                    s.Port,
		UseHTTPS:                s.UseHTTPS,
		Login:                   s.Login,
		Password:                s.Password,
		IsPrimary:               s.IsPrimary,
		MaxReconnectionAttempts: s.MaxReconnectionAttempts,
	}, uc.now())
	if err != nil {
		return fmt.Errorf("invalid device %q: %w", s.Name, err)
	}
	d.ApplyDefaults(uc.defaults.ConnectionTimeout, uc.defaults.RequestTimeout, uc.defaults.MaxReconnectionAttempts)

	if err := uc.devices.Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create device %q: %w", s.Name, err)
	}
	uc.logger.Infow("device registered", "device_id", d.SID(), "name", d.Name())
	return nil
}

func (uc *SeedDevicesUseCase) update(ctx context.Context, d *device.Device, s SeedDevice) error {
	now := uc.now()
	var invalid error
	err := device.ApplyAndSave(ctx, uc.devices, d, func(d *device.Device) (bool, error) {
		if invalid = d.UpdateEndpoint(s.Address, s.Port, s.UseHTTPS, s.Login, s.Password, now); invalid != nil {
			return false, invalid
		}
		d.SetPrimary(s.IsPrimary, now)
		return true, nil
	})
	if invalid != nil {
		return fmt.Errorf("invalid device %q: %w", s.Name, invalid)
	}
	if err != nil {
		return fmt.Errorf("failed to update device %q: %w", s.Name, err)
	}
	return nil
}
