package device

import (
	"context"
	"errors"
)

// maxSaveAttempts bounds how often a mutation is replayed after losing a
// version race.
const maxSaveAttempts = 5

// Mutation changes a device and reports whether it must be saved. It may run
// more than once, each time against freshly loaded state.
type Mutation func(d *Device) (changed bool, err error)

// ApplyAndSave applies mutate to d and saves it with a version check. When
// another writer saved the device first, d is reloaded and mutate is
// replayed on the stored state. On success d holds what was saved.
func ApplyAndSave(ctx context.Context, repo DeviceRepository, d *Device, mutate Mutation) error {
	for attempt := 1; ; attempt++ {
		changed, err := mutate(d)
		if err != nil || !changed {
			return err
		}

		err = repo.Update(ctx, d)
		if !errors.Is(err, ErrVersionConflict) || attempt == maxSaveAttempts {
			return err
		}

		if err := Reload(ctx, repo, d); err != nil {
			return err
		}
	}
}

// Reload replaces d with the stored state of the same device.
func Reload(ctx context.Context, repo DeviceRepository, d *Device) error {
	fresh, err := repo.GetByID(ctx, d.ID())
	if err != nil {
		return err
	}
	if fresh == nil {
		return ErrDeviceNotFound
	}
	*d = *fresh
	return nil
}
