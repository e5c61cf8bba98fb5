package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device is not found.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceDisabled is returned when an operation targets a disabled device.
	ErrDeviceDisabled = errors.New("device is disabled")

	// ErrInvalidDevice wraps attribute validation failures.
	ErrInvalidDevice = errors.New("invalid device")

	// ErrVersionConflict is returned when a device was saved by another
	// writer since it was loaded.
	ErrVersionConflict = errors.New("version conflict: device was modified")

	// ErrSessionNotActive is returned when refreshing an ended session.
	ErrSessionNotActive = errors.New("session is not active")
)
