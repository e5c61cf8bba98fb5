// Package monitoring implements the device synchronization engine: session
// lifecycle, cursor based log ingestion and the periodic sweep.
package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
)

// DeviceTransport is one authenticated channel to one device.
type DeviceTransport interface {
	Authenticate(ctx context.Context) error
	// IsConnected is a local check of the held token; it never hits the network.
	IsConnected() bool
	Token() string
	FetchAccessLogs(ctx context.Context, afterID int64) ([]device.LogEntry, error)
	FetchStatus(ctx context.Context) (map[string]any, error)
	FetchUsers(ctx context.Context) ([]deviceprotocol.User, error)
	FetchGroups(ctx context.Context) ([]deviceprotocol.Group, error)
	// Disconnect drops the token locally.
	Disconnect()
	Close()
}

// TransportFactory builds a transport for the current endpoint of d.
type TransportFactory func(d *device.Device) DeviceTransport

// LogObserver is notified after a batch is durably stored. Calls happen on
// their own goroutine and must tolerate re-delivery.
type LogObserver interface {
	OnLogsIngested(ctx context.Context, batch device.IngestedBatch)
}

// Recorder receives operational measurements.
type Recorder interface {
	ObserveConnection(deviceSID string, kind device.FailureKind)
	ObserveSync(deviceSID string, kind device.FailureKind, entries, gaps int, took time.Duration)
	ObserveSweep(checked, connected, failed, skipped int, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveConnection(string, device.FailureKind)                    {}
func (nopRecorder) ObserveSync(string, device.FailureKind, int, int, time.Duration) {}
func (nopRecorder) ObserveSweep(int, int, int, int, time.Duration)                  {}

// failureKind classifies a transport error. Transports expose the kind via
// a FailureKind method; anything else is internal.
func failureKind(err error) device.FailureKind {
	var kinded interface{ FailureKind() device.FailureKind }
	if errors.As(err, &kinded) {
		return kinded.FailureKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return device.FailureTimeout
	}
	return device.FailureInternal
}
