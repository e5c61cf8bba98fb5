package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

type cachedTransport struct {
	key       string
	transport DeviceTransport
}

// ConnectionService bridges transport authentication to persisted device
// health and session state. It owns the transport cache; connect and
// disconnect for one device never run concurrently.
type ConnectionService struct {
	devices  device.DeviceRepository
	sessions device.SessionRepository
	audits   device.AuditRepository
	factory  TransportFactory
	recorder Recorder
	logger   logger.Interface
	now      func() time.Time

	locks *keyedMutex

	mu         sync.Mutex
	transports map[uint]cachedTransport
}

func NewConnectionService(
	devices device.DeviceRepository,
	sessions device.SessionRepository,
	audits device.AuditRepository,
	factory TransportFactory,
	recorder Recorder,
	log logger.Interface,
) *ConnectionService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ConnectionService{
		devices:    devices,
		sessions:   sessions,
		audits:     audits,
		factory:    factory,
		recorder:   recorder,
		logger:     log,
		now:        biztime.NowUTC,
		locks:      newKeyedMutex(),
		transports: make(map[uint]cachedTransport),
	}
}

// transportFor returns the cached transport for d, replacing it when the
// endpoint changed since it was built.
func (s *ConnectionService) transportFor(d *device.Device) DeviceTransport {
	key := d.ClientKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.transports[d.ID()]; ok {
		if cached.key == key {
			return cached.transport
		}
		s.logger.Infow("device endpoint changed, replacing transport", "device_id", d.ID())
		cached.transport.Close()
	}

	t := s.factory(d)
	s.transports[d.ID()] = cachedTransport{key: key, transport: t}
	return t
}

func (s *ConnectionService) cachedTransport(deviceID uint) DeviceTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.transports[deviceID]; ok {
		return cached.transport
	}
	return nil
}

// IsConnected reports whether a live token is held for the device.
func (s *ConnectionService) IsConnected(deviceID uint) bool {
	t := s.cachedTransport(deviceID)
	return t != nil && t.IsConnected()
}

// Connect authenticates d and records the result. d is reloaded first so a
// device disabled since it was read is never contacted.
func (s *ConnectionService) Connect(ctx context.Context, d *device.Device) device.Outcome {
	unlock := s.locks.Lock(d.ID())
	defer unlock()

	if out, ok := s.reloadLocked(ctx, d); !ok {
		return out
	}
	_, out := s.connectLocked(ctx, d)
	return out
}

// EnsureConnected returns a live transport for d, authenticating only when
// the held token is missing or expired.
func (s *ConnectionService) EnsureConnected(ctx context.Context, d *device.Device) (DeviceTransport, device.Outcome) {
	unlock := s.locks.Lock(d.ID())
	defer unlock()

	if out, ok := s.reloadLocked(ctx, d); !ok {
		return nil, out
	}
	if t := s.transportFor(d); t.IsConnected() {
		return t, device.Succeeded("already connected")
	}
	return s.connectLocked(ctx, d)
}

// reloadLocked refreshes d from storage and rejects disabled devices.
func (s *ConnectionService) reloadLocked(ctx context.Context, d *device.Device) (device.Outcome, bool) {
	if err := device.Reload(ctx, s.devices, d); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return device.Failed(device.FailureNotFound, "device not found"), false
		}
		s.logger.Errorw("failed to reload device", "device_id", d.ID(), "error", err)
		return device.Failed(device.FailurePersistence, "failed to load device"), false
	}
	if !d.IsEnabled() {
		return device.Failed(device.FailureDisabled, "device is disabled"), false
	}
	return device.Outcome{}, true
}

func (s *ConnectionService) connectLocked(ctx context.Context, d *device.Device) (DeviceTransport, device.Outcome) {
	t := s.transportFor(d)

	if err := t.Authenticate(ctx); err != nil {
		kind := failureKind(err)
		s.recorder.ObserveConnection(d.SID(), kind)
		return nil, s.applyFailure(ctx, d, kind, fmt.Sprintf("authentication failed: %v", err))
	}

	now := s.now()
	if err := s.activateSession(ctx, d.ID(), t.Token(), now); err != nil {
		s.logger.Errorw("failed to store device session", "device_id", d.ID(), "error", err)
		t.Disconnect()
		return nil, device.Failed(device.FailurePersistence, "failed to store device session")
	}

	err := device.ApplyAndSave(ctx, s.devices, d, func(d *device.Device) (bool, error) {
		d.RecordConnectionSuccess(now)
		return true, nil
	})
	if err != nil {
		s.logger.Errorw("failed to update device health", "device_id", d.ID(), "error", err)
		return nil, device.Failed(device.FailurePersistence, "failed to update device health")
	}
	if !d.IsEnabled() {
		// an operator disabled the device while it was authenticating
		if _, err := s.endActiveSession(ctx, d.ID(), now); err != nil {
			s.logger.Warnw("failed to end device session", "device_id", d.ID(), "error", err)
		}
		s.dropTransport(d.ID())
		return nil, device.Failed(device.FailureDisabled, "device is disabled")
	}

	s.recorder.ObserveConnection(d.SID(), device.FailureNone)
	s.audit(ctx, d.ID(), device.AuditConnection, device.SeverityInfo, "connected to device", map[string]any{
		"success_count": d.SuccessCount(),
	})
	s.logger.Infow("device connected", "device_id", d.ID(), "name", d.Name())

	return t, device.Succeeded("connected")
}

// activateSession reuses the active session if one exists so a device never
// holds two active rows.
func (s *ConnectionService) activateSession(ctx context.Context, deviceID uint, token string, now time.Time) error {
	active, err := s.sessions.GetActive(ctx, deviceID)
	if err != nil {
		return err
	}
	if active != nil {
		if err := active.Refresh(token, now); err != nil {
			return err
		}
		return s.sessions.Update(ctx, active)
	}

	session, err := device.NewSession(deviceID, token, now)
	if err != nil {
		return err
	}
	return s.sessions.Create(ctx, session)
}

// applyFailure updates health for a failed exchange. Only failures that
// count toward the threshold touch error_count.
func (s *ConnectionService) applyFailure(ctx context.Context, d *device.Device, kind device.FailureKind, message string) device.Outcome {
	now := s.now()

	if !kind.CountsTowardThreshold() {
		s.audit(ctx, d.ID(), kind.AuditCategory(), kind.Severity(), message, map[string]any{"kind": string(kind)})
		return device.Failed(kind, message)
	}

	var disabledNow bool
	err := device.ApplyAndSave(ctx, s.devices, d, func(d *device.Device) (bool, error) {
		disabledNow = d.RecordConnectionFailure(message, now)
		return true, nil
	})
	if err != nil {
		s.logger.Errorw("failed to update device health", "device_id", d.ID(), "error", err)
	}

	details := map[string]any{
		"kind":        string(kind),
		"error_count": d.ErrorCount(),
		"max":         d.MaxReconnectionAttempts(),
	}
	s.audit(ctx, d.ID(), kind.AuditCategory(), kind.Severity(), message, details)

	if kind == device.FailureProtocol {
		s.logger.Errorw("device protocol failure", "device_id", d.ID(), "message", message)
	} else {
		s.logger.Warnw("device connection failure", "device_id", d.ID(), "kind", kind, "error_count", d.ErrorCount())
	}

	if disabledNow {
		msg := fmt.Sprintf("device disabled after %d consecutive failures", d.ErrorCount())
		s.audit(ctx, d.ID(), device.AuditMaintenance, device.SeverityCritical, msg, details)
		s.logger.Warnw("device disabled by failure threshold", "device_id", d.ID(), "name", d.Name())
		s.dropTransport(d.ID())
		return device.Failed(device.FailureDisabledByThreshold, msg)
	}
	return device.Failed(kind, message)
}

// RecordFetchFailure applies health accounting for a failed data call.
func (s *ConnectionService) RecordFetchFailure(ctx context.Context, d *device.Device, op string, err error) device.Outcome {
	kind := failureKind(err)

	unlock := s.locks.Lock(d.ID())
	defer unlock()

	s.touchSession(ctx, d.ID(), false)
	return s.applyFailure(ctx, d, kind, fmt.Sprintf("%s failed: %v", op, err))
}

// RecordActivity counts one request on the active session. A successful
// request also clears a failure streak left by earlier data calls.
func (s *ConnectionService) RecordActivity(ctx context.Context, d *device.Device, ok bool) {
	unlock := s.locks.Lock(d.ID())
	defer unlock()

	s.touchSession(ctx, d.ID(), ok)

	if !ok {
		return
	}
	now := s.now()
	err := device.ApplyAndSave(ctx, s.devices, d, func(d *device.Device) (bool, error) {
		return d.MarkHealthy(now), nil
	})
	if err != nil {
		s.logger.Errorw("failed to update device health", "device_id", d.ID(), "error", err)
	}
}

func (s *ConnectionService) touchSession(ctx context.Context, deviceID uint, ok bool) {
	active, err := s.sessions.GetActive(ctx, deviceID)
	if err != nil {
		s.logger.Warnw("failed to load active session", "device_id", deviceID, "error", err)
		return
	}
	if active == nil {
		return
	}
	active.RecordRequest(ok, s.now())
	if err := s.sessions.Update(ctx, active); err != nil {
		s.logger.Warnw("failed to update session activity", "device_id", deviceID, "error", err)
	}
}

// Disconnect ends the active session and drops the held token. Calling it
// on a disconnected device succeeds.
func (s *ConnectionService) Disconnect(ctx context.Context, d *device.Device) device.Outcome {
	unlock := s.locks.Lock(d.ID())
	defer unlock()

	now := s.now()
	ended, err := s.endActiveSession(ctx, d.ID(), now)
	if err != nil {
		s.logger.Errorw("failed to end device session", "device_id", d.ID(), "error", err)
		return device.Failed(device.FailurePersistence, "failed to end device session")
	}

	if t := s.cachedTransport(d.ID()); t != nil {
		t.Disconnect()
	}

	err = device.ApplyAndSave(ctx, s.devices, d, func(d *device.Device) (bool, error) {
		d.MarkDisconnected(now)
		return true, nil
	})
	if err != nil {
		s.logger.Errorw("failed to update device status", "device_id", d.ID(), "error", err)
		return device.Failed(device.FailurePersistence, "failed to update device status")
	}

	if !ended {
		return device.Succeeded("device was not connected")
	}

	s.audit(ctx, d.ID(), device.AuditConnection, device.SeverityInfo, "disconnected from device", nil)
	s.logger.Infow("device disconnected", "device_id", d.ID(), "name", d.Name())
	return device.Succeeded("disconnected")
}

func (s *ConnectionService) endActiveSession(ctx context.Context, deviceID uint, now time.Time) (bool, error) {
	active, err := s.sessions.GetActive(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	active.End(now)
	if err := s.sessions.Update(ctx, active); err != nil {
		return false, err
	}
	return true, nil
}

// EndIdleSessions ends active sessions without activity for longer than
// idle and drops their tokens. It returns the number of sessions ended.
func (s *ConnectionService) EndIdleSessions(ctx context.Context, idle time.Duration) (int, error) {
	if idle <= 0 {
		return 0, nil
	}
	now := s.now()
	stale, err := s.sessions.ListIdle(ctx, now.Add(-idle))
	if err != nil {
		return 0, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	ended := 0
	for _, session := range stale {
		unlock := s.locks.Lock(session.DeviceID())
		// re-read under the lock, a connect may have refreshed it
		current, err := s.sessions.GetActive(ctx, session.DeviceID())
		if err == nil && current != nil && current.IsIdle(now, idle) {
			current.End(now)
			if err = s.sessions.Update(ctx, current); err == nil {
				ended++
				if t := s.cachedTransport(session.DeviceID()); t != nil {
					t.Disconnect()
				}
				s.audit(ctx, session.DeviceID(), device.AuditConnection, device.SeverityInfo,
					"session ended after inactivity", map[string]any{"idle_timeout": idle.String()})
			}
		}
		unlock()
		if err != nil {
			s.logger.Warnw("failed to end idle session", "device_id", session.DeviceID(), "error", err)
		}
	}
	return ended, nil
}

// dropTransport closes and forgets the transport of a device.
func (s *ConnectionService) dropTransport(deviceID uint) {
	s.mu.Lock()
	cached, ok := s.transports[deviceID]
	delete(s.transports, deviceID)
	s.mu.Unlock()
	if ok {
		cached.transport.Close()
	}
}

// Close releases every cached transport.
func (s *ConnectionService) Close() {
	s.mu.Lock()
	transports := s.transports
	s.transports = make(map[uint]cachedTransport)
	s.mu.Unlock()

	for _, cached := range transports {
		cached.transport.Close()
	}
}

func (s *ConnectionService) audit(ctx context.Context, deviceID uint, category device.AuditCategory, severity device.Severity, message string, details map[string]any) {
	entry := device.NewAuditEntry(deviceID, category, severity, message, details, s.now())
	if err := s.audits.Record(ctx, entry); err != nil {
		s.logger.Warnw("failed to record audit entry", "device_id", deviceID, "category", category, "error", err)
	}
}
