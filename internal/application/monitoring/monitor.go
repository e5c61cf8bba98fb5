package monitoring

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// Syncer runs one sync cycle for a device.
type Syncer interface {
	Sync(ctx context.Context, d *device.Device) SyncResult
}

// MonitorConfig tunes the sweep.
type MonitorConfig struct {
	PrimaryOnly bool
	MaxParallel int
	// BackoffInitial of zero disables per-device backoff.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// SweepError describes one failed device in a sweep.
type SweepError struct {
	DeviceID   uint               `json:"device_id"`
	DeviceName string             `json:"device_name"`
	Kind       device.FailureKind `json:"kind"`
	Message    string             `json:"message"`
}

// SweepStats aggregates one sweep over all selected devices.
type SweepStats struct {
	DevicesChecked   int          `json:"devices_checked"`
	DevicesConnected int          `json:"devices_connected"`
	DevicesError     int          `json:"devices_error"`
	DevicesSkipped   int          `json:"devices_skipped"`
	TotalLogsFetched int          `json:"total_logs_fetched"`
	Errors           []SweepError `json:"errors"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	DurationMs       int64        `json:"duration_ms"`
}

// MonitorStatus is the state exposed to status queries.
type MonitorStatus struct {
	Running     bool        `json:"running"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	SweepCount  int64       `json:"sweep_count"`
	PrimaryOnly bool        `json:"primary_only"`
	MaxParallel int         `json:"max_parallel"`
	LastSweep   *SweepStats `json:"last_sweep,omitempty"`
}

// ErrNotRunning is returned by Sweep while the monitor is stopped.
var ErrNotRunning = fmt.Errorf("monitoring is not running")

// ErrSweepInProgress is returned when a sweep is requested during another.
var ErrSweepInProgress = fmt.Errorf("a sweep is already in progress")

type deviceBackoff struct {
	policy *backoff.ExponentialBackOff
	until  time.Time
}

// Monitor sweeps enabled devices while running. It starts stopped.
type Monitor struct {
	devices device.DeviceRepository
	syncer  Syncer
	cfg     MonitorConfig

	recorder Recorder
	logger   logger.Interface
	now      func() time.Time

	running atomic.Bool
	sweepMu sync.Mutex

	mu         sync.Mutex
	startedAt  *time.Time
	lastSweep  *SweepStats
	sweepCount int64
	backoffs   map[uint]*deviceBackoff
}

func NewMonitor(devices device.DeviceRepository, syncer Syncer, cfg MonitorConfig, recorder Recorder, log logger.Interface) *Monitor {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Monitor{
		devices:  devices,
		syncer:   syncer,
		cfg:      cfg,
		recorder: recorder,
		logger:   log,
		now:      biztime.NowUTC,
		backoffs: make(map[uint]*deviceBackoff),
	}
}

// Start moves the monitor to running. It reports false if already running.
func (m *Monitor) Start() bool {
	if !m.running.CompareAndSwap(false, true) {
		return false
	}
	now := m.now()
	m.mu.Lock()
	m.startedAt = &now
	m.mu.Unlock()
	m.logger.Infow("monitoring started")
	return true
}

// Stop moves the monitor to stopped. An in-flight sweep stops dispatching
// further devices but does not interrupt calls already in progress.
func (m *Monitor) Stop() bool {
	if !m.running.CompareAndSwap(true, false) {
		return false
	}
	m.mu.Lock()
	m.startedAt = nil
	m.mu.Unlock()
	m.logger.Infow("monitoring stopped")
	return true
}

func (m *Monitor) IsRunning() bool {
	return m.running.Load()
}

func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := MonitorStatus{
		Running:     m.running.Load(),
		StartedAt:   m.startedAt,
		SweepCount:  m.sweepCount,
		PrimaryOnly: m.cfg.PrimaryOnly,
		MaxParallel: m.cfg.MaxParallel,
	}
	if m.lastSweep != nil {
		last := *m.lastSweep
		st.LastSweep = &last
	}
	return st
}

// Sweep runs one sync cycle on every selected device.
func (m *Monitor) Sweep(ctx context.Context) (SweepStats, error) {
	if !m.running.Load() {
		return SweepStats{}, ErrNotRunning
	}
	return m.sweep(ctx)
}

// SweepOnce runs a sweep regardless of the running flag.
func (m *Monitor) SweepOnce(ctx context.Context) (SweepStats, error) {
	return m.sweep(ctx)
}

func (m *Monitor) sweep(ctx context.Context) (SweepStats, error) {
	if !m.sweepMu.TryLock() {
		return SweepStats{}, ErrSweepInProgress
	}
	defer m.sweepMu.Unlock()

	stats := SweepStats{StartedAt: m.now(), Errors: []SweepError{}}

	devices, err := m.devices.List(ctx, device.Filter{EnabledOnly: true, PrimaryOnly: m.cfg.PrimaryOnly})
	if err != nil {
		m.logger.Errorw("failed to list devices for sweep", "error", err)
		return stats, fmt.Errorf("failed to list devices: %w", err)
	}

	// oneShot sweeps ignore the running flag
	oneShot := !m.running.Load()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(m.cfg.MaxParallel)

	for i, d := range devices {
		if ctx.Err() != nil || (!oneShot && !m.running.Load()) {
			stats.DevicesSkipped += len(devices) - i
			break
		}
		if d.InMaintenance() || !m.backoffElapsed(d.ID()) {
			stats.DevicesSkipped++
			continue
		}

		g.Go(func() error {
			if !oneShot && !m.running.Load() {
				mu.Lock()
				stats.DevicesSkipped++
				mu.Unlock()
				return nil
			}

			res := m.syncDevice(ctx, d)
			m.updateBackoff(d.ID(), res.Success)

			mu.Lock()
			defer mu.Unlock()
			stats.DevicesChecked++
			if res.Success {
				stats.DevicesConnected++
				stats.TotalLogsFetched += res.Entries
				return nil
			}
			stats.DevicesError++
			stats.Errors = append(stats.Errors, SweepError{
				DeviceID:   d.ID(),
				DeviceName: d.Name(),
				Kind:       res.Kind,
				Message:    res.Message,
			})
			return nil
		})
	}
	_ = g.Wait()

	stats.FinishedAt = m.now()
	stats.DurationMs = stats.FinishedAt.Sub(stats.StartedAt).Milliseconds()

	m.mu.Lock()
	m.lastSweep = &stats
	m.sweepCount++
	m.mu.Unlock()

	m.recorder.ObserveSweep(stats.DevicesChecked, stats.DevicesConnected, stats.DevicesError, stats.DevicesSkipped,
		stats.FinishedAt.Sub(stats.StartedAt))
	m.logger.Infow("sweep completed",
		"checked", stats.DevicesChecked,
		"connected", stats.DevicesConnected,
		"errors", stats.DevicesError,
		"skipped", stats.DevicesSkipped,
		"logs", stats.TotalLogsFetched,
		"duration_ms", stats.DurationMs)

	return stats, nil
}

// syncDevice isolates a panicking cycle so the sweep continues.
func (m *Monitor) syncDevice(ctx context.Context, d *device.Device) (res SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorw("device sync panicked",
				"device_id", d.ID(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			res = SyncResult{
				DeviceID:   d.ID(),
				DeviceName: d.Name(),
				Kind:       device.FailureInternal,
				Message:    fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()
	return m.syncer.Sync(ctx, d)
}

func (m *Monitor) backoffElapsed(deviceID uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backoffs[deviceID]
	return !ok || !m.now().Before(b.until)
}

// updateBackoff schedules the next allowed attempt after a failure and
// forgets the device after a success.
func (m *Monitor) updateBackoff(deviceID uint, success bool) {
	if m.cfg.BackoffInitial <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		delete(m.backoffs, deviceID)
		return
	}

	b, ok := m.backoffs[deviceID]
	if !ok {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = m.cfg.BackoffInitial
		policy.MaxInterval = m.cfg.BackoffMax
		policy.Reset()
		b = &deviceBackoff{policy: policy}
		m.backoffs[deviceID] = b
	}

	delay := b.policy.NextBackOff()
	if delay == backoff.Stop {
		delay = m.cfg.BackoffMax
	}
	b.until = m.now().Add(delay)
}

// ResetBackoff lets the next sweep retry the device immediately.
func (m *Monitor) ResetBackoff(deviceID uint) {
	m.mu.Lock()
	delete(m.backoffs, deviceID)
	m.mu.Unlock()
}

// Wait blocks until an in-flight sweep finishes.
func (m *Monitor) Wait() {
	m.sweepMu.Lock()
	m.sweepMu.Unlock() //nolint:staticcheck
}
