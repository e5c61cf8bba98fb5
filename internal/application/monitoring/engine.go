package monitoring

import (
	"context"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// EngineConfig is the monitoring part of the service configuration.
type EngineConfig struct {
	Monitor            MonitorConfig
	SessionIdleTimeout time.Duration
}

// Dependencies are the collaborators the engine is built from.
type Dependencies struct {
	Devices   device.DeviceRepository
	Sessions  device.SessionRepository
	Logs      device.LogStore
	Audits    device.AuditRepository
	Factory   TransportFactory
	Recorder  Recorder
	Observers []LogObserver
	Logger    logger.Interface
}

// Engine owns the transport cache, the sync pipeline and the monitor
// lifecycle. One Engine exists per process.
type Engine struct {
	cfg     EngineConfig
	conn    *ConnectionService
	sync    *LogSyncEngine
	monitor *Monitor
	logger  logger.Interface
}

func NewEngine(cfg EngineConfig, deps Dependencies) *Engine {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	conn := NewConnectionService(deps.Devices, deps.Sessions, deps.Audits, deps.Factory, deps.Recorder, log.Named("connection"))
	syncer := NewLogSyncEngine(conn, deps.Logs, deps.Audits, deps.Recorder, log.Named("logsync"), deps.Observers...)
	monitor := NewMonitor(deps.Devices, syncer, cfg.Monitor, deps.Recorder, log.Named("monitor"))

	return &Engine{
		cfg:     cfg,
		conn:    conn,
		sync:    syncer,
		monitor: monitor,
		logger:  log,
	}
}

func (e *Engine) Connections() *ConnectionService { return e.conn }
func (e *Engine) Sync() *LogSyncEngine            { return e.sync }
func (e *Engine) Monitor() *Monitor               { return e.monitor }

// CleanupIdleSessions ends sessions idle for longer than the configured timeout.
func (e *Engine) CleanupIdleSessions(ctx context.Context) (int, error) {
	return e.conn.EndIdleSessions(ctx, e.cfg.SessionIdleTimeout)
}

// Shutdown stops the monitor, waits for an in-flight sweep until ctx ends
// and releases all transports.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.monitor.Stop()

	done := make(chan struct{})
	go func() {
		e.monitor.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		e.logger.Warnw("shutdown deadline reached while a sweep was running")
	}

	e.conn.Close()
	return err
}
