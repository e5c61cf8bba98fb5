package http

import (
	"context"
	"fmt"

	"github.com/accesshub/accesshub/internal/interfaces/http/handlers"
)

// allHandlers holds all HTTP handler instances.
type allHandlers struct {
	device     *handlers.DeviceHandler
	monitoring *handlers.MonitoringHandler
	accessLogs *handlers.AccessLogHandler
	realtime   *handlers.RealtimeHandler
	health     *handlers.HealthHandler
}

// ============================================================
// Section 5: Handlers
// ============================================================

func (c *Container) initHandlers() {
	log := c.log
	ucs := c.ucs

	c.hdlrs = &allHandlers{
		device: handlers.NewDeviceHandler(handlers.DeviceUseCases{
			Connect:    ucs.connect,
			Disconnect: ucs.disconnect,
			FetchLogs:  ucs.fetchLogs,
			Status:     ucs.status,
			Users:      ucs.users,
			Groups:     ucs.groups,
			AllStatus:  ucs.allStatus,
			Sync:       ucs.sync,
			Manage:     ucs.manage,
			AuditLogs:  ucs.auditLogs,
		}, log.Named("handler.device")),
		monitoring: handlers.NewMonitoringHandler(ucs.monitoringControl, log.Named("handler.monitoring")),
		accessLogs: handlers.NewAccessLogHandler(ucs.accessLogs, log.Named("handler.access_logs")),
		realtime: handlers.NewRealtimeHandler(c.hub, c.broadcaster, handlers.RealtimeConfig{
			WriteWait:      c.cfg.Realtime.WriteWait,
			PongWait:       c.cfg.Realtime.PongWait,
			PingPeriod:     c.cfg.Realtime.PingPeriod,
			AllowedOrigins: c.cfg.Server.AllowedOrigins,
		}, log.Named("handler.realtime")),
		health: handlers.NewHealthHandler(c.healthProbes(), c.monitor.Monitor(), log.Named("handler.health")),
	}
}

func (c *Container) healthProbes() map[string]handlers.HealthProbe {
	probes := map[string]handlers.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.db.DB()
			if err != nil {
				return fmt.Errorf("failed to get sql.DB: %w", err)
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.redis != nil {
		probes["redis"] = func(ctx context.Context) error {
			return c.redis.Ping(ctx).Err()
		}
	}
	return probes
}
