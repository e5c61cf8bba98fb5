package http

import (
	"github.com/accesshub/accesshub/internal/application/device/usecases"
	"github.com/accesshub/accesshub/internal/infrastructure/cache"
	"github.com/accesshub/accesshub/internal/interfaces/adapters"
)

// allUseCases holds all use case instances.
type allUseCases struct {
	connect    *usecases.ConnectDeviceUseCase
	disconnect *usecases.DisconnectDeviceUseCase
	fetchLogs  *usecases.FetchDeviceLogsUseCase
	status     *usecases.GetDeviceStatusUseCase
	users      *usecases.FetchDeviceUsersUseCase
	groups     *usecases.FetchDeviceGroupsUseCase
	allStatus  *usecases.GetAllDevicesStatusUseCase
	sync       *usecases.SyncDeviceUseCase
	manage     *usecases.ManageDeviceUseCase
	accessLogs *usecases.ListAccessLogsUseCase
	auditLogs  *usecases.ListAuditLogsUseCase

	monitoringControl *usecases.MonitoringControlUseCase
	seedDevices       *usecases.SeedDevicesUseCase
}

// ============================================================
// Section 3: Use cases
// ============================================================

func (c *Container) initUseCases() {
	log := c.log
	devices := c.repos.deviceRepo
	conn := c.monitor.Connections()
	monitor := c.monitor.Monitor()

	// The status cache is optional; a nil interface disables it.
	var statusCache usecases.StatusCache
	if c.redis != nil {
		statusCache = adapters.NewDeviceStatusCacheAdapter(cache.NewDeviceStatusCache(c.redis, 0))
	}

	c.ucs = &allUseCases{
		connect:    usecases.NewConnectDeviceUseCase(devices, conn, monitor, log.Named("usecase.connect")),
		disconnect: usecases.NewDisconnectDeviceUseCase(devices, conn, log.Named("usecase.disconnect")),
		fetchLogs:  usecases.NewFetchDeviceLogsUseCase(devices, conn),
		status:     usecases.NewGetDeviceStatusUseCase(devices, conn, statusCache, log.Named("usecase.status")),
		users:      usecases.NewFetchDeviceUsersUseCase(devices, conn, c.employees, log.Named("usecase.users")),
		groups:     usecases.NewFetchDeviceGroupsUseCase(devices, conn),
		allStatus:  usecases.NewGetAllDevicesStatusUseCase(devices, conn, statusCache, log.Named("usecase.all_status")),
		sync:       usecases.NewSyncDeviceUseCase(devices, c.monitor.Sync(), log.Named("usecase.sync")),
		manage:     usecases.NewManageDeviceUseCase(devices, c.repos.auditRepo, conn, monitor, log.Named("usecase.manage")),
		accessLogs: usecases.NewListAccessLogsUseCase(devices, c.repos.logStore, log.Named("usecase.access_logs")),
		auditLogs:  usecases.NewListAuditLogsUseCase(devices, c.repos.auditRepo, log.Named("usecase.audit_logs")),

		monitoringControl: usecases.NewMonitoringControlUseCase(monitor, devices, c.cfg.Monitoring.SweepInterval*4, log.Named("usecase.monitoring")),
		seedDevices: usecases.NewSeedDevicesUseCase(devices, usecases.DeviceDefaults{
			ConnectionTimeout:       c.cfg.DeviceDefaults.ConnectionTimeout,
			RequestTimeout:          c.cfg.DeviceDefaults.RequestTimeout,
			MaxReconnectionAttempts: c.cfg.DeviceDefaults.MaxReconnectionAttempts,
		}, log.Named("usecase.seed")),
	}
}
