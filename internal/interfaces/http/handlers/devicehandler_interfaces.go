package handlers

import (
	"context"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/application/device/usecases"
)

// Use case interfaces for DeviceHandler

type connectDeviceUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*dto.ConnectionResultDTO, error)
}

type disconnectDeviceUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*dto.ConnectionResultDTO, error)
}

type fetchDeviceLogsUseCase interface {
	Execute(ctx context.Context, query usecases.RemoteLogsQuery) (*usecases.RemoteLogsResult, error)
}

type getDeviceStatusUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*dto.DeviceStatusDTO, error)
}

type fetchDeviceUsersUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*usecases.DeviceUsersResult, error)
}

type fetchDeviceGroupsUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*usecases.DeviceGroupsResult, error)
}

type getAllDevicesStatusUseCase interface {
	Execute(ctx context.Context) ([]*dto.DeviceStatusDTO, error)
}

type syncDeviceUseCase interface {
	Execute(ctx context.Context, cmd usecases.DeviceCommand) (*dto.SyncResultDTO, error)
}

type manageDeviceUseCase interface {
	Enable(ctx context.Context, cmd usecases.DeviceCommand) (*dto.DeviceDTO, error)
	Disable(ctx context.Context, cmd usecases.DeviceCommand) (*dto.DeviceDTO, error)
	SetMaintenance(ctx context.Context, cmd usecases.MaintenanceCommand) (*dto.DeviceDTO, error)
}

type listAuditLogsUseCase interface {
	Execute(ctx context.Context, query usecases.ListAuditLogsQuery) (*usecases.ListAuditLogsResult, error)
}

// Use case interfaces for AccessLogHandler

type listAccessLogsUseCase interface {
	Execute(ctx context.Context, query usecases.ListAccessLogsQuery) (*usecases.ListAccessLogsResult, error)
}

// Use case interfaces for MonitoringHandler

type monitoringControlUseCase interface {
	Start(ctx context.Context) *usecases.MonitoringActionResult
	Stop() *usecases.MonitoringActionResult
	Status(ctx context.Context) (*dto.MonitoringStatusDTO, error)
}
