package usecases

import (
	"context"
	"time"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/application/realtime"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

// UserSyncer stores the user list of a device.
type UserSyncer interface {
	SyncUsers(ctx context.Context, deviceID uint, users []deviceprotocol.User) error
}

// RemoteLogsQuery reads logs directly from a device, bypassing the cursor.
type RemoteLogsQuery struct {
	DeviceRef string
	AfterID   int64
}

type RemoteLogsResult struct {
	DeviceID string                     `json:"device_id"`
	AfterID  int64                      `json:"after_id"`
	Count    int                        `json:"count"`
	Logs     []realtimeprotocol.LogView `json:"logs"`
}

// FetchDeviceLogsUseCase reads logs from a device without storing them.
type FetchDeviceLogsUseCase struct {
	remote remoteAccess
}

func NewFetchDeviceLogsUseCase(devices device.DeviceRepository, conn Connector) *FetchDeviceLogsUseCase {
	return &FetchDeviceLogsUseCase{remote: remoteAccess{deviceResolver: deviceResolver{devices: devices}, conn: conn}}
}

func (uc *FetchDeviceLogsUseCase) Execute(ctx context.Context, query RemoteLogsQuery) (*RemoteLogsResult, error) {
	if query.AfterID < 0 {
		return nil, errors.NewValidationError("after_id must not be negative")
	}

	var entries []device.LogEntry
	d, err := uc.remote.withTransport(ctx, query.DeviceRef, "fetch access logs", func(t monitoring.DeviceTransport) error {
		var ferr error
		entries, ferr = t.FetchAccessLogs(ctx, query.AfterID)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	return &RemoteLogsResult{
		DeviceID: d.SID(),
		AfterID:  query.AfterID,
		Count:    len(entries),
		Logs:     realtime.ToLogViews(entries),
	}, nil
}

// GetDeviceStatusUseCase reads the live status of a device and caches it.
type GetDeviceStatusUseCase struct {
	remote remoteAccess
	cache  StatusCache
	logger logger.Interface
}

// NewGetDeviceStatusUseCase creates the use case. cache may be nil.
func NewGetDeviceStatusUseCase(devices device.DeviceRepository, conn Connector, cache StatusCache, logger logger.Interface) *GetDeviceStatusUseCase {
	return &GetDeviceStatusUseCase{
		remote: remoteAccess{deviceResolver: deviceResolver{devices: devices}, conn: conn},
		cache:  cache,
		logger: logger,
	}
}

func (uc *GetDeviceStatusUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*dto.DeviceStatusDTO, error) {
	var status map[string]any
	d, err := uc.remote.withTransport(ctx, cmd.DeviceRef, "fetch status", func(t monitoring.DeviceTransport) error {
		var ferr error
		status, ferr = t.FetchStatus(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	fetchedAt := biztime.NowUTC()
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, d.SID(), status); err != nil {
			uc.logger.Warnw("failed to cache device status", "device_id", d.SID(), "error", err)
		}
	}

	out := dto.ToDeviceStatusDTO(d, uc.remote.conn.IsConnected(d.ID()))
	out.Remote = status
	out.RemoteFetched = &fetchedAt
	return out, nil
}

type DeviceUsersResult struct {
	DeviceID string                `json:"device_id"`
	Count    int                   `json:"count"`
	Users    []deviceprotocol.User `json:"users"`
}

// FetchDeviceUsersUseCase lists the users known to a device and stores them
// as employees in the background.
type FetchDeviceUsersUseCase struct {
	remote remoteAccess
	users  UserSyncer
	logger logger.Interface
}

func NewFetchDeviceUsersUseCase(devices device.DeviceRepository, conn Connector, users UserSyncer, logger logger.Interface) *FetchDeviceUsersUseCase {
	return &FetchDeviceUsersUseCase{
		remote: remoteAccess{deviceResolver: deviceResolver{devices: devices}, conn: conn},
		users:  users,
		logger: logger,
	}
}

func (uc *FetchDeviceUsersUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*DeviceUsersResult, error) {
	var users []deviceprotocol.User
	d, err := uc.remote.withTransport(ctx, cmd.DeviceRef, "fetch users", func(t monitoring.DeviceTransport) error {
		var ferr error
		users, ferr = t.FetchUsers(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	if uc.users != nil && len(users) > 0 {
		deviceID := d.ID()
		detached := context.WithoutCancel(ctx)
		goroutine.SafeGo(uc.logger, "employee-sync", func() {
			syncCtx, cancel := context.WithTimeout(detached, 30*time.Second)
			defer cancel()
			if err := uc.users.SyncUsers(syncCtx, deviceID, users); err != nil {
				uc.logger.Warnw("failed to store device users", "device_id", deviceID, "error", err)
			}
		})
	}

	if users == nil {
		users = []deviceprotocol.User{}
	}
	return &DeviceUsersResult{DeviceID: d.SID(), Count: len(users), Users: users}, nil
}

type DeviceGroupsResult struct {
	DeviceID string                 `json:"device_id"`
	Count    int                    `json:"count"`
	Groups   []deviceprotocol.Group `json:"groups"`
}

type FetchDeviceGroupsUseCase struct {
	remote remoteAccess
}

func NewFetchDeviceGroupsUseCase(devices device.DeviceRepository, conn Connector) *FetchDeviceGroupsUseCase {
	return &FetchDeviceGroupsUseCase{remote: remoteAccess{deviceResolver: deviceResolver{devices: devices}, conn: conn}}
}

func (uc *FetchDeviceGroupsUseCase) Execute(ctx context.Context, cmd DeviceCommand) (*DeviceGroupsResult, error) {
	var groups []deviceprotocol.Group
	d, err := uc.remote.withTransport(ctx, cmd.DeviceRef, "fetch groups", func(t monitoring.DeviceTransport) error {
		var ferr error
		groups, ferr = t.FetchGroups(ctx)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []deviceprotocol.Group{}
	}
	return &DeviceGroupsResult{DeviceID: d.SID(), Count: len(groups), Groups: groups}, nil
}

// GetAllDevicesStatusUseCase reports the stored health of every device,
// enriched with the cached remote status when available.
type GetAllDevicesStatusUseCase struct {
	devices device.DeviceRepository
	conn    Connector
	cache   StatusCache
	logger  logger.Interface
}

// NewGetAllDevicesStatusUseCase creates the use case. cache may be nil.
func NewGetAllDevicesStatusUseCase(devices device.DeviceRepository, conn Connector, cache StatusCache, logger logger.Interface) *GetAllDevicesStatusUseCase {
	return &GetAllDevicesStatusUseCase{
		devices: devices,
		conn:    conn,
		cache:   cache,
		logger:  logger,
	}
}

func (uc *GetAllDevicesStatusUseCase) Execute(ctx context.Context) ([]*dto.DeviceStatusDTO, error) {
	devices, err := uc.devices.List(ctx, device.Filter{})
	if err != nil {
		uc.logger.Errorw("failed to list devices", "error", err)
		return nil, errors.NewInternalError("failed to list devices")
	}

	var cached map[string]*RemoteStatus
	if uc.cache != nil && len(devices) > 0 {
		sids := make([]string, len(devices))
		for i, d := range devices {
			sids[i] = d.SID()
		}
		cached, err = uc.cache.GetMany(ctx, sids)
		if err != nil {
			uc.logger.Warnw("failed to read cached device status", "error", err)
		}
	}

	out := make([]*dto.DeviceStatusDTO, 0, len(devices))
	for _, d := range devices {
		item := dto.ToDeviceStatusDTO(d, uc.conn.IsConnected(d.ID()))
		if rs, ok := cached[d.SID()]; ok && rs != nil {
			fetchedAt := rs.FetchedAt
			item.Remote = rs.Status
			item.RemoteFetched = &fetchedAt
		}
		out = append(out, item)
	}
	return out, nil
}
