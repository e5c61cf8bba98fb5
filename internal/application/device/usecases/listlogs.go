package usecases

import (
	"context"
	"time"

	"github.com/accesshub/accesshub/internal/application/device/dto"
	"github.com/accesshub/accesshub/internal/application/realtime"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

// ListAccessLogsQuery filters stored access logs. DeviceRef is optional.
type ListAccessLogsQuery struct {
	DeviceRef string
	UserID    string
	EventType *int
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

type ListAccessLogsResult struct {
	Logs  []realtimeprotocol.LogView
	Total int64
}

type ListAccessLogsUseCase struct {
	resolver deviceResolver
	logs     device.LogStore
	logger   logger.Interface
}

func NewListAccessLogsUseCase(devices device.DeviceRepository, logs device.LogStore, logger logger.Interface) *ListAccessLogsUseCase {
	return &ListAccessLogsUseCase{
		resolver: deviceResolver{devices: devices},
		logs:     logs,
		logger:   logger,
	}
}

func (uc *ListAccessLogsUseCase) Execute(ctx context.Context, query ListAccessLogsQuery) (*ListAccessLogsResult, error) {
	if query.From != nil && query.To != nil && query.To.Before(*query.From) {
		return nil, errors.NewValidationError("to must not be before from")
	}

	filter := device.LogFilter{
		UserID: query.UserID,
		From:   query.From,
		To:     query.To,
		Offset: query.Offset,
		Limit:  query.Limit,
	}
	if query.EventType != nil {
		et := device.EventType(*query.EventType)
		filter.EventType = &et
	}
	if query.DeviceRef != "" {
		d, err := uc.resolver.resolve(ctx, query.DeviceRef)
		if err != nil {
			return nil, err
		}
		filter.DeviceID = d.ID()
	}

	entries, total, err := uc.logs.List(ctx, filter)
	if err != nil {
		uc.logger.Errorw("failed to list access logs", "error", err)
		return nil, errors.NewInternalError("failed to list access logs")
	}
	return &ListAccessLogsResult{Logs: realtime.ToLogViews(entries), Total: total}, nil
}

type ListAuditLogsQuery struct {
	DeviceRef string
	Offset    int
	Limit     int
}

type ListAuditLogsResult struct {
	Logs  []dto.AuditLogDTO
	Total int64
}

// ListAuditLogsUseCase pages through the audit trail of one device.
type ListAuditLogsUseCase struct {
	resolver deviceResolver
	audits   device.AuditRepository
	logger   logger.Interface
}

func NewListAuditLogsUseCase(devices device.DeviceRepository, audits device.AuditRepository, logger logger.Interface) *ListAuditLogsUseCase {
	return &ListAuditLogsUseCase{
		resolver: deviceResolver{devices: devices},
		audits:   audits,
		logger:   logger,
	}
}

func (uc *ListAuditLogsUseCase) Execute(ctx context.Context, query ListAuditLogsQuery) (*ListAuditLogsResult, error) {
	d, err := uc.resolver.resolve(ctx, query.DeviceRef)
	if err != nil {
		return nil, err
	}

	entries, total, err := uc.audits.ListByDevice(ctx, d.ID(), query.Offset, query.Limit)
	if err != nil {
		uc.logger.Errorw("failed to list audit logs", "device_id", d.SID(), "error", err)
		return nil, errors.NewInternalError("failed to list audit logs")
	}
	return &ListAuditLogsResult{Logs: dto.ToAuditLogDTOs(entries), Total: total}, nil
}
