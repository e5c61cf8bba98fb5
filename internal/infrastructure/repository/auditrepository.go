package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
	"github.com/accesshub/accesshub/internal/shared/db"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

type AuditRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewAuditRepository(gdb *gorm.DB, logger logger.Interface) device.AuditRepository {
	return &AuditRepositoryImpl{db: gdb, logger: logger}
}

func (r *AuditRepositoryImpl) Record(ctx context.Context, entry *device.AuditEntry) error {
	model := mappers.AuditToModel(entry)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to record audit entry", "device_id", entry.DeviceID, "error", err)
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	entry.ID = model.ID
	return nil
}

func (r *AuditRepositoryImpl) ListByDevice(ctx context.Context, deviceID uint, offset, limit int) ([]device.AuditEntry, int64, error) {
	query := db.GetTxFromContext(ctx, r.db).Model(&models.AuditLogModel{}).Where("device_id = ?", deviceID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	var rows []models.AuditLogModel
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list audit entries", "device_id", deviceID, "error", err)
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}

	out := make([]device.AuditEntry, len(rows))
	for i := range rows {
		out[i] = mappers.AuditToEntity(rows[i])
	}
	return out, total, nil
}
