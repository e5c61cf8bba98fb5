package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
	"github.com/accesshub/accesshub/internal/shared/db"
	apperrors "github.com/accesshub/accesshub/internal/shared/errors"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// DeviceRepositoryImpl implements the device.DeviceRepository interface.
type DeviceRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.DeviceMapper
	logger logger.Interface
}

// NewDeviceRepository creates a new device repository. sealer protects
// passwords at rest.
func NewDeviceRepository(gdb *gorm.DB, sealer mappers.CredentialSealer, logger logger.Interface) device.DeviceRepository {
	return &DeviceRepositoryImpl{
		db:     gdb,
		mapper: mappers.NewDeviceMapper(sealer),
		logger: logger,
	}
}

func (r *DeviceRepositoryImpl) Create(ctx context.Context, d *device.Device) error {
	model, err := r.mapper.ToModel(d)
	if err != nil {
		r.logger.Errorw("failed to map device entity to model", "error", err)
		return fmt.Errorf("failed to map device entity: %w", err)
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if apperrors.IsDuplicateError(err) {
			return apperrors.NewConflictError("device already exists", d.Name())
		}
		r.logger.Errorw("failed to create device in database", "name", d.Name(), "error", err)
		return fmt.Errorf("failed to create device: %w", err)
	}

	if err := d.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set device ID: %w", err)
	}

	r.logger.Infow("device created", "id", model.ID, "sid", model.SID, "name", model.Name)
	return nil
}

// Update saves d with optimistic locking on the version column.
func (r *DeviceRepositoryImpl) Update(ctx context.Context, d *device.Device) error {
	model, err := r.mapper.ToModel(d)
	if err != nil {
		r.logger.Errorw("failed to map device entity to model", "id", d.ID(), "error", err)
		return fmt.Errorf("failed to map device entity: %w", err)
	}

	result := db.GetTxFromContext(ctx, r.db).Model(&models.DeviceModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"name":                      model.Name,
			"address":                   model.Address,
			"port":                      model.Port,
			"use_https":                 model.UseHTTPS,
			"login":                     model.Login,
			"password":                  model.Password,
			"is_primary":                model.IsPrimary,
			"connection_timeout_ms":     model.ConnectionTimeoutMs,
			"request_timeout_ms":        model.RequestTimeoutMs,
			"max_reconnection_attempts": model.MaxReconnectionAttempts,
			"status":                    model.Status,
			"is_enabled":                model.IsEnabled,
			"last_connection":           model.LastConnection,
			"last_error":                model.LastError,
			"last_error_message":        model.LastErrorMessage,
			"error_count":               model.ErrorCount,
			"success_count":             model.SuccessCount,
			"updated_at":                model.UpdatedAt,
			"version":                   model.Version + 1,
		})

	if result.Error != nil {
		if apperrors.IsDuplicateError(result.Error) {
			return apperrors.NewConflictError("device already exists", d.Name())
		}
		r.logger.Errorw("failed to update device", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update device: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		r.logger.Debugw("device version conflict", "id", model.ID, "version", model.Version)
		return device.ErrVersionConflict
	}

	d.SetVersion(model.Version + 1)
	return nil
}

func (r *DeviceRepositoryImpl) GetByID(ctx context.Context, id uint) (*device.Device, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *DeviceRepositoryImpl) GetBySID(ctx context.Context, sid string) (*device.Device, error) {
	return r.getOne(ctx, "sid = ?", sid)
}

func (r *DeviceRepositoryImpl) GetByName(ctx context.Context, name string) (*device.Device, error) {
	return r.getOne(ctx, "name = ?", name)
}

func (r *DeviceRepositoryImpl) getOne(ctx context.Context, query string, arg any) (*device.Device, error) {
	var model models.DeviceModel

	if err := db.GetTxFromContext(ctx, r.db).Where(query, arg).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get device", "query", query, "arg", arg, "error", err)
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	entity, err := r.mapper.ToEntity(&model)
	if err != nil {
		r.logger.Errorw("failed to map device model to entity", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to map device: %w", err)
	}
	return entity, nil
}

func (r *DeviceRepositoryImpl) List(ctx context.Context, filter device.Filter) ([]*device.Device, error) {
	query := db.GetTxFromContext(ctx, r.db).Model(&models.DeviceModel{})
	if filter.EnabledOnly {
		query = query.Where("is_enabled = ?", true)
	}
	if filter.PrimaryOnly {
		query = query.Where("is_primary = ?", true)
	}

	var list []*models.DeviceModel
	if err := query.Order("id ASC").Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list devices", "error", err)
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	entities, err := r.mapper.ToEntities(list)
	if err != nil {
		r.logger.Errorw("failed to map device models to entities", "error", err)
		return nil, fmt.Errorf("failed to map devices: %w", err)
	}
	return entities, nil
}

func (r *DeviceRepositoryImpl) CountByStatus(ctx context.Context) (map[device.Status]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := db.GetTxFromContext(ctx, r.db).Model(&models.DeviceModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to count devices by status", "error", err)
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}

	out := make(map[device.Status]int64, len(rows))
	for _, row := range rows {
		out[device.Status(row.Status)] = row.Total
	}
	return out, nil
}
