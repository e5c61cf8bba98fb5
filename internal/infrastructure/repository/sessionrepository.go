package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
	"github.com/accesshub/accesshub/internal/shared/db"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// SessionRepositoryImpl implements the device.SessionRepository interface.
type SessionRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewSessionRepository(gdb *gorm.DB, logger logger.Interface) device.SessionRepository {
	return &SessionRepositoryImpl{db: gdb, logger: logger}
}

func (r *SessionRepositoryImpl) GetActive(ctx context.Context, deviceID uint) (*device.Session, error) {
	var model models.DeviceSessionModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("device_id = ? AND is_active = ?", deviceID, true).
		Order("id DESC").
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get active session", "device_id", deviceID, "error", err)
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return mappers.SessionToEntity(&model), nil
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, s *device.Session) error {
	model := mappers.SessionToModel(s)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create session", "device_id", s.DeviceID(), "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.SetID(model.ID)
	return nil
}

func (r *SessionRepositoryImpl) Update(ctx context.Context, s *device.Session) error {
	model := mappers.SessionToModel(s)
	result := db.GetTxFromContext(ctx, r.db).Model(&models.DeviceSessionModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"is_active":        model.IsActive,
			"token":            model.Token,
			"ended_at":         model.EndedAt,
			"last_activity_at": model.LastActivityAt,
			"request_count":    model.RequestCount,
			"error_count":      model.ErrorCount,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update session", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	return nil
}

func (r *SessionRepositoryImpl) ListIdle(ctx context.Context, cutoff time.Time) ([]*device.Session, error) {
	var list []models.DeviceSessionModel
	err := db.GetTxFromContext(ctx, r.db).
		Where("is_active = ? AND last_activity_at < ?", true, cutoff).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		r.logger.Errorw("failed to list idle sessions", "error", err)
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}

	out := make([]*device.Session, len(list))
	for i := range list {
		out[i] = mappers.SessionToEntity(&list[i])
	}
	return out, nil
}
