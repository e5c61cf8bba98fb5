package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
	"github.com/accesshub/accesshub/internal/shared/db"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

type EmployeeRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewEmployeeRepository(gdb *gorm.DB, logger logger.Interface) device.EmployeeRepository {
	return &EmployeeRepositoryImpl{db: gdb, logger: logger}
}

var employeeKey = []clause.Column{{Name: "device_id"}, {Name: "device_user_id"}}

// Upsert refreshes name, group and card of known users and inserts new ones.
func (r *EmployeeRepositoryImpl) Upsert(ctx context.Context, employees []device.Employee) error {
	if len(employees) == 0 {
		return nil
	}
	rows := make([]models.EmployeeModel, len(employees))
	for i, e := range employees {
		rows[i] = mappers.EmployeeToModel(e)
	}

	err := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   employeeKey,
			DoUpdates: clause.AssignmentColumns([]string{"name", "group_id", "card_number", "updated_at"}),
		}).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		r.logger.Errorw("failed to upsert employees", "count", len(rows), "error", err)
		return fmt.Errorf("failed to upsert employees: %w", err)
	}
	return nil
}

// MarkSeen sets last_seen_at, inserting placeholder rows for unknown users.
func (r *EmployeeRepositoryImpl) MarkSeen(ctx context.Context, deviceID uint, userIDs []string, seenAt time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.EmployeeModel, len(userIDs))
	for i, uid := range userIDs {
		rows[i] = models.EmployeeModel{DeviceID: deviceID, DeviceUserID: uid, LastSeenAt: &seenAt}
	}

	err := db.GetTxFromContext(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   employeeKey,
			DoUpdates: clause.AssignmentColumns([]string{"last_seen_at", "updated_at"}),
		}).
		CreateInBatches(rows, insertBatchSize).Error
	if err != nil {
		r.logger.Errorw("failed to mark employees seen", "device_id", deviceID, "error", err)
		return fmt.Errorf("failed to mark employees seen: %w", err)
	}
	return nil
}
