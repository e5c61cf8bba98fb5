package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/db"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

const insertBatchSize = 500

// AccessLogStore implements device.LogStore. Appends and cursor advances
// share one transaction so the cursor never points past unstored entries.
type AccessLogStore struct {
	db     *gorm.DB
	txm    *db.TransactionManager
	logger logger.Interface
}

func NewAccessLogStore(gdb *gorm.DB, logger logger.Interface) *AccessLogStore {
	return &AccessLogStore{
		db:     gdb,
		txm:    db.NewTransactionManager(gdb),
		logger: logger,
	}
}

func (s *AccessLogStore) ReadCursor(ctx context.Context, deviceID uint) (device.Cursor, error) {
	var model models.SyncCursorModel
	err := db.GetTxFromContext(ctx, s.db).Where("device_id = ?", deviceID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return device.Cursor{DeviceID: deviceID}, nil
		}
		s.logger.Errorw("failed to read sync cursor", "device_id", deviceID, "error", err)
		return device.Cursor{}, fmt.Errorf("failed to read cursor: %w", err)
	}
	return device.Cursor{
		DeviceID:        deviceID,
		LastProcessedID: model.LastProcessedID,
		Set:             true,
		UpdatedAt:       model.UpdatedAt,
	}, nil
}

func (s *AccessLogStore) AppendBatch(ctx context.Context, deviceID uint, entries []device.LogEntry, cursor int64) (int, error) {
	var inserted int
	now := biztime.NowUTC()

	err := s.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		tx := db.GetTxFromContext(txCtx, s.db)

		if len(entries) > 0 {
			rows := make([]models.AccessLogModel, len(entries))
			for i, e := range entries {
				e.DeviceID = deviceID
				if e.CreatedAt.IsZero() {
					e.CreatedAt = now
				}
				rows[i] = mappers.AccessLogToModel(e)
			}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, insertBatchSize)
			if result.Error != nil {
				return fmt.Errorf("insert access logs: %w", result.Error)
			}
			inserted = int(result.RowsAffected)
		}

		return s.advanceCursor(tx, deviceID, cursor, now)
	})
	if err != nil {
		s.logger.Errorw("failed to append access log batch",
			"device_id", deviceID,
			"entries", len(entries),
			"cursor", cursor,
			"error", err)
		return 0, err
	}
	return inserted, nil
}

// advanceCursor moves the cursor forward only. The conditional UPDATE keeps
// it monotonic without row locks, which sqlite lacks.
func (s *AccessLogStore) advanceCursor(tx *gorm.DB, deviceID uint, cursor int64, now time.Time) error {
	advanced, err := raiseCursor(tx, deviceID, cursor, now)
	if err != nil || advanced {
		return err
	}

	created := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SyncCursorModel{DeviceID: deviceID, LastProcessedID: cursor, UpdatedAt: now})
	if created.Error != nil {
		return fmt.Errorf("create cursor: %w", created.Error)
	}
	if created.RowsAffected > 0 {
		return nil
	}

	// the row exists, possibly created by a concurrent append after the first update
	advanced, err = raiseCursor(tx, deviceID, cursor, now)
	if err != nil || advanced {
		return err
	}

	var existing models.SyncCursorModel
	if err := tx.Where("device_id = ?", deviceID).Take(&existing).Error; err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if existing.LastProcessedID > cursor {
		s.logger.Warnw("cursor already ahead of batch, leaving it unchanged",
			"device_id", deviceID,
			"cursor", existing.LastProcessedID,
			"batch_max", cursor)
	}
	return nil
}

func raiseCursor(tx *gorm.DB, deviceID uint, cursor int64, now time.Time) (bool, error) {
	result := tx.Model(&models.SyncCursorModel{}).
		Where("device_id = ? AND last_processed_id < ?", deviceID, cursor).
		Updates(map[string]any{"last_processed_id": cursor, "updated_at": now})
	if result.Error != nil {
		return false, fmt.Errorf("advance cursor: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *AccessLogStore) Recent(ctx context.Context, limit int) ([]device.LogEntry, error) {
	var rows []models.AccessLogModel
	if err := db.GetTxFromContext(ctx, s.db).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		s.logger.Errorw("failed to load recent access logs", "error", err)
		return nil, fmt.Errorf("failed to load recent access logs: %w", err)
	}
	return mappers.AccessLogsToEntities(rows), nil
}

func (s *AccessLogStore) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := db.GetTxFromContext(ctx, s.db).Model(&models.AccessLogModel{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return total, nil
}

func (s *AccessLogStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := db.GetTxFromContext(ctx, s.db).Model(&models.AccessLogModel{}).
		Where("created_at >= ?", since).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count access logs: %w", err)
	}
	return total, nil
}

func (s *AccessLogStore) List(ctx context.Context, filter device.LogFilter) ([]device.LogEntry, int64, error) {
	query := db.GetTxFromContext(ctx, s.db).Model(&models.AccessLogModel{})
	if filter.DeviceID != 0 {
		query = query.Where("device_id = ?", filter.DeviceID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EventType != nil {
		query = query.Where("event_type = ?", int(*filter.EventType))
	}
	if filter.From != nil {
		query = query.Where("event_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("event_time <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.logger.Errorw("failed to count access logs", "error", err)
		return nil, 0, fmt.Errorf("failed to count access logs: %w", err)
	}

	var rows []models.AccessLogModel
	q := query.Order("event_time DESC, id DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		s.logger.Errorw("failed to list access logs", "error", err)
		return nil, 0, fmt.Errorf("failed to list access logs: %w", err)
	}
	return mappers.AccessLogsToEntities(rows), total, nil
}
