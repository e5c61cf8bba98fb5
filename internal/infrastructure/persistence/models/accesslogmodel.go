package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

// AccessLogModel is an ingested device access event. Rows are never updated.
type AccessLogModel struct {
	ID          uint              `gorm:"primarykey"`
	DeviceID    uint              `gorm:"not null;uniqueIndex:idx_access_log_device_log,priority:1"`
	DeviceLogID int64             `gorm:"not null;uniqueIndex:idx_access_log_device_log,priority:2"`
	UserID      string            `gorm:"size:64;index:idx_access_log_user"`
	EventType   int               `gorm:"not null;index:idx_access_log_event_type"`
	EventTime   time.Time         `gorm:"index:idx_access_log_event_time"`
	Details     datatypes.JSONMap `gorm:"type:json"`
	CreatedAt   time.Time         `gorm:"index:idx_access_log_created_at"`
}

func (AccessLogModel) TableName() string {
	return constants.TableAccessLogs
}
