package models

import (
	"time"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

// SyncCursorModel is the per-device ingestion high-water mark.
type SyncCursorModel struct {
	DeviceID        uint  `gorm:"primaryKey;autoIncrement:false"`
	LastProcessedID int64 `gorm:"not null"`
	UpdatedAt       time.Time
}

func (SyncCursorModel) TableName() string {
	return constants.TableSyncCursors
}
