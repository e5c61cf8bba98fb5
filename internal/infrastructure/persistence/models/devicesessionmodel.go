package models

import (
	"time"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

// DeviceSessionModel stores remote session tokens. Uniqueness of the active
// session per device is enforced by the repository under a device lock.
type DeviceSessionModel struct {
	ID             uint   `gorm:"primarykey"`
	DeviceID       uint   `gorm:"not null;index:idx_device_session_active,priority:1"`
	IsActive       bool   `gorm:"not null;index:idx_device_session_active,priority:2"`
	Token          string `gorm:"size:512"`
	StartedAt      time.Time
	EndedAt        *time.Time
	LastActivityAt time.Time `gorm:"index:idx_device_session_activity"`
	RequestCount   int       `gorm:"not null"`
	ErrorCount     int       `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeviceSessionModel) TableName() string {
	return constants.TableDeviceSessions
}
