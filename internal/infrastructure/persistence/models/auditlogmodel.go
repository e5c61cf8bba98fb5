package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

type AuditLogModel struct {
	ID        uint              `gorm:"primarykey"`
	DeviceID  uint              `gorm:"not null;index:idx_audit_device_created,priority:1"`
	Category  string            `gorm:"not null;size:20;index:idx_audit_category"`
	Severity  string            `gorm:"not null;size:20"`
	Message   string            `gorm:"size:1000"`
	Details   datatypes.JSONMap `gorm:"type:json"`
	CreatedAt time.Time         `gorm:"index:idx_audit_device_created,priority:2"`
}

func (AuditLogModel) TableName() string {
	return constants.TableAuditLogs
}
