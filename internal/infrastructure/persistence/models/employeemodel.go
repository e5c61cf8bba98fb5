package models

import (
	"time"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

// EmployeeModel is a person learned from device data.
type EmployeeModel struct {
	ID           uint   `gorm:"primarykey"`
	DeviceID     uint   `gorm:"not null;uniqueIndex:idx_employee_device_user,priority:1"`
	DeviceUserID string `gorm:"not null;size:64;uniqueIndex:idx_employee_device_user,priority:2"`
	Name         string `gorm:"size:200"`
	GroupID      string `gorm:"size:64"`
	CardNumber   string `gorm:"size:64"`
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (EmployeeModel) TableName() string {
	return constants.TableEmployees
}
