package models

import (
	"time"

	"github.com/accesshub/accesshub/internal/shared/constants"
)

// DeviceModel represents the database persistence model for devices.
type DeviceModel struct {
	ID                      uint   `gorm:"primarykey"`
	SID                     string `gorm:"column:sid;not null;size:20;uniqueIndex:idx_device_sid"` // Stripe-style prefixed ID (dev_xxx)
	Name                    string `gorm:"not null;size:100;uniqueIndex:idx_device_name"`
	Address                 string `gorm:"not null;size:255"`
	Port                    int    `gorm:"not null"`
	UseHTTPS                bool   `gorm:"column:use_https;not null"`
	Login                   string `gorm:"size:100"`
	Password                string `gorm:"size:512"` // sealed by security.CredentialCipher when a key is configured
	IsPrimary               bool   `gorm:"not null;index:idx_device_primary"`
	ConnectionTimeoutMs     int64  `gorm:"not null"`
	RequestTimeoutMs        int64  `gorm:"not null"`
	MaxReconnectionAttempts int    `gorm:"not null"`
	Status                  string `gorm:"not null;size:20;index:idx_device_status"`
	IsEnabled               bool   `gorm:"not null;index:idx_device_enabled"`
	LastConnection          *time.Time
	LastError               *time.Time
	LastErrorMessage        string `gorm:"size:1000"`
	ErrorCount              int    `gorm:"not null"`
	SuccessCount            int    `gorm:"not null"`
	Version                 int    `gorm:"not null;default:1"` // optimistic locking
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// TableName specifies the table name for GORM.
func (DeviceModel) TableName() string {
	return constants.TableDevices
}
