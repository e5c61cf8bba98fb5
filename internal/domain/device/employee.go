package device

import "time"

// Employee is the minimal person record learned from device user lists and
// access logs. DeviceUserID is unique per device.
type Employee struct {
	ID           uint
	DeviceID     uint
	DeviceUserID string
	Name         string
	GroupID      string
	CardNumber   string
	LastSeenAt   *time.Time
	UpdatedAt    time.Time
}
