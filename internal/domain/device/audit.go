package device

import "time"

type AuditCategory string

const (
	AuditConnection  AuditCategory = "connection"
	AuditAuth        AuditCategory = "auth"
	AuditDataFetch   AuditCategory = "data_fetch"
	AuditError       AuditCategory = "error"
	AuditMaintenance AuditCategory = "maintenance"
)

type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AuditEntry is an append-only record of a notable device event.
type AuditEntry struct {
	ID        uint
	DeviceID  uint
	Category  AuditCategory
	Severity  Severity
	Message   string
	Details   map[string]any
	CreatedAt time.Time
}

func NewAuditEntry(deviceID uint, category AuditCategory, severity Severity, message string, details map[string]any, now time.Time) *AuditEntry {
	return &AuditEntry{
		DeviceID:  deviceID,
		Category:  category,
		Severity:  severity,
		Message:   message,
		Details:   details,
		CreatedAt: now,
	}
}
