package device

import (
	"context"
	"time"
)

// Filter selects devices for listing.
type Filter struct {
	EnabledOnly bool
	PrimaryOnly bool
}

// DeviceRepository persists Device aggregates.
type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	// Update saves configuration and health fields of an existing device.
	// It fails with ErrVersionConflict when the stored version differs from
	// d.Version() and advances the version of d on success.
	Update(ctx context.Context, d *Device) error
	// GetByID returns nil, nil when the device does not exist.
	GetByID(ctx context.Context, id uint) (*Device, error)
	GetBySID(ctx context.Context, sid string) (*Device, error)
	GetByName(ctx context.Context, name string) (*Device, error)
	List(ctx context.Context, filter Filter) ([]*Device, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// SessionRepository persists device sessions. Sessions are never deleted.
type SessionRepository interface {
	// GetActive returns the active session for a device or nil, nil.
	GetActive(ctx context.Context, deviceID uint) (*Session, error)
	Create(ctx context.Context, s *Session) error
	Update(ctx context.Context, s *Session) error
	// ListIdle returns active sessions whose last activity is before cutoff.
	ListIdle(ctx context.Context, cutoff time.Time) ([]*Session, error)
}

// LogFilter narrows stored access log queries.
type LogFilter struct {
	DeviceID  uint
	UserID    string
	EventType *EventType
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

// LogStore owns ingested access logs together with the per-device cursor.
type LogStore interface {
	// ReadCursor returns the durable cursor; Cursor.Set is false if none exists.
	ReadCursor(ctx context.Context, deviceID uint) (Cursor, error)
	// AppendBatch inserts entries and advances the cursor to cursor in one
	// transaction. Entries already stored are skipped. On error nothing is
	// written. It returns the number of newly inserted rows.
	AppendBatch(ctx context.Context, deviceID uint, entries []LogEntry, cursor int64) (int, error)
	// Recent returns the newest entries across all devices, newest first.
	Recent(ctx context.Context, limit int) ([]LogEntry, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	List(ctx context.Context, filter LogFilter) ([]LogEntry, int64, error)
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByDevice(ctx context.Context, deviceID uint, offset, limit int) ([]AuditEntry, int64, error)
}

type EmployeeRepository interface {
	// Upsert inserts or updates employees keyed by (device_id, device_user_id).
	Upsert(ctx context.Context, employees []Employee) error
	// MarkSeen records last_seen_at for the given users, creating placeholder
	// rows for users not yet known.
	MarkSeen(ctx context.Context, deviceID uint, userIDs []string, seenAt time.Time) error
}
