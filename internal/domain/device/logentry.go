package device

import (
	"strconv"
	"time"
)

// EventType is the terminal's numeric event code.
type EventType int

const (
	EventUnknown       EventType = 0
	EventAccessGranted EventType = 1
	EventAccessDenied  EventType = 2
	EventDoorForced    EventType = 3
	EventDoorHeldOpen  EventType = 4
	EventAlarm         EventType = 5
	EventUnknownCard   EventType = 6
)

var eventNames = map[EventType]string{
	EventUnknown:       "unknown",
	EventAccessGranted: "access_granted",
	EventAccessDenied:  "access_denied",
	EventDoorForced:    "door_forced",
	EventDoorHeldOpen:  "door_held_open",
	EventAlarm:         "alarm",
	EventUnknownCard:   "unknown_card",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "event_" + strconv.Itoa(int(e))
}

// IsDenied reports whether the event represents a refused passage.
func (e EventType) IsDenied() bool {
	return e == EventAccessDenied || e == EventUnknownCard
}

// LogEntry is one access event as reported by a device. DeviceLogID is the
// device assigned sequence number and is unique per device.
type LogEntry struct {
	ID          uint
	DeviceID    uint
	DeviceLogID int64
	UserID      string
	EventType   EventType
	EventTime   time.Time
	Details     map[string]any
	CreatedAt   time.Time
}

// Cursor is the durable high-water mark of ingested device log ids.
// Set is false when no cursor row exists yet.
type Cursor struct {
	DeviceID        uint
	LastProcessedID int64
	Set             bool
	UpdatedAt       time.Time
}

// IngestedBatch is what downstream consumers receive after a batch has been
// durably stored. Entries may include ids that were already stored before.
type IngestedBatch struct {
	DeviceID   uint
	DeviceSID  string
	DeviceName string
	Entries    []LogEntry
}

// UserIDs returns the distinct non-empty user ids in the batch.
func (b IngestedBatch) UserIDs() []string {
	seen := make(map[string]struct{}, len(b.Entries))
	var out []string
	for _, e := range b.Entries {
		if e.UserID == "" {
			continue
		}
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		out = append(out, e.UserID)
	}
	return out
}
